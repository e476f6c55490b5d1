package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/lantern/internal/app"
	"github.com/Amund211/lantern/internal/config"
	"github.com/Amund211/lantern/internal/logging"
	"github.com/Amund211/lantern/internal/ratelimiting"
	"github.com/Amund211/lantern/internal/registry"
	"github.com/Amund211/lantern/internal/reporting"
	"github.com/Amund211/lantern/internal/server"
	"github.com/Amund211/lantern/internal/telemetry"
	"github.com/Amund211/lantern/internal/upstream"
	"github.com/google/uuid"

	_ "golang.org/x/crypto/x509roots/fallback"
)

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	// Registry diagnostics go through the process-wide sinks
	registryLogger := logger.With("component", "registry")
	logging.SetSinks(logging.Sinks{
		Info:  func(msg string) { registryLogger.Info(msg) },
		Warn:  func(msg string) { registryLogger.Warn(msg) },
		Error: func(msg string) { registryLogger.Error(msg) },
		Debug: func(msg string) { registryLogger.Debug(msg) },
	})

	otelShutdown, err := telemetry.SetupOTelSDK(context.Background(), "lantern")
	if err != nil {
		fail("Failed to set up OpenTelemetry", "error", err.Error())
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
		}
	}()

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	reg := registry.New[[]byte]()
	defer reg.Close()

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}
	fetcher, err := upstream.NewFetcherOrMock(config, httpClient)
	if err != nil {
		fail("Failed to initialize upstream fetcher", "error", err.Error())
	}
	logger.Info("Initialized upstream fetcher")

	rateLimiter, stopRateLimiter := ratelimiting.NewTokenBucketRateLimiter(8, 480)
	defer stopRateLimiter()
	requestRateLimiter := ratelimiting.NewRequestBasedRateLimiter(rateLimiter, ratelimiting.IPKeyFunc)

	getValue := app.BuildGetValue(reg, fetcher, registry.RetainFor(config.CacheTTL()))
	keepFresh := app.BuildKeepFresh(reg, fetcher)
	stopKeepFresh := app.BuildStopKeepFresh(reg)

	middleware := server.ComposeMiddlewares(
		logging.NewRequestLoggerMiddleware(logger.With("component", "server")),
		sentryMiddleware,
		server.NewMetricsMiddleware(),
		server.NewRateLimitMiddleware(requestRateLimiter),
	)

	http.HandleFunc(
		"GET /v1/value/{key}",
		middleware(server.MakeGetValueHandler(getValue)),
	)

	http.HandleFunc(
		"POST /v1/refresh/{key}",
		middleware(server.MakeScheduleRefreshHandler(keepFresh)),
	)

	http.HandleFunc(
		"DELETE /v1/refresh/{key}",
		middleware(server.MakeCancelRefreshHandler(stopKeepFresh)),
	)

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", config.Port()), nil)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
