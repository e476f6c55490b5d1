package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Amund211/lantern/internal/app"
	e "github.com/Amund211/lantern/internal/errors"
	"github.com/Amund211/lantern/internal/logging"
)

const defaultRefreshInterval = 1 * time.Minute

func MakeGetValueHandler(getValue app.GetValue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		key := r.PathValue("key")
		if key == "" {
			writeErrorResponse(ctx, w, fmt.Errorf("%w: missing key", e.ClientError))
			return
		}
		force := r.URL.Query().Get("force") == "true"

		data, err := getValue(ctx, key, force)
		if err != nil {
			logger.Error("Error getting value", "error", err.Error())
			statusCode := writeErrorResponse(ctx, w, err)
			logger.Info("Returning response", "statusCode", statusCode)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		logger.Info("Returning response", "statusCode", http.StatusOK)
	}
}

func MakeScheduleRefreshHandler(keepFresh app.KeepFresh) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		key := r.PathValue("key")
		if key == "" {
			writeErrorResponse(ctx, w, fmt.Errorf("%w: missing key", e.ClientError))
			return
		}

		interval := defaultRefreshInterval
		if rawInterval := r.URL.Query().Get("interval"); rawInterval != "" {
			parsed, err := time.ParseDuration(rawInterval)
			if err != nil || parsed <= 0 {
				writeErrorResponse(ctx, w, fmt.Errorf("%w: invalid interval %q", e.ClientError, rawInterval))
				return
			}
			interval = parsed
		}

		if !keepFresh(ctx, key, interval) {
			// A fetch is mid-flight; the caller may retry once it completes
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(ErrorResponse{Success: false, Cause: "fetch in flight"})
			logger.Info("Returning response", "statusCode", http.StatusConflict, "reason", "fetch in flight")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(StatusResponse{Success: true})
		logger.Info("Scheduled refresh", "key", key, "interval", interval.String())
	}
}

func MakeCancelRefreshHandler(stopKeepFresh app.StopKeepFresh) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		key := r.PathValue("key")
		if key == "" {
			writeErrorResponse(ctx, w, fmt.Errorf("%w: missing key", e.ClientError))
			return
		}

		if !stopKeepFresh(ctx, key) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(ErrorResponse{Success: false, Cause: "fetch in flight"})
			logger.Info("Returning response", "statusCode", http.StatusConflict, "reason", "fetch in flight")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(StatusResponse{Success: true})
		logger.Info("Cancelled refresh", "key", key)
	}
}
