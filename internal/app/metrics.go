package app

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type appMetricsCollection struct {
	lookupCount metric.Int64Counter
}

var metrics appMetricsCollection

func init() {
	const name = "lantern/app"
	meter := otel.Meter(name)

	lookupCount, err := meter.Int64Counter(
		"app/lookup_count",
		metric.WithDescription("Total number of value lookups by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create lookup count metric: %w", err))
	}

	metrics = appMetricsCollection{
		lookupCount: lookupCount,
	}
}
