package app

import (
	"context"
	"time"

	"github.com/Amund211/lantern/internal/registry"
	"github.com/Amund211/lantern/internal/upstream"
)

// KeepFresh starts a recurring background refresh of key every interval.
// It returns false if a fetch for key is currently in flight.
type KeepFresh func(ctx context.Context, key string, interval time.Duration) bool

// StopKeepFresh cancels the recurring refresh for key and drops its cached
// value. It returns false if a fetch for key is currently in flight.
type StopKeepFresh func(ctx context.Context, key string) bool

func BuildKeepFresh(reg *registry.Registry[[]byte], fetcher upstream.Fetcher) KeepFresh {
	return func(ctx context.Context, key string, interval time.Duration) bool {
		// The refresh cycle outlives the request that started it
		cycleCtx := context.WithoutCancel(ctx)

		return reg.ScheduleFetch(key, interval, func(done func(err error, data []byte)) {
			go func() {
				data, err := fetcher.Fetch(cycleCtx, key)
				done(err, data)
			}()
		})
	}
}

func BuildStopKeepFresh(reg *registry.Registry[[]byte]) StopKeepFresh {
	return func(ctx context.Context, key string) bool {
		return reg.CancelScheduleFetch(key)
	}
}
