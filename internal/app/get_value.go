package app

import (
	"context"
	"fmt"

	"github.com/Amund211/lantern/internal/logging"
	"github.com/Amund211/lantern/internal/registry"
	"github.com/Amund211/lantern/internal/upstream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GetValue returns the current value for key, fetching it from upstream if it
// is neither cached nor already being fetched. force bypasses the cache but
// still coalesces with an in-flight fetch.
type GetValue func(ctx context.Context, key string, force bool) ([]byte, error)

type fetchOutcome struct {
	data []byte
	err  error
}

func BuildGetValue(reg *registry.Registry[[]byte], fetcher upstream.Fetcher, retention registry.Retention) GetValue {
	return func(ctx context.Context, key string, force bool) ([]byte, error) {
		logger := logging.FromContext(ctx)

		// Buffered so the dispatcher never blocks on an abandoned waiter
		resultCh := make(chan fetchOutcome, 1)
		callback := func(err error, data []byte) {
			resultCh <- fetchOutcome{data: data, err: err}
		}

		if reg.RegisterInterest(key, callback, force) {
			// Either served from cache or joined an in-flight fetch
			metrics.lookupCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "coalesced")))
			logger.Info("Waiting for coalesced result", "key", key)

			select {
			case res := <-resultCh:
				if res.err != nil {
					return nil, fmt.Errorf("fetch for %q failed: %w", key, res.err)
				}
				return res.data, nil
			case <-ctx.Done():
				return nil, fmt.Errorf("gave up waiting for %q: %w", key, ctx.Err())
			}
		}

		// We own the fetch and must complete it exactly once
		metrics.lookupCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "fetch")))
		logger.Info("Fetching from upstream", "key", key)

		data, err := fetcher.Fetch(ctx, key)
		if err != nil {
			// Failures are fanned out to every waiter but never cached
			reg.CompleteFetch(key, err, nil, registry.Discard)
			return nil, fmt.Errorf("failed to fetch %q: %w", key, err)
		}

		reg.CompleteFetch(key, nil, data, retention)
		return data, nil
	}
}
