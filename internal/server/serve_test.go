package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	e "github.com/Amund211/lantern/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, method, target, key string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.SetPathValue("key", key)
	return req
}

func TestMakeGetValueHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler := MakeGetValueHandler(func(ctx context.Context, key string, force bool) ([]byte, error) {
			require.Equal(t, "key1", key)
			require.False(t, force)
			return []byte(`{"value":1}`), nil
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodGet, "/v1/value/key1", "key1"))

		resp := w.Result()
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, `{"value":1}`, w.Body.String())
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("force is passed through", func(t *testing.T) {
		handler := MakeGetValueHandler(func(ctx context.Context, key string, force bool) ([]byte, error) {
			require.True(t, force)
			return []byte(`{}`), nil
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodGet, "/v1/value/key1?force=true", "key1"))

		assert.Equal(t, 200, w.Result().StatusCode)
	})

	t.Run("missing key", func(t *testing.T) {
		handler := MakeGetValueHandler(func(ctx context.Context, key string, force bool) ([]byte, error) {
			t.Fatal("should not be called")
			return nil, nil
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodGet, "/v1/value/", ""))

		assert.Equal(t, 400, w.Result().StatusCode)
	})

	t.Run("client error", func(t *testing.T) {
		handler := MakeGetValueHandler(func(ctx context.Context, key string, force bool) ([]byte, error) {
			return nil, fmt.Errorf("%w: error :^)", e.ClientError)
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodGet, "/v1/value/key1", "key1"))

		resp := w.Result()
		assert.Equal(t, 400, resp.StatusCode)
		assert.Equal(t, `{"success":false,"cause":"Client error: error :^)"}`, w.Body.String())
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("upstream error", func(t *testing.T) {
		handler := MakeGetValueHandler(func(ctx context.Context, key string, force bool) ([]byte, error) {
			return nil, fmt.Errorf("%w: error :^(", e.UpstreamError)
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodGet, "/v1/value/key1", "key1"))

		resp := w.Result()
		assert.Equal(t, 502, resp.StatusCode)
		assert.Equal(t, `{"success":false,"cause":"Upstream error: error :^("}`, w.Body.String())
	})

	t.Run("unknown error", func(t *testing.T) {
		handler := MakeGetValueHandler(func(ctx context.Context, key string, force bool) ([]byte, error) {
			return nil, fmt.Errorf("something else")
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodGet, "/v1/value/key1", "key1"))

		assert.Equal(t, 500, w.Result().StatusCode)
	})
}

func TestMakeScheduleRefreshHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler := MakeScheduleRefreshHandler(func(ctx context.Context, key string, interval time.Duration) bool {
			require.Equal(t, "key1", key)
			require.Equal(t, 30*time.Second, interval)
			return true
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodPost, "/v1/refresh/key1?interval=30s", "key1"))

		resp := w.Result()
		assert.Equal(t, 200, resp.StatusCode)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
	})

	t.Run("default interval", func(t *testing.T) {
		handler := MakeScheduleRefreshHandler(func(ctx context.Context, key string, interval time.Duration) bool {
			require.Equal(t, defaultRefreshInterval, interval)
			return true
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodPost, "/v1/refresh/key1", "key1"))

		assert.Equal(t, 200, w.Result().StatusCode)
	})

	t.Run("invalid interval", func(t *testing.T) {
		handler := MakeScheduleRefreshHandler(func(ctx context.Context, key string, interval time.Duration) bool {
			t.Fatal("should not be called")
			return false
		})

		for _, interval := range []string{"nonsense", "-1m", "0s"} {
			t.Run(interval, func(t *testing.T) {
				w := httptest.NewRecorder()
				handler(w, newRequest(t, http.MethodPost, "/v1/refresh/key1?interval="+interval, "key1"))

				assert.Equal(t, 400, w.Result().StatusCode)
			})
		}
	})

	t.Run("fetch in flight", func(t *testing.T) {
		handler := MakeScheduleRefreshHandler(func(ctx context.Context, key string, interval time.Duration) bool {
			return false
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodPost, "/v1/refresh/key1", "key1"))

		resp := w.Result()
		assert.Equal(t, 409, resp.StatusCode)
		assert.JSONEq(t, `{"success":false,"cause":"fetch in flight"}`, w.Body.String())
	})
}

func TestMakeCancelRefreshHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler := MakeCancelRefreshHandler(func(ctx context.Context, key string) bool {
			require.Equal(t, "key1", key)
			return true
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodDelete, "/v1/refresh/key1", "key1"))

		resp := w.Result()
		assert.Equal(t, 200, resp.StatusCode)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
	})

	t.Run("fetch in flight", func(t *testing.T) {
		handler := MakeCancelRefreshHandler(func(ctx context.Context, key string) bool {
			return false
		})
		w := httptest.NewRecorder()
		handler(w, newRequest(t, http.MethodDelete, "/v1/refresh/key1", "key1"))

		assert.Equal(t, 409, w.Result().StatusCode)
	})
}
