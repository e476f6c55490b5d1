package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/Amund211/lantern/internal/config"
	e "github.com/Amund211/lantern/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configFromEnv(t *testing.T) config.Config {
	t.Helper()
	conf, err := config.ConfigFromEnv()
	require.NoError(t, err)
	return conf
}

type mockedHttpClient struct {
	t           *testing.T
	expectedURL string
	statusCode  int
	body        string
	err         error
}

func (m *mockedHttpClient) Do(req *http.Request) (*http.Response, error) {
	m.t.Helper()
	require.Equal(m.t, m.expectedURL, req.URL.String())
	require.NotEmpty(m.t, req.Header.Get("User-Agent"))

	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewReader([]byte(m.body))),
	}, nil
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{
			t:           t,
			expectedURL: "https://upstream.example.com/v1/key1",
			statusCode:  200,
			body:        `{"value":1}`,
		}
		fetcher := NewHTTPFetcher(client, "https://upstream.example.com/v1")

		data, err := fetcher.Fetch(context.Background(), "key1")
		require.NoError(t, err)
		assert.Equal(t, `{"value":1}`, string(data))
	})

	t.Run("key is path escaped", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{
			t:           t,
			expectedURL: "https://upstream.example.com/v1/key%20with%20spaces",
			statusCode:  200,
			body:        `{}`,
		}
		fetcher := NewHTTPFetcher(client, "https://upstream.example.com/v1")

		_, err := fetcher.Fetch(context.Background(), "key with spaces")
		require.NoError(t, err)
	})

	t.Run("client error status", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{
			t:           t,
			expectedURL: "https://upstream.example.com/v1/key1",
			statusCode:  404,
			body:        `not found`,
		}
		fetcher := NewHTTPFetcher(client, "https://upstream.example.com/v1")

		_, err := fetcher.Fetch(context.Background(), "key1")
		require.ErrorIs(t, err, e.ClientError)
	})

	t.Run("server error status", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{
			t:           t,
			expectedURL: "https://upstream.example.com/v1/key1",
			statusCode:  503,
			body:        `unavailable`,
		}
		fetcher := NewHTTPFetcher(client, "https://upstream.example.com/v1")

		_, err := fetcher.Fetch(context.Background(), "key1")
		require.ErrorIs(t, err, e.UpstreamError)
	})

	t.Run("request error", func(t *testing.T) {
		t.Parallel()

		client := &mockedHttpClient{
			t:           t,
			expectedURL: "https://upstream.example.com/v1/key1",
			err:         fmt.Errorf("connection refused"),
		}
		fetcher := NewHTTPFetcher(client, "https://upstream.example.com/v1")

		_, err := fetcher.Fetch(context.Background(), "key1")
		require.ErrorIs(t, err, e.UpstreamError)
	})
}

func TestMockedFetcher(t *testing.T) {
	t.Parallel()

	fetcher := &mockedFetcher{}
	data, err := fetcher.Fetch(context.Background(), "key1")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key1"`)
}

func TestNewFetcherOrMock(t *testing.T) {
	// Not parallel: uses t.Setenv
	t.Run("mock in development without base url", func(t *testing.T) {
		t.Setenv("LANTERN_ENVIRONMENT", "development")
		conf := configFromEnv(t)

		fetcher, err := NewFetcherOrMock(conf, http.DefaultClient)
		require.NoError(t, err)
		assert.IsType(t, &mockedFetcher{}, fetcher)
	})

	t.Run("real fetcher with base url", func(t *testing.T) {
		t.Setenv("LANTERN_ENVIRONMENT", "development")
		t.Setenv("UPSTREAM_BASE_URL", "https://upstream.example.com/v1")
		conf := configFromEnv(t)

		fetcher, err := NewFetcherOrMock(conf, http.DefaultClient)
		require.NoError(t, err)
		assert.IsType(t, httpFetcher{}, fetcher)
	})
}
