package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Amund211/lantern/internal/config"
	e "github.com/Amund211/lantern/internal/errors"
	"github.com/Amund211/lantern/internal/logging"
	"github.com/Amund211/lantern/internal/reporting"
)

const userAgent = "lantern/1.0 (+https://github.com/Amund211/lantern)"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves the opaque document for a key from the upstream service.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

type mockedFetcher struct{}

func (fetcher *mockedFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	return []byte(fmt.Sprintf(`{"key":%q,"mocked":true}`, key)), nil
}

type httpFetcher struct {
	httpClient HttpClient
	baseURL    string
}

func (fetcher httpFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	logger := logging.FromContext(ctx)
	requestURL := fmt.Sprintf("%s/%s", fetcher.baseURL, url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		logger.Error(err.Error())
		reporting.Report(ctx, err)
		return nil, fmt.Errorf("%w: %w", e.UpstreamError, err)
	}

	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := fetcher.httpClient.Do(req)
	if err != nil {
		err := fmt.Errorf("failed to send request: %w", err)
		logger.Error(err.Error())
		reporting.Report(ctx, err)
		return nil, fmt.Errorf("%w: %w", e.UpstreamError, err)
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		logger.Error(err.Error())
		reporting.Report(ctx, err)
		return nil, fmt.Errorf("%w: %w", e.UpstreamError, err)
	}
	logger.Info("upstream request completed", "url", requestURL, "status", resp.StatusCode, "duration", time.Since(start).String())

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: upstream returned status %d", e.ClientError, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: upstream returned status %d", e.UpstreamError, resp.StatusCode)
	}
}

func NewHTTPFetcher(httpClient HttpClient, baseURL string) Fetcher {
	return httpFetcher{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

func NewFetcherOrMock(config config.Config, httpClient HttpClient) (Fetcher, error) {
	if config.UpstreamBaseURL() != "" {
		return NewHTTPFetcher(httpClient, config.UpstreamBaseURL()), nil
	}
	if config.IsDevelopment() {
		return &mockedFetcher{}, nil
	}
	return nil, fmt.Errorf("Missing upstream base URL in non-development environment")
}
