// ABOUTME: Shared HTTP plumbing for the weather, quote and geolocation clients
// ABOUTME: Every call is bounded by a timeout and decodes a JSON body

package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every external call.
const DefaultTimeout = 5 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// ErrUnavailable is returned when a service can't be reached and no cached
// value exists.
var ErrUnavailable = errors.New("external service unavailable")

// Doer performs HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Source says where a result came from.
type Source string

const (
	SourceAPI      Source = "api"
	SourceCache    Source = "cache"
	SourceOldCache Source = "old-cache"
	SourceFallback Source = "fallback"
	SourceDefault  Source = "default"
)

// fetcher issues bounded JSON GETs. The timeout is applied to the request
// context, so it holds for an injected Doer as well.
type fetcher struct {
	client  Doer
	timeout time.Duration
}

func newFetcher(c Doer, timeout time.Duration) fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if c == nil {
		c = &http.Client{Timeout: timeout}
	}
	return fetcher{client: c, timeout: timeout}
}

// getJSON fetches url and decodes the body into v.
func (f fetcher) getJSON(ctx context.Context, url string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("reading %s: %w", url, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
