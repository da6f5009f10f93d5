// ABOUTME: Request interceptor choosing cache-first, network-first or passthrough per request
// ABOUTME: Always produces a response, synthesizing fallbacks when network and cache both fail

package interceptor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/2389/mindmatters/internal/assets"
	"github.com/2389/mindmatters/internal/cache"
)

// ErrNetworkFailure is returned when the network produced no response.
var ErrNetworkFailure = errors.New("network failure")

// SourceHeader tells clients where a response came from.
const SourceHeader = "X-MindMatters-Source"

// Source is where a response came from.
type Source string

const (
	SourceNetwork  Source = "network"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// maxRequestBody bounds buffered request bodies for forwarded writes.
const maxRequestBody = 4 << 20

// CacheSource supplies the generation responses are read from and written to.
// *cache.Manager satisfies it.
type CacheSource interface {
	Serving(ctx context.Context) (cache.Generation, error)
	OfflineKey() string
}

// Config configures an Interceptor.
type Config struct {
	Origin    *url.URL
	APIMarker string
	Cache     CacheSource
	Client    cache.Doer
	Logger    *slog.Logger
}

// Stats counts how requests were answered.
type Stats struct {
	FromCache   int64 `json:"from_cache"`
	FromNetwork int64 `json:"from_network"`
	Fallbacks   int64 `json:"fallbacks"`
	WriteErrors int64 `json:"cache_write_errors"`
}

// Interceptor answers every request the app makes while the worker is in control.
type Interceptor struct {
	origin    *url.URL
	apiMarker string
	cache     CacheSource
	client    cache.Doer
	logger    *slog.Logger

	fromCache   atomic.Int64
	fromNetwork atomic.Int64
	fallbacks   atomic.Int64
	writeErrors atomic.Int64
}

// New creates an Interceptor.
func New(cfg Config) *Interceptor {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	marker := cfg.APIMarker
	if marker == "" {
		marker = "/api/"
	}
	return &Interceptor{
		origin:    cfg.Origin,
		apiMarker: marker,
		cache:     cfg.Cache,
		client:    client,
		logger:    logger.With("component", "interceptor"),
	}
}

// Stats returns a snapshot of the response counters.
func (i *Interceptor) Stats() Stats {
	return Stats{
		FromCache:   i.fromCache.Load(),
		FromNetwork: i.fromNetwork.Load(),
		Fallbacks:   i.fallbacks.Load(),
		WriteErrors: i.writeErrors.Load(),
	}
}

// Classify picks the strategy for a request. Order matters: cross-origin
// first, then non-GET, then API, then everything else.
func (i *Interceptor) Classify(req *Request) Strategy {
	switch {
	case !sameOrigin(req.URL, i.origin):
		return StrategyPassthrough
	case req.Method != http.MethodGet:
		return StrategyNetworkOnly
	case i.isAPI(req):
		return StrategyNetworkFirst
	default:
		return StrategyCacheFirst
	}
}

func (i *Interceptor) isAPI(req *Request) bool {
	return strings.Contains(req.URL.Path, i.apiMarker)
}

// Handle answers req. It never fails: when neither network nor cache can
// answer, a fallback response is synthesized.
func (i *Interceptor) Handle(ctx context.Context, req *Request) (*cache.Response, Source) {
	strategy := i.Classify(req)

	var resp *cache.Response
	var source Source
	switch strategy {
	case StrategyPassthrough:
		resp, source = i.passthrough(ctx, req)
	case StrategyNetworkOnly:
		resp, source = i.networkOnly(ctx, req)
	case StrategyNetworkFirst:
		resp, source = i.networkFirst(ctx, req)
	default:
		resp, source = i.cacheFirst(ctx, req)
	}

	switch source {
	case SourceCache:
		i.fromCache.Add(1)
	case SourceNetwork:
		i.fromNetwork.Add(1)
	default:
		i.fallbacks.Add(1)
	}
	i.logger.Debug("request handled",
		"method", req.Method,
		"url", req.URL.String(),
		"strategy", strategy.String(),
		"source", string(source),
		"status", resp.Status,
	)
	return resp, source
}

func (i *Interceptor) passthrough(ctx context.Context, req *Request) (*cache.Response, Source) {
	resp, err := i.fetch(ctx, req, cache.TypeCORS)
	if err != nil {
		i.logger.Debug("cross-origin fetch failed", "url", req.URL.String(), "error", err)
		return i.genericFallback(req), SourceFallback
	}
	return resp, SourceNetwork
}

func (i *Interceptor) networkOnly(ctx context.Context, req *Request) (*cache.Response, Source) {
	resp, err := i.fetch(ctx, req, cache.TypeBasic)
	if err != nil {
		if i.isAPI(req) {
			return apiFailure(), SourceFallback
		}
		return i.genericFallback(req), SourceFallback
	}
	return resp, SourceNetwork
}

func (i *Interceptor) networkFirst(ctx context.Context, req *Request) (*cache.Response, Source) {
	key := cache.Key(req.URL)

	resp, err := i.fetch(ctx, req, cache.TypeBasic)
	if err == nil {
		// Error statuses are returned live but never replace a good cached copy
		if resp.OK() {
			i.store(ctx, key, resp)
		}
		return resp, SourceNetwork
	}

	i.logger.Debug("network-first fetch failed, trying cache", "url", req.URL.String(), "error", err)
	if cached := i.match(ctx, key); cached != nil {
		return cached, SourceCache
	}
	return apiFailure(), SourceFallback
}

func (i *Interceptor) cacheFirst(ctx context.Context, req *Request) (*cache.Response, Source) {
	key := cache.Key(req.URL)
	if cached := i.match(ctx, key); cached != nil {
		return cached, SourceCache
	}

	resp, err := i.fetch(ctx, req, cache.TypeBasic)
	if err == nil {
		if resp.Status == http.StatusOK && resp.Type == cache.TypeBasic {
			i.store(ctx, key, resp)
		}
		return resp, SourceNetwork
	}

	i.logger.Debug("cache-first fetch failed", "url", req.URL.String(), "error", err)
	if req.IsNavigation() && i.cache != nil {
		if offline := i.match(ctx, i.cache.OfflineKey()); offline != nil {
			return offline, SourceFallback
		}
	}
	return i.genericFallback(req), SourceFallback
}

// fetch performs req against the network.
func (i *Interceptor) fetch(ctx context.Context, req *Request, typ cache.ResponseType) (*cache.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrNetworkFailure, err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}

	httpResp, err := i.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}

	resp, err := cache.FromHTTP(httpResp, typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	return resp, nil
}

// match looks key up in the serving generation. Misses and errors return nil.
func (i *Interceptor) match(ctx context.Context, key string) *cache.Response {
	if i.cache == nil {
		return nil
	}
	gen, err := i.cache.Serving(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrNoGeneration) {
			i.logger.Warn("cache unavailable", "error", err)
		}
		return nil
	}
	resp, err := gen.Match(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			i.logger.Warn("cache lookup failed", "key", key, "error", err)
		}
		return nil
	}
	return resp
}

// store writes resp through to the serving generation before it is returned.
// Failures are logged; the live response is still served.
func (i *Interceptor) store(ctx context.Context, key string, resp *cache.Response) {
	if i.cache == nil {
		return
	}
	gen, err := i.cache.Serving(ctx)
	if err == nil {
		err = gen.Put(ctx, key, resp.Clone())
	}
	if err != nil && !errors.Is(err, cache.ErrNoGeneration) {
		i.writeErrors.Add(1)
		i.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// genericFallback is the response for a failed non-API request with nothing
// cached: a placeholder for images, otherwise a 408.
func (i *Interceptor) genericFallback(req *Request) *cache.Response {
	if req.IsImage() {
		return &cache.Response{
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": []string{assets.SVGContentType}},
			Body:   assets.Placeholder(),
		}
	}
	return &cache.Response{
		Status: http.StatusRequestTimeout,
		Header: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:   []byte("Network error"),
	}
}

// apiFailure is the response for an API request with no network and no cache.
func apiFailure() *cache.Response {
	body, _ := json.Marshal(map[string]any{
		"error":   "network unavailable",
		"offline": true,
	})
	return &cache.Response{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	}
}

// RequestFromHTTP converts an incoming HTTP request. Absolute-form request
// URIs (proxy requests) keep their target; path-only requests are resolved
// against the origin.
func (i *Interceptor) RequestFromHTTP(r *http.Request) (*Request, error) {
	target := r.URL
	if !r.URL.IsAbs() {
		target = i.origin.ResolveReference(&url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery})
	}

	var body []byte
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		body = b
	}

	header := r.Header.Clone()
	for _, h := range []string{"Connection", "Keep-Alive", "Proxy-Connection", "Te", "Trailer", "Upgrade"} {
		header.Del(h)
	}

	mode := requestMode(r)
	return &Request{
		Method:      r.Method,
		URL:         target,
		Header:      header,
		Body:        body,
		Mode:        mode,
		Destination: requestDestination(r, mode),
	}, nil
}

// WriteResponse writes resp to w, tagged with where it came from.
func WriteResponse(w http.ResponseWriter, resp *cache.Response, source Source) {
	w.Header().Set(SourceHeader, string(source))
	resp.WriteTo(w)
}

// ServeHTTP answers r through Handle.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := i.RequestFromHTTP(r)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	resp, source := i.Handle(r.Context(), req)
	WriteResponse(w, resp, source)
}
