// ABOUTME: Cache generation types, storage interfaces and the stored response format
// ABOUTME: Shared by the cache manager (install/activate) and the request interceptor

package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrCacheMiss is returned when a generation holds no response for a key.
var ErrCacheMiss = errors.New("cache miss")

// ErrNoGeneration is returned when no generation exists to serve from.
var ErrNoGeneration = errors.New("no cache generation")

// ResponseType mirrors how a response was obtained.
type ResponseType string

const (
	// TypeBasic is a same-origin response. Only basic responses are written
	// through by the cache-first strategy.
	TypeBasic ResponseType = "basic"
	// TypeCORS is a cross-origin response with readable contents.
	TypeCORS ResponseType = "cors"
)

// MaxBodySize bounds how much of a response body is buffered for caching.
const MaxBodySize = 16 << 20

// Response is a stored HTTP response.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Type     ResponseType
	URL      string
	StoredAt time.Time
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Clone returns a deep copy, so a stored response and a served one never
// share buffers.
func (r *Response) Clone() *Response {
	c := *r
	c.Header = r.Header.Clone()
	c.Body = bytes.Clone(r.Body)
	return &c
}

// WriteTo writes the response to w.
func (r *Response) WriteTo(w http.ResponseWriter) {
	for k, vs := range r.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(r.Body)))
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

// FromHTTP reads resp fully into a Response and closes its body.
func FromHTTP(resp *http.Response, typ ResponseType) (*Response, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxBodySize)
	}

	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	// Hop-by-hop and length headers are recomputed when served
	for _, h := range []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Content-Length"} {
		header.Del(h)
	}

	u := ""
	if resp.Request != nil && resp.Request.URL != nil {
		u = resp.Request.URL.String()
	}

	return &Response{
		Status:   resp.StatusCode,
		Header:   header,
		Body:     body,
		Type:     typ,
		URL:      u,
		StoredAt: time.Now().UTC(),
	}, nil
}

// Key returns the cache key for a GET of u: the absolute URL without fragment.
func Key(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// Entry pairs a key with its response for bulk writes.
type Entry struct {
	Key      string
	Response *Response
}

// Generation is one named cache of request/response pairs.
type Generation interface {
	Name() string
	// Match returns the stored response for key, or ErrCacheMiss.
	Match(ctx context.Context, key string) (*Response, error)
	// Put stores resp under key, replacing any previous response.
	Put(ctx context.Context, key string, resp *Response) error
	// PutAll stores every entry or none of them.
	PutAll(ctx context.Context, entries []Entry) error
	// Keys lists the stored keys in insertion order.
	Keys(ctx context.Context) ([]string, error)
}

// Storage holds the named generations.
type Storage interface {
	// Open returns the named generation, creating it if needed.
	Open(ctx context.Context, name string) (Generation, error)
	// Names lists existing generations, oldest first.
	Names(ctx context.Context) ([]string, error)
	// Delete removes a generation and reports whether it existed.
	Delete(ctx context.Context, name string) (bool, error)
	Close() error
}
