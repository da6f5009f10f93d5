// Package interceptor answers the app's HTTP requests on behalf of the origin.
//
// # Strategies
//
// Requests are classified in order:
//
//  1. Cross-origin: passed through, never cached.
//  2. Non-GET: network only, never cached.
//  3. API (path contains the API marker, "/api/" by default): network first.
//     2xx responses are written through; on network failure the cached copy
//     is served, else a 503 JSON body {"error":"network unavailable","offline":true}.
//  4. Everything else: cache first. Misses go to the network and 200
//     same-origin responses are written through.
//
// # Fallbacks
//
// When neither the network nor the cache can answer, navigations get the
// cached offline page, images get an SVG placeholder and everything else
// gets 408 "Network error". Handle never returns an error.
//
// Write-through completes before the response is returned. A failed cache
// write is logged and counted; the live response is still served.
package interceptor
