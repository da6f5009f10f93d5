// Package cache manages versioned generations of cached HTTP responses.
//
// A generation is named "<prefix>-v<version>". Exactly one name is current
// for a running worker; every other generation is stale and is deleted on
// activation.
//
// # Lifecycle
//
//	parsed -> installing -> installed -> activating -> active
//	               \
//	                -> redundant (failed install, may be retried)
//
// Install fetches every manifest asset from the origin and writes them in
// one transaction. A single failed or non-2xx fetch writes nothing and
// returns an *InstallError naming the failing paths; the newest generation
// from an earlier run keeps serving.
//
// # Storage
//
// Storage and Generation abstract where responses live. SQLiteStorage keeps
// them in the worker's cache database; MemoryStorage is used by tests.
//
// # Manifest
//
//	assets = ["/", "/index.html", "/manifest.json"]
//	offline_page = "/offline.html"   # optional, must be listed in assets
//
// Without offline_page the embedded offline page is stored at /offline.html.
package cache
