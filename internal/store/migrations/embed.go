// Package migrations contains the embedded, additive-only schema migrations
// for the local entry database.
package migrations

import "embed"

// Files exposes the compiled-in migration SQL files.
//
//go:embed *.sql
var Files embed.FS
