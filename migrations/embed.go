// Package migrations carries the schema files compiled into the binary
package migrations

import "embed"

// Files holds every numbered .sql migration
//
//go:embed *.sql
var Files embed.FS
