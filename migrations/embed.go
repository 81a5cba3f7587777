// Package migrations carries the bootstrap SQL for the engine's own
// bookkeeping tables. The managed domain tables are not defined here; they
// are reconciled at runtime by pkg/migrate from the model definitions.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// FS returns the embedded migration sources.
func FS() fs.FS {
	return files
}
