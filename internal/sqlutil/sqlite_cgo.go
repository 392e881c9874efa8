//go:build cgo
// +build cgo

package sqlutil

import (
	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriverName = "sqlite3"

// Lock waits are handled by mattn's own busy handler.
func sqliteDSNExtension(dsn string) string {
	return withQueryParam(dsn, "_busy_timeout=10000")
}
