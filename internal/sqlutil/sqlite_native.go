//go:build !cgo
// +build !cgo

package sqlutil

import (
	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// modernc takes pragmas as query parameters.
// https://gitlab.com/cznic/sqlite/-/issues/106#note_1058094993
func sqliteDSNExtension(dsn string) string {
	return withQueryParam(dsn, "_pragma=busy_timeout%3d10000")
}
