//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3.
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package sqlite

import (
	"net/url"

	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
)

const (
	driverName    = "sqlite3"
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3"
)

func dsn(path string, busyTimeoutMS int) string {
	q := url.Values{}
	q.Set("_busy_timeout", itoa(busyTimeoutMS))
	q.Set("_foreign_keys", "1")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}
