//go:build !cgo_sqlite

package sqlite

import (
	"net/url"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)

// dsn builds a modernc.org/sqlite data source name.
// _txlock=immediate makes BEGIN take the write lock up front.
func dsn(path string, busyTimeoutMS int) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout("+itoa(busyTimeoutMS)+")")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}
