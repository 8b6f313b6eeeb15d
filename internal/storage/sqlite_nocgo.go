//go:build !cgo

package storage

// IsCgoEnabled reports whether the sqlite backend is compiled in
const IsCgoEnabled = false

// SQLite is unavailable without cgo; OpenSQLite always fails.
type SQLite struct{ Memory }

func OpenSQLite(string) (*SQLite, error) {
	return nil, ErrCgoDisabled
}
