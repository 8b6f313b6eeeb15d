// Package storage provides the durable key/value tier used by the timing cache.
// Values are opaque JSON documents.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Backend names accepted by Open
const (
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var (
	// ErrUnknownBackend is returned by Open for an unsupported backend name
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrCgoDisabled is returned when the sqlite backend is requested in a build without cgo
	ErrCgoDisabled = errors.New("CGO disabled: sqlite storage not available")
)

// Storage is a durable string-keyed store of JSON values.
type Storage interface {
	// Get returns the value for key; ok is false when the key is absent
	Get(key string) (value json.RawMessage, ok bool, err error)
	Set(key string, value json.RawMessage) error
	Remove(key string) error
	// ListKeys returns the keys starting with prefix; "" lists every key
	ListKeys(prefix string) ([]string, error)
	Close() error
}

// Open creates the storage for backend. path is a file path for bolt and
// sqlite, a redis:// URL for redis, a DSN for postgres, and ignored by the
// memory backend.
func Open(backend, path string) (Storage, error) {
	switch strings.ToLower(backend) {
	case BackendMemory:
		return NewMemory(), nil
	case BackendBolt, "":
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		db, err := OpenBolt(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendSQLite:
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendRedis:
		db, err := OpenRedis(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendPostgres:
		db, err := OpenPostgres(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, errors.Wrapf(ErrUnknownBackend, "backend %q", backend)
}

func ensureDir(path string) error {
	if path == "" {
		return errors.New("storage path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "creating storage directory")
	}
	return nil
}
