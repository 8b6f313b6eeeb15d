//go:build cgo

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// IsCgoEnabled reports whether the sqlite backend is compiled in
const IsCgoEnabled = true

const (
	busyTimeout       = 5000 // milliseconds
	walAutoCheckpoint = 1000 // pages
	maxOpenConns      = 2
)

// SQLite implements Storage on a single key/value table.
type SQLite struct {
	db       *sql.DB
	getPS    *sql.Stmt
	upsertPS *sql.Stmt
	deletePS *sql.Stmt
	keysPS   *sql.Stmt
}

// OpenSQLite opens (or creates) the database file at path
func OpenSQLite(path string) (*SQLite, error) {
	if runtime.GOOS == "windows" {
		path = strings.ReplaceAll(path, "\\", "/")
	}
	dsn := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_synchronous=NORMAL&_wal_autocheckpoint=%d&_busy_timeout=%d",
		path, walAutoCheckpoint, busyTimeout,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	db.SetMaxOpenConns(maxOpenConns)

	schema := `CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "schema creation failed")
	}

	s := &SQLite{db: db}
	if err := s.prepare(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) prepare() error {
	var err error
	if s.getPS, err = s.db.Prepare(`SELECT value FROM kv WHERE key = ?`); err != nil {
		return errors.Wrap(err, "get preparation failed")
	}
	if s.upsertPS, err = s.db.Prepare(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`); err != nil {
		return errors.Wrap(err, "upsert preparation failed")
	}
	if s.deletePS, err = s.db.Prepare(`DELETE FROM kv WHERE key = ?`); err != nil {
		return errors.Wrap(err, "delete preparation failed")
	}
	if s.keysPS, err = s.db.Prepare(`SELECT key FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key`); err != nil {
		return errors.Wrap(err, "keys preparation failed")
	}
	return nil
}

func (s *SQLite) Get(key string) (json.RawMessage, bool, error) {
	var value []byte
	err := s.getPS.QueryRow(key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "sqlite get %q", key)
	}
	return value, true, nil
}

func (s *SQLite) Set(key string, value json.RawMessage) error {
	_, err := s.upsertPS.Exec(key, []byte(value))
	return errors.Wrapf(err, "sqlite set %q", key)
}

func (s *SQLite) Remove(key string) error {
	_, err := s.deletePS.Exec(key)
	return errors.Wrapf(err, "sqlite remove %q", key)
}

func (s *SQLite) ListKeys(prefix string) ([]string, error) {
	rows, err := s.keysPS.Query(prefix, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite list keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "row scan failed")
		}
		keys = append(keys, k)
	}
	return keys, errors.Wrap(rows.Err(), "rows iteration failed")
}

func (s *SQLite) Close() error {
	var finalErr error

	for name, stmt := range map[string]*sql.Stmt{
		"get":    s.getPS,
		"upsert": s.upsertPS,
		"delete": s.deletePS,
		"keys":   s.keysPS,
	} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				finalErr = fmt.Errorf("%s statement close error: %w", name, err)
			}
		}
	}

	if err := s.db.Close(); err != nil {
		finalErr = fmt.Errorf("database close error: %w", err)
	}
	return finalErr
}
