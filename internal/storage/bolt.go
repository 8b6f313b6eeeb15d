package storage

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var bucketSkip = []byte("skip")

// boltLockTimeout bounds the wait for another process holding the file lock
const boltLockTimeout = 2 * time.Second

// Bolt implements Storage on a single BoltDB bucket. The file is opened for
// each operation only, so several goskip processes can share one cache file:
// bolt's lock is exclusive while the file is open.
type Bolt struct {
	path string
}

// OpenBolt creates the BoltDB file at path and its bucket if needed
func OpenBolt(path string) (*Bolt, error) {
	s := &Bolt{path: path}
	err := s.update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSkip)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating bucket")
	}
	return s, nil
}

func (s *Bolt) open(readOnly bool) (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: boltLockTimeout, ReadOnly: readOnly})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.Wrapf(err, "bolt db %s is locked by another process", s.path)
		}
		return nil, errors.Wrap(err, "failed to open bolt db")
	}
	return db, nil
}

func (s *Bolt) view(fn func(tx *bolt.Tx) error) error {
	db, err := s.open(true)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.View(fn)
}

func (s *Bolt) update(fn func(tx *bolt.Tx) error) error {
	db, err := s.open(false)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

func (s *Bolt) Get(key string) (json.RawMessage, bool, error) {
	var data []byte
	err := s.view(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSkip)
		if b == nil {
			return nil
		}
		// Values are only valid for the life of the transaction
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "bolt get %q", key)
	}
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *Bolt) Set(key string, value json.RawMessage) error {
	err := s.update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketSkip)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
	return errors.Wrapf(err, "bolt set %q", key)
}

func (s *Bolt) Remove(key string) error {
	err := s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSkip)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	return errors.Wrapf(err, "bolt remove %q", key)
}

// ListKeys returns the keys starting with prefix in byte order
func (s *Bolt) ListKeys(prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := s.view(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSkip)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "bolt list keys")
	}
	return keys, nil
}

// Close is a no-op; the file is only held open during an operation
func (s *Bolt) Close() error {
	return nil
}
