//go:build cgo

package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "cache.sqlite")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	exerciseStorage(t, s)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer func() {
		if err := s.Close(); err != nil {
			t.Logf("Error closing storage: %v", err)
		}
	}()

	keys, err := s.ListKeys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"goskip:a", "other:c"}, keys)
}
