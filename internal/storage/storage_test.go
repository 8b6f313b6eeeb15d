package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStorage runs the same contract checks against any backend
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("goskip:a", json.RawMessage(`{"n":1}`)))
	require.NoError(t, s.Set("goskip:b", json.RawMessage(`{"n":2}`)))
	require.NoError(t, s.Set("other:c", json.RawMessage(`"x"`)))

	v, ok, err := s.Get("goskip:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"n":1}`, string(v))

	// Overwrite
	require.NoError(t, s.Set("goskip:a", json.RawMessage(`{"n":3}`)))
	v, _, err = s.Get("goskip:a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3}`, string(v))

	keys, err := s.ListKeys("")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"goskip:a", "goskip:b", "other:c"}, keys)

	keys, err = s.ListKeys("goskip:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"goskip:a", "goskip:b"}, keys)

	keys, err = s.ListKeys("nothing:")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.Remove("goskip:b"))
	require.NoError(t, s.Remove("never-existed"))
	_, ok, err = s.Get("goskip:b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	exerciseStorage(t, s)
	assert.NoError(t, s.Close())
}

func TestMemoryStorage_CopiesValues(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	buf := json.RawMessage(`"abc"`)
	require.NoError(t, s.Set("k", buf))
	buf[1] = 'z'

	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"abc"`, string(v))
}

func TestBoltStorage(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := OpenBolt(path)
	require.NoError(t, err)
	exerciseStorage(t, s)
	require.NoError(t, s.Close())

	// Data survives reopening
	s, err = OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get("goskip:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"n":3}`, string(v))
}

func TestBoltStorage_SharedPath(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := Open(BackendBolt, path)
	require.NoError(t, err)
	defer first.Close()

	// a second goskip process on the same cache file
	second, err := Open(BackendBolt, path)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Set("goskip:a", json.RawMessage(`1`)))
	require.NoError(t, second.Set("goskip:b", json.RawMessage(`2`)))

	v, ok, err := second.Get("goskip:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `1`, string(v))

	require.NoError(t, second.Remove("goskip:a"))
	keys, err := first.ListKeys("goskip:")
	require.NoError(t, err)
	assert.Equal(t, []string{"goskip:b"}, keys)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("memory", func(t *testing.T) {
		s, err := Open(BackendMemory, "")
		require.NoError(t, err)
		assert.IsType(t, &Memory{}, s)
	})

	t.Run("bolt creates parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "cache.db")
		s, err := Open(BackendBolt, path)
		require.NoError(t, err)
		defer s.Close()
		assert.FileExists(t, path)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open("mongo", "x")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Open(BackendBolt, "")
		require.Error(t, err)
	})
}
