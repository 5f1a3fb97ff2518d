package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesAllColumnFamilies(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(false)
	require.NoError(t, err)
	defer txn.Rollback()

	for _, cf := range allColumnFamilies {
		_, err := txn.bucket(cf)
		assert.NoError(t, err, "column family %q should exist", cf)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reopen")
	s1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	txn, err := s2.Begin(false)
	require.NoError(t, err)
	defer txn.Rollback()
	_, err = txn.bucket(Tasks)
	assert.NoError(t, err)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Put(Tasks, "task-1", []byte("payload")))
	require.NoError(t, txn.Commit())

	err = s.View(func(txn *Txn) error {
		v, ok, err := txn.Get(Tasks, "task-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("payload"), v)
		return nil
	})
	require.NoError(t, err)
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.View(func(txn *Txn) error {
		v, ok, err := txn.Get(Tasks, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
		return nil
	})
	require.NoError(t, err)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Put(Tasks, "task-1", []byte("payload")))
	require.NoError(t, txn.Rollback())

	err = s.View(func(txn *Txn) error {
		_, ok, err := txn.Get(Tasks, "task-1")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}
