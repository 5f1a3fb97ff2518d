package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/coordinator/pkg/ids"
)

func TestMultiGetReportsMissingIndividually(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Put(Tasks, "a", []byte("1")))
	require.NoError(t, txn.Put(Tasks, "c", []byte("3")))
	require.NoError(t, txn.Commit())

	err = s.View(func(txn *Txn) error {
		values, found, err := txn.MultiGet(Tasks, []string{"a", "b", "c"})
		require.NoError(t, err)
		require.Len(t, values, 3)
		assert.True(t, found[0])
		assert.False(t, found[1])
		assert.True(t, found[2])
		assert.Equal(t, []byte("1"), values[0])
		assert.Equal(t, []byte("3"), values[2])
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteIsNoOpOnMissingKey(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	assert.NoError(t, txn.Delete(Tasks, "missing"))
	require.NoError(t, txn.Commit())
}

func TestIteratePrefixOrdersByNumericSuffixLexically(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	id := ids.ContentId{ID: "doc-1"}
	for _, v := range []uint64{1, 2, 10} {
		id.Version = v
		require.NoError(t, txn.Put(ContentTable, id.Key(), []byte("v")))
	}
	require.NoError(t, txn.Put(ContentTable, "doc-2::v1", []byte("other")))
	require.NoError(t, txn.Commit())

	var seen []string
	err = s.View(func(txn *Txn) error {
		return txn.IteratePrefix(ContentTable, ids.Prefix("doc-1"), func(key string, _ []byte) error {
			seen = append(seen, key)
			return nil
		})
	})
	require.NoError(t, err)
	// bbolt's cursor walks byte order, so "doc-1::v10" sorts before
	// "doc-1::v2" lexically — callers must parse the numeric suffix
	// themselves (pkg/ids.ParseVersionSuffix) rather than rely on iteration
	// order for version comparison.
	assert.Len(t, seen, 3)
	for _, k := range seen {
		assert.Contains(t, k, "doc-1::v")
	}
	assert.Equal(t, []string{"doc-1::v1", "doc-1::v10", "doc-1::v2"}, seen)
}

func TestForEachVisitsEveryRow(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Put(Executors, "e1", []byte("1")))
	require.NoError(t, txn.Put(Executors, "e2", []byte("2")))
	require.NoError(t, txn.Commit())

	count := 0
	err = s.View(func(txn *Txn) error {
		return txn.ForEach(Executors, func(_ string, _ []byte) error {
			count++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCommitThenRollbackIsSafe(t *testing.T) {
	s := openTestStore(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())
	assert.NoError(t, txn.Rollback())
}

func TestWritable(t *testing.T) {
	s := openTestStore(t)

	wtxn, err := s.Begin(true)
	require.NoError(t, err)
	assert.True(t, wtxn.Writable())
	require.NoError(t, wtxn.Rollback())

	rtxn, err := s.Begin(false)
	require.NoError(t, err)
	assert.False(t, rtxn.Writable())
	require.NoError(t, rtxn.Rollback())
}
