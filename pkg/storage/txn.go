package storage

import (
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/coordinator/pkg/cerrors"
)

// Txn wraps one bbolt transaction, scoped to a single Store. Callers obtain
// one from Store.Begin and must call Commit or Rollback exactly once.
type Txn struct {
	tx *bolt.Tx
}

func (t *Txn) bucket(cf CF) (*bolt.Bucket, error) {
	b := t.tx.Bucket([]byte(cf))
	if b == nil {
		return nil, cerrors.NewDatabaseError("column family %q not found", cf)
	}
	return b, nil
}

// Get returns the raw value for key in cf, or (nil, false) if absent.
func (t *Txn) Get(cf CF, key string) ([]byte, bool, error) {
	b, err := t.bucket(cf)
	if err != nil {
		return nil, false, err
	}
	v := b.Get([]byte(key))
	if v == nil {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// MultiGet returns one value per key, in order, with ok=false for any key
// that is absent rather than failing the whole call.
func (t *Txn) MultiGet(cf CF, keys []string) ([][]byte, []bool, error) {
	b, err := t.bucket(cf)
	if err != nil {
		return nil, nil, err
	}
	values := make([][]byte, len(keys))
	found := make([]bool, len(keys))
	for i, key := range keys {
		v := b.Get([]byte(key))
		if v == nil {
			continue
		}
		out := make([]byte, len(v))
		copy(out, v)
		values[i] = out
		found[i] = true
	}
	return values, found, nil
}

// Put writes value under key in cf, overwriting any existing row.
func (t *Txn) Put(cf CF, key string, value []byte) error {
	b, err := t.bucket(cf)
	if err != nil {
		return err
	}
	if err := b.Put([]byte(key), value); err != nil {
		return cerrors.NewDatabaseError("put into %q: %v", cf, err)
	}
	return nil
}

// Delete removes key from cf. Deleting an absent key is a no-op, matching
// bbolt semantics.
func (t *Txn) Delete(cf CF, key string) error {
	b, err := t.bucket(cf)
	if err != nil {
		return err
	}
	if err := b.Delete([]byte(key)); err != nil {
		return cerrors.NewDatabaseError("delete from %q: %v", cf, err)
	}
	return nil
}

// IteratePrefix calls fn for every key in cf with the given prefix, in
// ascending byte order, stopping early if fn returns an error. Used for
// content-table version scans keyed "<id>::v<version>" (pkg/ids.Prefix).
func (t *Txn) IteratePrefix(cf CF, prefix string, fn func(key string, value []byte) error) error {
	b, err := t.bucket(cf)
	if err != nil {
		return err
	}
	c := b.Cursor()
	p := []byte(prefix)
	for k, v := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
		if err := fn(string(k), v); err != nil {
			return err
		}
	}
	return nil
}

// ForEach calls fn for every row in cf, in ascending key order. Used for
// full-column-family scans such as get_all_task_assignments.
func (t *Txn) ForEach(cf CF, fn func(key string, value []byte) error) error {
	b, err := t.bucket(cf)
	if err != nil {
		return err
	}
	return b.ForEach(func(k, v []byte) error {
		return fn(string(k), v)
	})
}

// Commit finalizes a writable transaction. bbolt refuses to commit a
// read-only transaction and returns an error; read-only transactions are
// released with Rollback instead.
func (t *Txn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return cerrors.NewTransactionError("commit: %v", err)
	}
	return nil
}

// Rollback discards the transaction. Safe to call after Commit has already
// been called; bbolt returns ErrTxClosed which this ignores.
func (t *Txn) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && err != bolt.ErrTxClosed {
		return cerrors.NewTransactionError("rollback: %v", err)
	}
	return nil
}

// Writable reports whether this transaction may mutate the store.
func (t *Txn) Writable() bool {
	return t.tx.Writable()
}
