package storage

import (
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/coordinator/pkg/cerrors"
)

// Store is the persistent key-value store, one bbolt database with one
// bucket per column family.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt database under dataDir and
// ensures every required column family exists.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dataDir, "coordinator.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, cf := range allColumnFamilies {
			if _, err := tx.CreateBucketIfNotExists([]byte(cf)); err != nil {
				return fmt.Errorf("create column family %q: %w", cf, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts a new transaction. Writable transactions are serialized by
// bbolt itself; the Apply Engine never opens more than one at a time
// because the consensus log serializes applies.
func (s *Store) Begin(writable bool) (*Txn, error) {
	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, cerrors.NewTransactionError("begin transaction: %v", err)
	}
	return &Txn{tx: tx}, nil
}

// View runs fn in a read-only transaction, rolling back afterward (bbolt
// read-only transactions are released with Rollback, not Commit).
func (s *Store) View(fn func(*Txn) error) error {
	txn, err := s.Begin(false)
	if err != nil {
		return err
	}
	defer txn.Rollback()
	return fn(txn)
}
