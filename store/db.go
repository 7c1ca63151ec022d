package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

var ErrNotFound = errors.New("not found")

// Database wraps the Badger database
type Database struct {
	db        *badger.DB
	closeOnce sync.Once
	closeErr  error
}

// NewDatabase opens (or creates) a Badger database at path.
func NewDatabase(path string) (*Database, error) {
	// Remove any stale lock file left behind by a crashed process
	lockFile := filepath.Join(path, "LOCK")
	if err := os.Remove(lockFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing lock file: %v", err)
	}

	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithSyncWrites(true)
	return open(opts)
}

// NewInMemoryDatabase opens a Badger database that lives only in memory.
func NewInMemoryDatabase() (*Database, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	return open(opts)
}

func open(opts badger.Options) (*Database, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open Badger database: %v", err)
	}
	return &Database{db: db}, nil
}

func (d *Database) GetDB() *badger.DB {
	return d.db
}

// Set sets a key-value pair in the Badger database
func (d *Database) Set(key, value []byte) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Get retrieves a value for a given key, returning ErrNotFound when the
// key is absent.
func (d *Database) Get(key []byte) ([]byte, error) {
	var valCopy []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		valCopy, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return valCopy, err
}

// Delete deletes a key-value pair from the Badger database
func (d *Database) Delete(key []byte) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Close closes the Badger database. Later calls return the first result.
func (d *Database) Close() error {
	d.closeOnce.Do(func() {
		if d.db != nil {
			d.closeErr = d.db.Close()
		}
	})
	return d.closeErr
}
