package storage

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// memoryOptions keeps everything in RAM; used by tests and --ephemeral.
func memoryOptions() badger.Options {
	opts := badger.DefaultOptions("").
		WithValueDir("").
		WithDir("").
		WithInMemory(true).
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	return opts
}

// OpenDB opens the snapshot database at path. An empty path opens an
// in-memory database.
func OpenDB(path string) (*badger.DB, error) {
	if path == "" {
		db, err := badger.Open(memoryOptions())
		if err != nil {
			return nil, fmt.Errorf("opening in-memory database: %w", err)
		}
		return db, nil
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	opts := badger.DefaultOptions(path).
		WithNumVersionsToKeep(1).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return db, nil
}
