// Package badger stores slots in an embedded badger database.
package badger

import (
	"context"
	stderr "errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v3"

	"github.com/objectfs/jailstore/internal/storage"
)

const keyPrefix = "slot/"

// Config configures a badger slot store.
type Config struct {
	// Directory holds the database files. Ignored when InMemory is set.
	Directory string
	// InMemory keeps the database in memory only.
	InMemory bool
	// MaxValueSize rejects larger values with ErrQuotaExceeded. Zero means
	// only badger's own limits apply.
	MaxValueSize int64
	Logger       *slog.Logger
}

// Store is a storage.SlotStore over badger.
type Store struct {
	db           *badger.DB
	maxValueSize int64
	logger       *slog.Logger
}

var _ storage.SlotStore = (*Store)(nil)

// New opens the database.
func New(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger-slots")

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Directory == "" {
			return nil, fmt.Errorf("badger slot store needs a directory")
		}
		if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Directory)
	}

	db, err := badger.Open(opts.WithLogger(newLogger(logger.WithGroup("db"))))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Info("badger slot store opened", "directory", cfg.Directory, "in_memory", cfg.InMemory)
	return &Store{db: db, maxValueSize: cfg.MaxValueSize, logger: logger}, nil
}

// Get returns the value of key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(slotKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if stderr.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrSlotNotFound, key)
		}
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}
	return value, nil
}

// Put replaces the value of key.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	if s.maxValueSize > 0 && int64(len(data)) > s.maxValueSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", storage.ErrQuotaExceeded, key, len(data), s.maxValueSize)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(slotKey(key), data)
	})
	if err != nil {
		if stderr.Is(err, badger.ErrTxnTooBig) {
			return fmt.Errorf("%w: %s: %v", storage.ErrQuotaExceeded, key, err)
		}
		return fmt.Errorf("badger put %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(slotKey(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		s.logger.Error("error closing badger database", "error", err)
		return err
	}
	return nil
}

func slotKey(key string) []byte {
	return []byte(keyPrefix + key)
}
