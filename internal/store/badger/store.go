// Package badger implements the store contract over BadgerDB, treating
// nodes and edges as first-class graph primitives: records live under
// version-scoped keys and every edge maintains adjacency index entries on
// both endpoints, so traversal is a prefix scan.
//
// Badger transactions are serializable and optimistic: concurrent writers
// touching the same keys collide at commit, which maps directly onto the
// contract's CONFLICT_DETECTED semantics.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/crafthaus/methodgraph/internal/store"
)

// Config holds configuration for a badger-backed store.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is set.
	Path string

	// InMemory disables disk persistence. Used by tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// Store is a graph-engine store backend.
type Store struct {
	db *badger.DB
}

var _ store.Store = (*Store)(nil)

// dbLogger adapts slog.Logger to badger's Logger interface.
type dbLogger struct {
	logger *slog.Logger
}

func (l *dbLogger) Errorf(format string, args ...any)   { l.logger.Error(fmt.Sprintf(format, args...)) }
func (l *dbLogger) Warningf(format string, args ...any) { l.logger.Warn(fmt.Sprintf(format, args...)) }
func (l *dbLogger) Infof(format string, args ...any)    { l.logger.Info(fmt.Sprintf(format, args...)) }
func (l *dbLogger) Debugf(format string, args ...any)   { l.logger.Debug(fmt.Sprintf(format, args...)) }

// Open creates or opens a badger database per the config.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger store: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&dbLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTransaction runs fn in a serializable read-write transaction.
// Commit-time collisions map to CONFLICT_DETECTED.
func (s *Store) WithTransaction(ctx context.Context, versionID string, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
	if errors.Is(err, badger.ErrConflict) {
		return store.Conflict(versionID, err)
	}
	return err
}

// TouchMethodology updates the last-access timestamp best-effort.
func (s *Store) TouchMethodology(ctx context.Context, methodologyID string) error {
	if err := ctx.Err(); err != nil {
		return store.Auxiliary("touch methodology", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		m, err := getMethodology(txn, methodologyID)
		if err != nil {
			if store.IsNotFound(err) {
				return nil
			}
			return err
		}
		m.LastAccessedAt = time.Now().UTC()
		return putMethodology(txn, m)
	})
	if err != nil {
		return store.Auxiliary("touch methodology", err)
	}
	return nil
}
