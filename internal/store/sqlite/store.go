// Package sqlite implements the store contract over a relational SQLite
// database. Nodes and edges are flat records with foreign keys to their
// owning version; traversal runs over (endpoint, relationship_type) indexes.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Write transactions open with BEGIN IMMEDIATE so lock contention surfaces
// at begin time; a busy/locked database maps to CONFLICT_DETECTED.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/crafthaus/methodgraph/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store is a relational store backend.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically; safe to call on an
// existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids spurious SQLITE_BUSY between this process's own writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// WithTransaction runs fn inside an IMMEDIATE write transaction. Lock
// contention at begin or commit time maps to CONFLICT_DETECTED.
func (s *Store) WithTransaction(ctx context.Context, versionID string, fn func(tx store.Tx) error) error {
	// BEGIN IMMEDIATE takes the write lock up front so two writers collide
	// at begin rather than at first write.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return mapSQLiteErr(versionID, fmt.Errorf("begin transaction: %w", err))
	}

	tx := &sqlTx{ctx: ctx, conn: conn}
	if err := fn(tx); err != nil {
		if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		conn.ExecContext(ctx, "ROLLBACK")
		return mapSQLiteErr(versionID, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// TouchMethodology updates the last-access timestamp. Failures come back as
// AUXILIARY_FAILURE for the caller to log; the row not existing is not an
// error worth reporting at all.
func (s *Store) TouchMethodology(ctx context.Context, methodologyID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE methodologies SET last_accessed_at = ? WHERE id = ?
	`, timeToText(time.Now().UTC()), methodologyID)
	if err != nil {
		return store.Auxiliary("touch methodology", err)
	}
	return nil
}

// mapSQLiteErr converts busy/locked driver errors into the engine's conflict
// error; anything else passes through.
func mapSQLiteErr(versionID string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		if se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked {
			return store.Conflict(versionID, err)
		}
	}
	return err
}
