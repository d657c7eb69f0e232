// Package db is the local replica of workspace records: the stored record,
// optional locally created drafts, and the outbox of optimistic feature
// writes still awaiting the authority's confirmation.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	dataDir = ".wsmenu"
	dbFile  = "replica.db"
)

// ErrNotFound is returned when a workspace is not in the replica.
var ErrNotFound = errors.New("workspace not found")

// ErrWriteGone is returned for a write that was superseded or forgotten
// while it was in flight.
var ErrWriteGone = errors.New("write no longer queued")

// DB wraps the replica connection.
type DB struct {
	conn    *sql.DB
	baseDir string
}

// Path returns the replica file under baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, dataDir, dbFile)
}

// Open opens an existing replica and runs pending migrations.
func Open(baseDir string) (*DB, error) {
	dbPath := Path(baseDir)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("replica not found: run 'wsmenu init' first")
	}

	conn, err := openConn(dbPath)
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn, baseDir: baseDir}
	if _, err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Initialize creates the replica if needed and brings the schema current.
func Initialize(baseDir string) (*DB, error) {
	dbPath := Path(baseDir)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := openConn(dbPath)
	if err != nil {
		return nil, err
	}
	return initConn(conn, baseDir)
}

// FromConn builds a replica over an already open connection, creating the
// schema. No cross-process lock is taken; callers own the connection.
func FromConn(conn *sql.DB) (*DB, error) {
	// A pooled :memory: database would hand each connection its own copy.
	conn.SetMaxOpenConns(1)
	return initConn(conn, "")
}

func initConn(conn *sql.DB, baseDir string) (*DB, error) {
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	db := &DB{conn: conn, baseDir: baseDir}
	if _, err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func openConn(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	// Matches the write lock timeout.
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")
	return conn, nil
}

// Close closes the replica.
func (db *DB) Close() error {
	return db.conn.Close()
}

// BaseDir returns the directory holding the replica's data dir.
func (db *DB) BaseDir() string {
	return db.baseDir
}

// withWriteLock runs fn under the cross-process write lock.
func (db *DB) withWriteLock(fn func() error) error {
	if db.baseDir == "" {
		return fn()
	}
	locker := newWriteLocker(db.baseDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}

// inTx runs fn in a transaction under the write lock.
func (db *DB) inTx(fn func(tx *sql.Tx) error) error {
	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}
