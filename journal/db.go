package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

const driver = "sqlite"

// openDB opens path with WAL, busy_timeout 10s and synchronous NORMAL.
func openDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal: mkdir: %w", err)
		}
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	return db, nil
}

// OpenMemory opens a store over an in-memory database for tests. The
// database outlives Close so queued entries can be read back after it, and
// is closed when the test ends. A single connection keeps every query on
// the same database.
func OpenMemory(t testing.TB, opts ...Option) *Store {
	t.Helper()
	db, err := openDB(":memory:")
	if err != nil {
		t.Fatalf("journal.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	s, err := newStore(db, false, opts...)
	if err != nil {
		db.Close()
		t.Fatalf("journal.OpenMemory: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		db.Close()
	})
	return s
}

// isBusy reports whether err is an SQLite BUSY or locked condition.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

const maxRetries = 3

// runTx runs fn in a transaction, retrying on BUSY with 100/200 ms backoff.
func runTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var err error
	for i := range maxRetries {
		if err = txOnce(ctx, db, fn); err == nil || !isBusy(err) || i == maxRetries-1 {
			return err
		}
		t := time.NewTimer(time.Duration(100*(i+1)) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("journal: retry: %w", ctx.Err())
		case <-t.C:
		}
	}
	return err
}

func txOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}
	return nil
}
