// Package depcache stores, per build target, the content fingerprints of the
// dependencies it was built from, so a dependency whose bytes did not change
// does not force a rebuild when only its modification time moved.
package depcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/inful/mdfp"
	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Entry is the state of one dependency as it was when Target was last built
// from it.
type Entry struct {
	Target      string
	Path        string
	Fingerprint string
	ModTime     time.Time
}

// Store is a SQLite-backed table of dependency fingerprints keyed by the
// target they were built into.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the store at dbPath. ":memory:" keeps it in memory.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, storeError(err, "create dependency cache directory", dbPath)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storeError(err, "open dependency cache", dbPath)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, storeError(err, "initialize dependency cache", dbPath)
	}
	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS target_dependencies (
		target TEXT NOT NULL,
		path TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		mtime INTEGER NOT NULL,
		PRIMARY KEY (target, path)
	);`)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Fingerprint hashes the current content of path.
func Fingerprint(path string) (string, error) {
	// #nosec G304 -- dependency paths come from content configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return mdfp.CalculateFingerprintFromParts("", string(data)), nil
}

// Lookup returns the entry recorded when target was last built from dep.
func (s *Store) Lookup(ctx context.Context, target, dep string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Entry
	var mtime int64
	err := s.db.QueryRowContext(ctx,
		"SELECT target, path, fingerprint, mtime FROM target_dependencies WHERE target = ? AND path = ?",
		filepath.Clean(target), filepath.Clean(dep),
	).Scan(&e.Target, &e.Path, &e.Fingerprint, &mtime)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, storeError(err, "query dependency", dep)
	}
	e.ModTime = time.Unix(0, mtime)
	return e, true, nil
}

// Record stores the current fingerprint and modification time of each
// dependency against target. Call it only after target was built from deps.
// Missing dependencies are removed for that target.
func (s *Store) Record(ctx context.Context, target string, deps ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target = filepath.Clean(target)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(err, "begin transaction", "")
	}
	for _, p := range deps {
		p = filepath.Clean(p)
		st, statErr := os.Stat(p)
		if statErr != nil {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM target_dependencies WHERE target = ? AND path = ?", target, p); err != nil {
				_ = tx.Rollback()
				return storeError(err, "forget dependency", p)
			}
			continue
		}
		fp, err := Fingerprint(p)
		if err != nil {
			_ = tx.Rollback()
			return storeError(err, "fingerprint dependency", p)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO target_dependencies (target, path, fingerprint, mtime) VALUES (?, ?, ?, ?)
			 ON CONFLICT(target, path) DO UPDATE SET fingerprint = excluded.fingerprint, mtime = excluded.mtime`,
			target, p, fp, st.ModTime().UnixNano(),
		)
		if err != nil {
			_ = tx.Rollback()
			return storeError(err, "record dependency", p)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeError(err, "commit dependencies", target)
	}
	return nil
}

// Forget removes every entry recorded for the given targets.
func (s *Store) Forget(ctx context.Context, targets ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range targets {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM target_dependencies WHERE target = ?", filepath.Clean(t)); err != nil {
			return storeError(err, "forget target", t)
		}
	}
	return nil
}

// Len returns the number of recorded target and dependency pairs.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM target_dependencies").Scan(&n); err != nil {
		return 0, storeError(err, "count dependencies", "")
	}
	return n, nil
}

func storeError(err error, msg, path string) error {
	b := ferrors.WrapError(err, ferrors.CategoryDepCache, msg)
	if path != "" {
		b = b.WithContext("path", path)
	}
	return b.Build()
}

func (e Entry) String() string {
	return fmt.Sprintf("%s <- %s@%s", e.Target, e.Path, e.Fingerprint)
}
