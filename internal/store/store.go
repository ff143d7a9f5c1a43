// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/flashdeck/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for the key-value records and the response
// cache namespaces.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer; keeps whole-record replacements serialized.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cache_namespaces (
			name TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cache_entries (
			namespace TEXT NOT NULL,
			url TEXT NOT NULL,
			status INTEGER NOT NULL,
			header TEXT NOT NULL,
			body BLOB NOT NULL,
			stored_at TEXT NOT NULL,
			PRIMARY KEY (namespace, url)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_url ON cache_entries(url);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

// Set replaces the value stored under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove key %s: %w", key, err)
	}
	return nil
}

// Namespaces lists the existing cache namespaces in creation order.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM cache_namespaces ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// HasNamespace reports whether the namespace exists.
func (s *Store) HasNamespace(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_namespaces WHERE name = ?`, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// OpenNamespace creates the namespace if it does not exist yet.
func (s *Store) OpenNamespace(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO cache_namespaces (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to open namespace %s: %w", name, err)
	}
	return nil
}

// DeleteNamespace removes the namespace and every entry in it.
func (s *Store) DeleteNamespace(ctx context.Context, name string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ?`, name); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM cache_namespaces WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

// PutResponses stores every response in the namespace in one transaction,
// creating the namespace when needed. Either all responses are stored or
// none are.
func (s *Store) PutResponses(ctx context.Context, namespace string, responses []model.StoredResponse) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO cache_namespaces (name, created_at) VALUES (?, ?)`,
		namespace, now.Format(time.RFC3339Nano)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cache_entries (namespace, url, status, header, body, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, url) DO UPDATE SET
			status = excluded.status,
			header = excluded.header,
			body = excluded.body,
			stored_at = excluded.stored_at`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	for _, resp := range responses {
		header, merr := json.Marshal(resp.Header)
		if merr != nil {
			err = fmt.Errorf("failed to encode header for %s: %w", resp.URL, merr)
			return err
		}
		storedAt := resp.StoredAt
		if storedAt.IsZero() {
			storedAt = now
		}
		body := resp.Body
		if body == nil {
			body = []byte{}
		}
		if _, err = stmt.ExecContext(ctx, namespace, resp.URL, resp.Status, string(header), body, storedAt.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// PutResponse stores a single response in the namespace.
func (s *Store) PutResponse(ctx context.Context, namespace string, resp model.StoredResponse) error {
	return s.PutResponses(ctx, namespace, []model.StoredResponse{resp})
}

// MatchResponse looks up url in one namespace.
func (s *Store) MatchResponse(ctx context.Context, namespace, url string) (model.StoredResponse, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT url, status, header, body, stored_at FROM cache_entries
		 WHERE namespace = ? AND url = ?`, namespace, url)
	return scanResponse(row)
}

// MatchAny looks up url across every namespace, oldest namespace first.
func (s *Store) MatchAny(ctx context.Context, url string) (model.StoredResponse, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT e.url, e.status, e.header, e.body, e.stored_at
		 FROM cache_entries e
		 JOIN cache_namespaces n ON n.name = e.namespace
		 WHERE e.url = ?
		 ORDER BY n.created_at ASC, n.name ASC
		 LIMIT 1`, url)
	return scanResponse(row)
}

// CountResponses returns the number of entries in the namespace.
func (s *Store) CountResponses(ctx context.Context, namespace string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries WHERE namespace = ?`, namespace).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanResponse(row *sql.Row) (model.StoredResponse, bool, error) {
	var resp model.StoredResponse
	var header, storedAt string
	err := row.Scan(&resp.URL, &resp.Status, &header, &resp.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StoredResponse{}, false, nil
	}
	if err != nil {
		return model.StoredResponse{}, false, err
	}
	if err := json.Unmarshal([]byte(header), &resp.Header); err != nil {
		return model.StoredResponse{}, false, fmt.Errorf("failed to decode header for %s: %w", resp.URL, err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, storedAt)
	if err != nil {
		return model.StoredResponse{}, false, err
	}
	resp.StoredAt = parsed
	return resp, true, nil
}
