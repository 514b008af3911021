// Package pins keeps the pinned notes and folders of a vault in a small
// SQLite database.
package pins

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/notetree/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pins (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	path      TEXT NOT NULL UNIQUE,
	pinned_at INTEGER NOT NULL
)`

// Store is a SQLite backed pin list. It satisfies tree.PinStore and
// tree.PinRemapper.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the pin database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating pin directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open pin database: %w", err)
	}
	// One writer keeps the remap transactions simple.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating pin schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Pin adds path. Pinning twice keeps the original position.
func (s *Store) Pin(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pins (path, pinned_at) VALUES (?, ?) ON CONFLICT(path) DO NOTHING`,
		path, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("pin %s: %w", path, err)
	}
	return nil
}

// Unpin removes path. Unpinning an unknown path is not an error.
func (s *Store) Unpin(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pins WHERE path = ?`, path); err != nil {
		return fmt.Errorf("unpin %s: %w", path, err)
	}
	return nil
}

// List returns pins in the order they were added.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM pins ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing pins: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("listing pins: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RemapPrefix rewrites every pin at or below oldPrefix to live under
// newPrefix. Pins keep their position.
func (s *Store) RemapPrefix(ctx context.Context, oldPrefix, newPrefix string) error {
	return s.rewrite(ctx, oldPrefix, func(tx *sql.Tx, p string) error {
		np, _ := model.RewritePrefix(p, oldPrefix, newPrefix)
		// A pin already at the destination wins.
		if _, err := tx.ExecContext(ctx, `DELETE FROM pins WHERE path = ?`, np); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE pins SET path = ? WHERE path = ?`, np, p)
		return err
	})
}

// DeletePrefix drops every pin at or below prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	return s.rewrite(ctx, prefix, func(tx *sql.Tx, p string) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM pins WHERE path = ?`, p)
		return err
	})
}

// rewrite applies fn to each pin at or below prefix inside one transaction.
// Matching is separator aware, so it is done here rather than with LIKE.
func (s *Store) rewrite(ctx context.Context, prefix string, fn func(*sql.Tx, string) error) error {
	if prefix == model.RootPath {
		return fmt.Errorf("refusing to rewrite pins for the vault root")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT path FROM pins`)
	if err != nil {
		return err
	}
	var matched []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return err
		}
		if model.IsSelfOrDescendant(p, prefix) {
			matched = append(matched, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range matched {
		if err := fn(tx, p); err != nil {
			return fmt.Errorf("rewriting pin %s: %w", p, err)
		}
	}
	return tx.Commit()
}
