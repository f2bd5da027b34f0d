// Package sqlite persists the calendar document as a single versioned row in
// an embedded SQLite database, for single-host deployments that want local
// durability without an object store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"agendacore/internal/migrate"
	"agendacore/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS agenda_document (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    payload BLOB NOT NULL,
    version INTEGER NOT NULL,
    updated_at TEXT NOT NULL
);`

// Store implements domain.DocumentStore over a SQLite file. The document
// lives in one row; version increments on every write and doubles as the
// revision token.
type Store struct {
	db *sql.DB
}

var _ domain.DocumentStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the
// schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, &domain.StorageError{Op: "open", Err: errors.New("sqlite path is required")}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	// The single-row access pattern gains nothing from connection
	// parallelism, and a single connection sidesteps SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads and decodes the document row, creating an empty document when
// the row is absent and upgrading legacy payloads in place.
func (s *Store) Load(ctx context.Context) (domain.Document, domain.Revision, error) {
	var (
		payload []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT payload, version FROM agenda_document WHERE id = 1`).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		doc := domain.NewDocument()
		rev, saveErr := s.Save(ctx, doc, "")
		if saveErr != nil {
			return domain.Document{}, "", saveErr
		}
		return doc, rev, nil
	}
	if err != nil {
		return domain.Document{}, "", &domain.StorageError{Op: "load", Err: err}
	}

	doc, migrated, err := migrate.Decode(payload)
	if err != nil {
		return domain.Document{}, "", err
	}
	if migrated {
		rev, saveErr := s.Save(ctx, doc, "")
		if saveErr != nil {
			return domain.Document{}, "", saveErr
		}
		return doc, rev, nil
	}
	return doc, domain.Revision(strconv.FormatInt(version, 10)), nil
}

// Save writes the document, bumping the version. A non-empty expected
// revision turns the write into a compare-and-swap on the version column.
func (s *Store) Save(ctx context.Context, doc domain.Document, expected domain.Revision) (domain.Revision, error) {
	payload, err := domain.EncodeDocument(doc)
	if err != nil {
		return "", &domain.StorageError{Op: "save", Err: err}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if expected != "" {
		want, err := strconv.ParseInt(string(expected), 10, 64)
		if err != nil {
			return "", &domain.StorageError{Op: "save", Err: fmt.Errorf("malformed revision %q", expected)}
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE agenda_document SET payload = ?, version = version + 1, updated_at = ? WHERE id = 1 AND version = ?`,
			payload, now, want)
		if err != nil {
			return "", &domain.StorageError{Op: "save", Err: err}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return "", &domain.StorageError{Op: "save", Err: err}
		}
		if affected == 0 {
			return "", &domain.StorageError{Op: "save", Err: domain.ErrRevisionConflict}
		}
		return domain.Revision(strconv.FormatInt(want+1, 10)), nil
	}

	var next int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO agenda_document (id, payload, version, updated_at) VALUES (1, ?, 1, ?)
		 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, version = agenda_document.version + 1, updated_at = excluded.updated_at
		 RETURNING version`,
		payload, now).Scan(&next)
	if err != nil {
		return "", &domain.StorageError{Op: "save", Err: err}
	}
	return domain.Revision(strconv.FormatInt(next, 10)), nil
}
