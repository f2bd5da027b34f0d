// Package postgres persists the calendar document as a single versioned row
// in PostgreSQL, for deployments that already run a relational database and
// want transactional revision checks instead of object-store ETags.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"agendacore/internal/migrate"
	"agendacore/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS agenda_document (
    id SMALLINT PRIMARY KEY CHECK (id = 1),
    payload JSONB NOT NULL,
    version BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store implements domain.DocumentStore over PostgreSQL. The document lives
// in one JSONB row; version increments on every write and doubles as the
// revision token.
type Store struct {
	db *sql.DB
}

var _ domain.DocumentStore = (*Store)(nil)

// Open connects with the given DSN and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, &domain.StorageError{Op: "open", Err: errors.New("postgres dsn is required")}
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
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

	if expected != "" {
		want, err := strconv.ParseInt(string(expected), 10, 64)
		if err != nil {
			return "", &domain.StorageError{Op: "save", Err: fmt.Errorf("malformed revision %q", expected)}
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE agenda_document SET payload = $1, version = version + 1, updated_at = now() WHERE id = 1 AND version = $2`,
			payload, want)
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
		`INSERT INTO agenda_document (id, payload, version) VALUES (1, $1, 1)
		 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, version = agenda_document.version + 1, updated_at = now()
		 RETURNING version`,
		payload).Scan(&next)
	if err != nil {
		return "", &domain.StorageError{Op: "save", Err: err}
	}
	return domain.Revision(strconv.FormatInt(next, 10)), nil
}
