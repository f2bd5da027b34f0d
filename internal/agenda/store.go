package agenda

import (
	"bytes"
	"context"
	"errors"
	"io"

	"agendacore/internal/blob"
	"agendacore/internal/migrate"
	"agendacore/pkg/domain"
)

// DefaultObjectKey is the object name used for the calendar document when no
// explicit key is configured.
const DefaultObjectKey = "agenda.json"

const documentContentType = "application/json"

// BlobDocumentStore persists the whole calendar document as a single JSON
// object in a blob store. Revisions map to the driver's ETag for the object.
type BlobDocumentStore struct {
	store blob.Store
	key   string
}

// NewBlobDocumentStore wraps a blob store. An empty key selects
// DefaultObjectKey.
func NewBlobDocumentStore(store blob.Store, key string) *BlobDocumentStore {
	if key == "" {
		key = DefaultObjectKey
	}
	return &BlobDocumentStore{store: store, key: key}
}

var _ domain.DocumentStore = (*BlobDocumentStore)(nil)

// Load fetches and decodes the calendar document. A missing object is created
// as an empty document before returning, so a fresh deployment converges on a
// readable remote state with no manual step. Legacy payloads are migrated and
// written back in the current schema immediately. Undecodable payloads return
// a domain.CorruptDataError; recovery policy is the caller's.
func (s *BlobDocumentStore) Load(ctx context.Context) (domain.Document, domain.Revision, error) {
	info, rc, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, blob.ErrNotExist) {
			doc := domain.NewDocument()
			rev, saveErr := s.Save(ctx, doc, "")
			if saveErr != nil {
				return domain.Document{}, "", saveErr
			}
			return doc, rev, nil
		}
		return domain.Document{}, "", &domain.StorageError{Op: "load", Err: err}
	}
	data, err := io.ReadAll(rc)
	closeErr := rc.Close()
	if err != nil {
		return domain.Document{}, "", &domain.StorageError{Op: "load", Err: err}
	}
	if closeErr != nil {
		return domain.Document{}, "", &domain.StorageError{Op: "load", Err: closeErr}
	}

	doc, migrated, err := migrate.Decode(data)
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
	return doc, domain.Revision(info.ETag), nil
}

// Save encodes and uploads the document, replacing the remote object. When
// expected is non-empty the write is conditional on the remote revision and a
// mismatch surfaces domain.ErrRevisionConflict.
func (s *BlobDocumentStore) Save(ctx context.Context, doc domain.Document, expected domain.Revision) (domain.Revision, error) {
	data, err := domain.EncodeDocument(doc)
	if err != nil {
		return "", &domain.StorageError{Op: "save", Err: err}
	}
	info, err := s.store.Put(ctx, s.key, bytes.NewReader(data), blob.PutOptions{
		ContentType: documentContentType,
		IfMatch:     string(expected),
	})
	if err != nil {
		if errors.Is(err, blob.ErrPreconditionFailed) {
			return "", &domain.StorageError{Op: "save", Err: domain.ErrRevisionConflict}
		}
		return "", &domain.StorageError{Op: "save", Err: err}
	}
	return domain.Revision(info.ETag), nil
}
