package domain

import "context"

// Revision is an opaque token identifying one stored version of the document
// (a blob ETag, a SQL version counter). The zero value means "unconditional".
type Revision string

// DocumentStore is the minimal abstraction over durable document backends.
// The document is always loaded in full and saved in full; there is no
// partial update protocol.
type DocumentStore interface {
	// Load returns the current document and its revision. A missing remote
	// document is created empty (write-through) so subsequent loads are
	// stable. A payload that fails validated parsing, including the
	// sanctioned legacy fallback, surfaces as CorruptDataError.
	Load(ctx context.Context) (Document, Revision, error)
	// Save replaces the stored document. When expected is non-zero the
	// write is conditional on the stored revision still matching; a lost
	// race surfaces as a StorageError wrapping ErrRevisionConflict.
	Save(ctx context.Context, doc Document, expected Revision) (Revision, error)
}
