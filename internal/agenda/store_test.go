package agenda

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"agendacore/internal/blob"
	"agendacore/pkg/domain"
)

func TestBlobDocumentStoreCreatesOnMissing(t *testing.T) {
	ctx := context.Background()
	mem := blob.NewMemory()
	store := NewBlobDocumentStore(mem, "")

	doc, rev, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load on empty bucket: %v", err)
	}
	if rev == "" {
		t.Fatal("expected a revision for the created document")
	}
	if len(doc.Units) != 0 {
		t.Fatalf("expected empty document, got %+v", doc)
	}

	// The empty document was written through, so a raw read sees canonical JSON.
	exists, err := mem.Exists(ctx, DefaultObjectKey)
	if err != nil || !exists {
		t.Fatalf("expected %s to exist after first load, exists=%v err=%v", DefaultObjectKey, exists, err)
	}
}

func TestBlobDocumentStoreMigratesLegacyOnLoad(t *testing.T) {
	ctx := context.Background()
	mem := blob.NewMemory()
	legacy := []byte(`{"u1":{"2026-06-01":{"ROBO":{"plan":2,"cargados":1}}}}`)
	if _, err := mem.Put(ctx, DefaultObjectKey, bytes.NewReader(legacy), blob.PutOptions{}); err != nil {
		t.Fatalf("seed legacy object: %v", err)
	}
	store := NewBlobDocumentStore(mem, "")

	doc, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load legacy: %v", err)
	}
	entry, ok := doc.Entry("u1", "2026-06-01")
	if !ok || len(entry.Slots) != 2 || entry.Remaining() != 1 {
		t.Fatalf("legacy expansion wrong: %+v", doc)
	}

	// The upgrade was persisted: the raw object now decodes strictly.
	_, rc, err := mem.Get(ctx, DefaultObjectKey)
	if err != nil {
		t.Fatalf("raw read: %v", err)
	}
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(rc); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	_ = rc.Close()
	if _, err := domain.DecodeDocument(buf.Bytes()); err != nil {
		t.Fatalf("persisted payload is not canonical: %v", err)
	}
}

func TestBlobDocumentStoreCorruptPayload(t *testing.T) {
	ctx := context.Background()
	mem := blob.NewMemory()
	if _, err := mem.Put(ctx, DefaultObjectKey, bytes.NewReader([]byte("not json")), blob.PutOptions{}); err != nil {
		t.Fatalf("seed corrupt object: %v", err)
	}
	store := NewBlobDocumentStore(mem, "")

	_, _, err := store.Load(ctx)
	if !errors.Is(err, domain.ErrCorruptData) {
		t.Fatalf("expected corrupt-data error, got %v", err)
	}
}

func TestBlobDocumentStoreRevisionConflict(t *testing.T) {
	ctx := context.Background()
	mem := blob.NewMemory()
	store := NewBlobDocumentStore(mem, "")

	doc, rev, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Another writer replaces the object behind our back.
	other := doc.Clone()
	entry := other.EnsureEntry("u1", "2026-06-02")
	entry.Slots["x1"] = domain.Slot{ID: "x1", Category: "ROBO", Planned: 1}
	if _, err := store.Save(ctx, other, ""); err != nil {
		t.Fatalf("concurrent save: %v", err)
	}

	entry = doc.EnsureEntry("u1", "2026-06-03")
	entry.Slots["y1"] = domain.Slot{ID: "y1", Category: "HURTO", Planned: 1}
	if _, err := store.Save(ctx, doc, rev); !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}

	// An unconditional save still goes through.
	if _, err := store.Save(ctx, doc, ""); err != nil {
		t.Fatalf("unconditional save: %v", err)
	}
}
