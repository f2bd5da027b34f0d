package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"agendacore/pkg/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "agenda.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadCreatesEmptyDocument(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	doc, rev, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rev == "" || len(doc.Units) != 0 {
		t.Fatalf("expected fresh empty document, rev=%q doc=%+v", rev, doc)
	}

	// Reloading returns the persisted row at the same revision.
	_, rev2, err := store.Load(ctx)
	if err != nil || rev2 != rev {
		t.Fatalf("reload: rev=%q want %q err=%v", rev2, rev, err)
	}
}

func TestSaveAndReload(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	doc, rev, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	entry := doc.EnsureEntry("comisaria-1", "2026-08-01")
	entry.Slots["s1"] = domain.Slot{ID: "s1", Category: "ROBO", Planned: 1}

	next, err := store.Save(ctx, doc, rev)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if next == rev {
		t.Fatal("save must advance the revision")
	}

	back, rev3, err := store.Load(ctx)
	if err != nil || rev3 != next {
		t.Fatalf("reload: rev=%q want %q err=%v", rev3, next, err)
	}
	got, ok := back.Entry("comisaria-1", "2026-08-01")
	if !ok || got.Slots["s1"].Category != "ROBO" {
		t.Fatalf("persisted state lost: %+v", back)
	}
}

func TestConditionalSaveConflict(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	doc, rev, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := store.Save(ctx, doc, ""); err != nil {
		t.Fatalf("unconditional save: %v", err)
	}

	// rev is now stale.
	if _, err := store.Save(ctx, doc, rev); !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("expected revision conflict, got %v", err)
	}

	if _, err := store.Save(ctx, doc, "not-a-number"); err == nil {
		t.Fatal("malformed revision must fail")
	}
}
