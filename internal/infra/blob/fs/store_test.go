package fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"agendacore/internal/blob/core"
)

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "../escape", "a/../../b", "/absolute"} {
		if _, err := store.Put(context.Background(), key, bytes.NewReader(nil), core.PutOptions{}); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestMetadataSidecarSurvivesReplace(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	first, err := store.Put(ctx, "agenda.json", bytes.NewReader([]byte("{}")), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	second, err := store.Put(ctx, "agenda.json", bytes.NewReader([]byte(`{"schema_version":2}`)), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if second.ETag == first.ETag {
		t.Fatal("replace must recompute the etag")
	}

	head, err := store.Head(ctx, "agenda.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ContentType != "application/json" || head.Size != second.Size {
		t.Fatalf("sidecar metadata wrong: %+v", head)
	}

	// Exactly one data file and one sidecar remain; no temp leftovers.
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(entries) != 2 {
		t.Fatalf("unexpected files in root: %v", names)
	}
}

func TestMissingObjectMapsToErrNotExist(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "nested", "root"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, _, err := store.Get(context.Background(), "absent"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
