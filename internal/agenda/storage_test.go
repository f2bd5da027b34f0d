package agenda

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenDocumentStoreFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("AGENDACORE_STORE_DRIVER", "blob")
	t.Setenv("AGENDACORE_BLOB_DRIVER", "memory")
	store, err := OpenDocumentStore(ctx)
	if err != nil {
		t.Fatalf("blob driver: %v", err)
	}
	if _, ok := store.(*BlobDocumentStore); !ok {
		t.Fatalf("expected blob-backed store, got %T", store)
	}

	t.Setenv("AGENDACORE_STORE_DRIVER", "memory")
	store, err = OpenDocumentStore(ctx)
	if err != nil {
		t.Fatalf("pinned memory driver: %v", err)
	}
	if _, ok := store.(*BlobDocumentStore); !ok {
		t.Fatalf("expected blob-backed store, got %T", store)
	}

	t.Setenv("AGENDACORE_STORE_DRIVER", "sqlite")
	t.Setenv("AGENDACORE_SQLITE_PATH", filepath.Join(t.TempDir(), "agenda.db"))
	if _, err := OpenDocumentStore(ctx); err != nil {
		t.Fatalf("sqlite driver: %v", err)
	}

	t.Setenv("AGENDACORE_STORE_DRIVER", "abacus")
	if _, err := OpenDocumentStore(ctx); err == nil {
		t.Fatal("unknown driver must fail")
	}
}

func TestOpenDocumentStoreDefaultsToBlob(t *testing.T) {
	t.Setenv("AGENDACORE_STORE_DRIVER", "")
	t.Setenv("AGENDACORE_BLOB_DRIVER", "memory")
	store, err := OpenDocumentStore(context.Background())
	if err != nil {
		t.Fatalf("default driver: %v", err)
	}
	if _, ok := store.(*BlobDocumentStore); !ok {
		t.Fatalf("expected blob-backed store, got %T", store)
	}
}
