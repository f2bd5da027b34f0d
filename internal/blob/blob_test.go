package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem store: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
		"s3":     NewMockS3ForTests(),
	}
}

func putString(t *testing.T, store Store, key, content, contentType string) Info {
	t.Helper()
	info, err := store.Put(context.Background(), key, bytes.NewReader([]byte(content)), PutOptions{ContentType: contentType})
	if err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
	return info
}

func readAll(t *testing.T, store Store, key string) (Info, string) {
	t.Helper()
	info, rc, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return info, string(data)
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			info := putString(t, store, "docs/agenda.json", `{"a":1}`, "application/json")
			if info.ETag == "" || info.Size != 7 {
				t.Fatalf("unexpected put info: %+v", info)
			}

			got, body := readAll(t, store, "docs/agenda.json")
			if body != `{"a":1}` {
				t.Fatalf("content mismatch: %q", body)
			}
			if got.ETag != info.ETag {
				t.Fatalf("get etag %q != put etag %q", got.ETag, info.ETag)
			}

			head, err := store.Head(ctx, "docs/agenda.json")
			if err != nil || head.Size != info.Size || head.ETag != info.ETag {
				t.Fatalf("head mismatch: %+v err=%v", head, err)
			}

			exists, err := store.Exists(ctx, "docs/agenda.json")
			if err != nil || !exists {
				t.Fatalf("exists: %v %v", exists, err)
			}
		})
	}
}

func TestStoreReplaceSemantics(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			first := putString(t, store, "k", "original content", "text/plain")
			second := putString(t, store, "k", "new", "text/plain")
			if second.ETag == first.ETag {
				t.Fatal("replace must change the etag")
			}
			_, body := readAll(t, store, "k")
			if body != "new" {
				t.Fatalf("put must replace the whole object, got %q", body)
			}
		})
	}
}

func TestStoreMissingObject(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, _, err := store.Get(ctx, "absent"); !errors.Is(err, ErrNotExist) {
				t.Fatalf("get absent: %v", err)
			}
			if _, err := store.Head(ctx, "absent"); !errors.Is(err, ErrNotExist) {
				t.Fatalf("head absent: %v", err)
			}
			exists, err := store.Exists(ctx, "absent")
			if err != nil || exists {
				t.Fatalf("exists absent: %v %v", exists, err)
			}
		})
	}
}

func TestStoreConditionalPut(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			info := putString(t, store, "k", "v1", "")

			// Matching condition succeeds.
			next, err := store.Put(ctx, "k", bytes.NewReader([]byte("v2")), PutOptions{IfMatch: info.ETag})
			if err != nil {
				t.Fatalf("conditional put with current etag: %v", err)
			}

			// Stale condition fails and leaves the object alone.
			_, err = store.Put(ctx, "k", bytes.NewReader([]byte("v3")), PutOptions{IfMatch: info.ETag})
			if !errors.Is(err, ErrPreconditionFailed) {
				t.Fatalf("stale conditional put: %v", err)
			}
			_, body := readAll(t, store, "k")
			if body != "v2" {
				t.Fatalf("failed condition must not write, got %q", body)
			}

			// Condition against a missing object fails too.
			if _, err := store.Put(ctx, "ghost", bytes.NewReader([]byte("x")), PutOptions{IfMatch: next.ETag}); !errors.Is(err, ErrPreconditionFailed) {
				t.Fatalf("conditional put on missing object: %v", err)
			}
		})
	}
}

func TestStoreDeleteAndList(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			putString(t, store, "backups/2026-01-01.json", "{}", "application/json")
			putString(t, store, "backups/2026-01-02.json", "{}", "application/json")
			putString(t, store, "agenda.json", "{}", "application/json")

			infos, err := store.List(ctx, "backups/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(infos) != 2 {
				t.Fatalf("expected 2 objects under backups/, got %d", len(infos))
			}

			if _, err := store.Delete(ctx, "backups/2026-01-01.json"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			exists, err := store.Exists(ctx, "backups/2026-01-01.json")
			if err != nil || exists {
				t.Fatalf("object should be gone: %v %v", exists, err)
			}
		})
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	t.Setenv("AGENDACORE_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil || store.Driver() != DriverMemory {
		t.Fatalf("memory open: %v %v", store, err)
	}

	t.Setenv("AGENDACORE_BLOB_DRIVER", "fs")
	t.Setenv("AGENDACORE_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil || store.Driver() != DriverFilesystem {
		t.Fatalf("fs open: %v %v", store, err)
	}

	t.Setenv("AGENDACORE_BLOB_DRIVER", "carrier-pigeon")
	if _, err := Open(ctx); err == nil {
		t.Fatal("unknown driver must fail")
	}
}
