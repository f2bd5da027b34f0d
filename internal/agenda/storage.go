package agenda

import (
	"context"
	"fmt"
	"os"

	"agendacore/internal/blob"
	"agendacore/internal/infra/docstore/postgres"
	"agendacore/internal/infra/docstore/sqlite"
	"agendacore/pkg/domain"
)

// OpenDocumentStore selects a document store from the environment.
//
//	AGENDACORE_STORE_DRIVER: blob|s3|fs|memory|sqlite|postgres (default blob)
//	AGENDACORE_OBJECT_KEY:   object key for blob-backed drivers (default agenda.json)
//	AGENDACORE_SQLITE_PATH:  database file when driver=sqlite
//	AGENDACORE_POSTGRES_DSN: connection string when driver=postgres
//
// "blob" delegates backend selection to AGENDACORE_BLOB_DRIVER and its
// companion variables; naming a blob backend directly pins it.
func OpenDocumentStore(ctx context.Context) (domain.DocumentStore, error) {
	driver := os.Getenv("AGENDACORE_STORE_DRIVER")
	if driver == "" {
		driver = "blob"
	}
	switch driver {
	case "blob", "s3", "fs", "memory":
		store, err := openBlobBackend(ctx, driver)
		if err != nil {
			return nil, err
		}
		return NewBlobDocumentStore(store, os.Getenv("AGENDACORE_OBJECT_KEY")), nil
	case "sqlite":
		return sqlite.Open(ctx, os.Getenv("AGENDACORE_SQLITE_PATH"))
	case "postgres":
		return postgres.Open(ctx, os.Getenv("AGENDACORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown store driver %s", driver)
	}
}

func openBlobBackend(ctx context.Context, driver string) (blob.Store, error) {
	switch driver {
	case "s3":
		return blob.OpenFromEnv(ctx)
	case "fs":
		return blob.NewFilesystem(os.Getenv("AGENDACORE_BLOB_FS_ROOT"))
	case "memory":
		return blob.NewMemory(), nil
	default:
		return blob.Open(ctx)
	}
}
