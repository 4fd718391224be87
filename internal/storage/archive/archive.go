// Package archive opens the summary store selected by an archive DSN.
package archive

import (
	"context"
	"fmt"
	"net/url"

	"biobank-trait-report/internal/storage"
	chstore "biobank-trait-report/internal/storage/clickhouse"
	"biobank-trait-report/internal/storage/memory"
	"biobank-trait-report/internal/storage/migrations"
	"biobank-trait-report/internal/storage/postgres"
)

// Backend names.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

// Archive is an open summary store and the connection behind it.
type Archive struct {
	Store   storage.SummaryStore
	Backend string
	close   func() error
}

// Close releases the underlying connection.
func (a *Archive) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// Open connects to the archive named by dsn and applies its schema.
// An empty dsn or memory:// selects the in-process store.
func Open(ctx context.Context, dsn string) (*Archive, error) {
	backend, err := Backend(dsn)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Archive{
			Store:   postgres.NewSummaryStore(pool),
			Backend: backend,
			close:   func() error { pool.Close(); return nil },
		}, nil

	case BackendClickhouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &Archive{
			Store:   chstore.NewSummaryStore(conn),
			Backend: backend,
			close:   conn.Close,
		}, nil
	}

	return &Archive{Store: memory.NewSummaryStore(), Backend: BackendMemory}, nil
}

// Backend returns the backend selected by dsn.
func Backend(dsn string) (string, error) {
	if dsn == "" {
		return BackendMemory, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse archive dsn: %w", err)
	}
	switch u.Scheme {
	case "memory":
		return BackendMemory, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "clickhouse":
		return BackendClickhouse, nil
	}
	return "", fmt.Errorf("unsupported archive scheme %q", u.Scheme)
}
