package migrations

import "embed"

// PostgresFS embeds the PostgreSQL archive schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse archive schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
