package migrations

import "embed"

// FS embeds the SQLite migration files.
//
//go:embed *.sql
var FS embed.FS

// Postgres embeds the PostgreSQL migration files under postgres/.
//
//go:embed postgres/*.sql
var Postgres embed.FS
