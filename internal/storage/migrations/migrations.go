// Package migrations embeds the schema migrations for both backends.
package migrations

import "embed"

// Postgres holds the postgres migration files.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the sqlite migration files.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
