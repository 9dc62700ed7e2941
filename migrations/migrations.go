// Package migrations embeds the goose SQL migrations for the ledger schema.
// The SQL stays portable between PostgreSQL and SQLite; the goose dialect
// is selected at startup from the configured driver.
package migrations

import "embed"

// FS holds the embedded migration files.
//
//go:embed *.sql
var FS embed.FS
