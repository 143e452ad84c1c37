// Package migrations embeds the Postgres SQL migration files for use at runtime.
package migrations

import "embed"

// FS is the embedded migrations filesystem (001_initial.sql, 002_faq_entries.sql, ...).
//
//go:embed *.sql
var FS embed.FS
