// Package db holds the embedded schema migrations for the identity store.
package db

import "embed"

// MigrationFS embeds the SQL files applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
