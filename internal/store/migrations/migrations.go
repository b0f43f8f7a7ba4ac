// Package migrations embeds the goose migration files for both store
// dialects.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS
