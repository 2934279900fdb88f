package db

import "embed"

// Migrations holds the schema migration files compiled into the binary, so
// cmd/migrate needs no filesystem access at deploy time.
//
//go:embed migrations/*.sql
var Migrations embed.FS
