// Package db embeds the database schema applied at server startup.
package db

import _ "embed"

// Schema holds the DDL for the orders table.
//
//go:embed migrations/001_schema.sql
var Schema string
