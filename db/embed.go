// Package db embeds the storefront gateway's database schema.
package db

import _ "embed"

// Schema contains the DDL statements for the cart and checkout attempt tables.
//
//go:embed migrations/001_schema.sql
var Schema string
