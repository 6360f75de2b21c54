package database

import _ "embed"

// SchemaDDL is the bootstrap document Bootstrap expects, embedded at build
// time so cmd/server never needs a runtime filesystem path to find it.
//
//go:embed schema.sql
var SchemaDDL string
