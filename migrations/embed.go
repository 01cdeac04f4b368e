// Package migrations embeds the SQL schema migrations applied at startup and in integration tests.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
