// Package migrations embeds the SQL schema migrations so binaries carry
// their own schema and never depend on a migrations directory on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
