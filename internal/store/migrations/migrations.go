// Package migrations embeds the schema of a namespace database file.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
