// Package migrations embeds the SQL schema so the runner works regardless
// of the process working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
