// Package migrations embeds the SQL schema applied at startup.
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS
