// Package migrations embeds the SQL schema applied by goose at startup of the
// durable backend.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
