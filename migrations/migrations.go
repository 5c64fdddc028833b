// Package migrations embeds the SQL schema of the service so the binary and the
// tests can apply it without depending on the working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
