// Package migrations carries the SQL files applied by `kalinga-server
// migrate up` so the binary does not depend on its working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
