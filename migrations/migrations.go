// Package migrations embeds the SurrealQL schema definitions.
package migrations

import "embed"

// FS holds every *.surql migration, applied in lexical order.
//
//go:embed *.surql
var FS embed.FS
