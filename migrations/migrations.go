// Package migrations embeds the versioned SQL schema so the binary migrates without a checkout.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
