// Package migrations ships the schema as part of the binary so a deploy can
// never run against a migrations directory from a different build.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
