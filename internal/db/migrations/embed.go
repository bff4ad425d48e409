// Package migrations holds the goose SQL migrations of the change log
// schema: change_sets, object_changes and property_changes.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
