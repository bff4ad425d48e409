package db

import (
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/persistorai/changelog/internal/db/migrations"
)

// SchemaVersion returns the highest goose version among the embedded
// migrations, the version /ready expects the database to have applied.
func SchemaVersion() int {
	return schemaVersion(migrations.FS)
}

func schemaVersion(fsys fs.FS) int {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return 0
	}

	highest := 0
	for _, name := range names {
		prefix, _, ok := strings.Cut(path.Base(name), "_")
		if !ok {
			continue
		}

		if v, err := strconv.Atoi(prefix); err == nil {
			highest = max(highest, v)
		}
	}

	return highest
}
