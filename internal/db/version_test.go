package db

import (
	"testing"
	"testing/fstest"
)

func TestSchemaVersion(t *testing.T) {
	if v := SchemaVersion(); v != 1 {
		t.Errorf("SchemaVersion = %d, want 1", v)
	}
}

func TestSchemaVersionUsesHighestPrefix(t *testing.T) {
	fsys := fstest.MapFS{
		"001_changelog.sql":  {},
		"003_indexes.sql":    {},
		"002_author_idx.sql": {},
		"README.md":          {},
		"notes.sql":          {},
	}

	if v := schemaVersion(fsys); v != 3 {
		t.Errorf("schemaVersion = %d, want 3", v)
	}
}
