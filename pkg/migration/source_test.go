package migration

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		version   string
		name      string
		direction string
		expected  string
	}{
		{"20250301090000", "create_catalog", "up", "20250301090000_create_catalog.up.sql"},
		{"20250301090000", "create_catalog", "down", "20250301090000_create_catalog.down.sql"},
	}

	for _, test := range tests {
		result := FileName(test.version, test.name, test.direction)
		if result != test.expected {
			t.Errorf("FileName(%s, %s, %s) = %s, expected %s",
				test.version, test.name, test.direction, result, test.expected)
		}
	}
}

func TestLoadSortsAndPairs(t *testing.T) {
	fsys := fstest.MapFS{
		"m/20240102000000_second.up.sql":   {Data: []byte("CREATE TABLE b (id INT)")},
		"m/20240102000000_second.down.sql": {Data: []byte("DROP TABLE b")},
		"m/20240101000000_first.up.sql":    {Data: []byte("CREATE TABLE a (id INT)")},
		"m/20240101000000_first.down.sql":  {Data: []byte("DROP TABLE a")},
		"m/20240103000000_orphan.up.sql":   {Data: []byte("SELECT 1")},
		"m/README.md":                      {Data: []byte("notes")},
	}

	migrations, err := Load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, "20240101000000", migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE a (id INT)", migrations[0].UpSQL)
	assert.Equal(t, "DROP TABLE a", migrations[0].DownSQL)
	assert.Equal(t, "second", migrations[1].Name)
}

func TestLoadConflictingNames(t *testing.T) {
	fsys := fstest.MapFS{
		"m/20240101000000_first.up.sql":  {Data: []byte("SELECT 1")},
		"m/20240101000000_other.down.sql": {Data: []byte("SELECT 1")},
	}

	_, err := Load(fsys, "m")
	assert.Error(t, err)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(fstest.MapFS{}, "missing")
	assert.Error(t, err)
}

func TestEmbedded(t *testing.T) {
	migrations, err := Embedded()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, "create_catalog", migrations[0].Name)
	assert.Equal(t, "create_enrollment", migrations[1].Name)

	for _, m := range migrations {
		statements := splitSQL(m.UpSQL)
		assert.NotEmpty(t, statements, "migration %s has no statements", m.Version)
		for _, stmt := range statements {
			assert.False(t, strings.HasPrefix(stmt, "--"), "comment leaked into statement: %s", stmt)
		}
	}

	assert.Contains(t, migrations[1].UpSQL, "registrations_student_class_key")
}

func TestSplitSQL(t *testing.T) {
	sql := `
-- header comment
CREATE TABLE a (id INT);

  -- indented comment
CREATE INDEX idx_a ON a (id);
;
`
	statements := splitSQL(sql)
	require.Len(t, statements, 2)
	assert.Equal(t, "CREATE TABLE a (id INT)", statements[0])
	assert.Equal(t, "CREATE INDEX idx_a ON a (id)", statements[1])
}
