package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedded(t *testing.T) {
	migrations, err := Embedded()
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, Migration{Version: 1, Name: "create_templates"}, migrations[0])
	assert.Equal(t, Migration{Version: 2, Name: "create_artifacts"}, migrations[1])
	assert.Equal(t, Migration{Version: 3, Name: "create_quota"}, migrations[2])
}

func TestList(t *testing.T) {
	t.Run("missing down file", func(t *testing.T) {
		_, err := List(fstest.MapFS{"000001_init.up.sql": {}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing its up or down file")
	})

	t.Run("conflicting names", func(t *testing.T) {
		_, err := List(fstest.MapFS{
			"000001_a.up.sql":   {},
			"000001_a.down.sql": {},
			"000001_b.up.sql":   {},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is used by")
	})

	t.Run("ignores unrelated files", func(t *testing.T) {
		got, err := List(fstest.MapFS{
			"README.md":         {},
			"000002_b.up.sql":   {},
			"000002_b.down.sql": {},
			"000001_a.up.sql":   {},
			"000001_a.down.sql": {},
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, uint64(1), got[0].Version)
		assert.Equal(t, uint64(2), got[1].Version)
	})
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()

	base, err := Create(dir, "Add Download Index")
	require.NoError(t, err)
	assert.Equal(t, "000001_add_download_index", base)

	base, err = Create(dir, "second--one ")
	require.NoError(t, err)
	assert.Equal(t, "000002_second_one", base)

	up, err := os.ReadFile(filepath.Join(dir, "000002_second_one.up.sql"))
	require.NoError(t, err)
	assert.Equal(t, "-- second one (up)\n", string(up))

	_, err = Create(dir, "!!!")
	assert.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"Create Users":   "create_users",
		"add-index":      "add_index",
		"  spaced  out ": "spaced_out",
		"v2 Ünicode":     "v2_nicode",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeName(in), in)
	}
}
