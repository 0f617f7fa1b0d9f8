package checkpoint

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/models"
)

func sampleCatalog() *models.Catalog {
	c := models.NewCatalog()
	e := models.NewEntry("Algorithms", "https://portal.example/course/view.php?id=7")
	e.SetSnapshot("<html>course</html>")
	e.AppendFile("Assignment1", "A.pdf")
	e.AppendFile("Assignment1", "B.pdf")
	e.SetFile("Resource.pdf (1)")
	c.Put(e)
	c.Put(models.NewEntry("Databases", "https://portal.example/course/view.php?id=9"))
	return c
}

func TestCheckpointManager(t *testing.T) {
	fs := afero.NewMemMapFs()
	tl := logger.NewTestLogger()
	m := NewManagerAt(fs, "/data/catalogs/student.catalog.json", tl)

	t.Run("load missing", func(t *testing.T) {
		cp, err := m.Load()
		require.NoError(t, err)
		assert.Nil(t, cp)
		assert.False(t, m.Exists())
	})

	t.Run("save and load", func(t *testing.T) {
		cp := New("student", "https://portal.example", "./files", sampleCatalog())
		_, err := uuid.Parse(cp.RunID)
		require.NoError(t, err)

		require.NoError(t, m.Save(cp))
		assert.True(t, m.Exists())

		tmp, _ := afero.Exists(fs, m.Path()+".tmp")
		assert.False(t, tmp, "temporary file must not be left behind")

		loaded, err := m.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded)

		assert.Equal(t, cp.RunID, loaded.RunID)
		assert.Equal(t, "student", loaded.Account)
		assert.Equal(t, []string{"Algorithms", "Databases"}, loaded.Catalog.Names())

		e, ok := loaded.Catalog.Get("Algorithms")
		require.True(t, ok)
		assert.Equal(t, "<html>course</html>", *e.Snapshot)
		g, _ := e.FileGroups.Get("Assignment1")
		assert.Equal(t, []string{"A.pdf", "B.pdf"}, g.Files)
		assert.True(t, tl.HasMessage("Checkpoint loaded"))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, m.Delete())
		assert.False(t, m.Exists())
		assert.NoError(t, m.Delete())
	})
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManagerAt(fs, "/cp.json", nil)
	require.NoError(t, afero.WriteFile(fs, "/cp.json", []byte(`{"version":99,"catalog":[]}`), 0644))

	_, err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported checkpoint version")
}

func TestLoadCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := NewManagerAt(fs, "/cp.json", nil)
	require.NoError(t, afero.WriteFile(fs, "/cp.json", []byte(`{not json`), 0644))

	_, err := m.Load()
	assert.Error(t, err)
}

func TestNewManagerSanitizesAccount(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("data directory layout checked on linux only")
	}
	t.Setenv("XDG_DATA_HOME", "/xdg")

	m, err := NewManager(afero.NewMemMapFs(), "jane.doe@uni/edu", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/xdg", "moodlescraper", "catalogs", "jane.doe_uni_edu.catalog.json"), m.Path())
	assert.False(t, strings.Contains(filepath.Base(m.Path()), "/"))
}
