package organizer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moodlescraper/pkg/config"
	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/models"
	"moodlescraper/pkg/staging"
)

func setup(t *testing.T, staged ...string) (afero.Fs, *staging.Area) {
	t.Helper()
	fs := afero.NewMemMapFs()
	area := staging.NewArea(fs, config.DownloadConfig{
		StagingDirectory: "/staging",
		PollInterval:     5 * time.Millisecond,
		IdleTimeout:      50 * time.Millisecond,
	}, nil)
	require.NoError(t, area.Ensure())
	for _, name := range staged {
		require.NoError(t, afero.WriteFile(fs, "/staging/"+name, []byte(name), 0644))
	}
	return fs, area
}

// tree lists every regular file under root, relative to it
func tree(t *testing.T, fs afero.Fs, root string) []string {
	t.Helper()
	var files []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func courseCatalog() *models.Catalog {
	catalog := models.NewCatalog()

	algo := models.NewEntry("Algorithms", "https://portal/course/view.php?id=1")
	algo.SetSnapshot("<html>algorithms</html>")
	algo.AppendFile("Assignment1", "A.pdf")
	algo.AppendFile("Assignment1", "B.pdf")
	algo.SetFile("Resource.pdf (1)")
	catalog.Put(algo)

	// entries without files get no folder
	catalog.Put(models.NewEntry("Empty", "https://portal/course/view.php?id=2"))
	return catalog
}

func TestOrganizeBuildsHierarchy(t *testing.T) {
	fs, area := setup(t, "A.pdf", "B.pdf", "Resource.pdf", "Resource.pdf (1)")
	org := New(area, config.OrganizeConfig{}, nil)

	report, err := org.Organize(context.Background(), courseCatalog())
	require.NoError(t, err)

	want := []string{
		"Algorithms/Algorithms.html",
		"Algorithms/Assignment1/A.pdf",
		"Algorithms/Assignment1/B.pdf",
		"Algorithms/Resource.pdf (1)",
		"Resource.pdf",
	}
	if diff := cmp.Diff(want, tree(t, fs, "/staging")); diff != "" {
		t.Errorf("staging tree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Report{Moved: 3}, report)

	snapshot, err := afero.ReadFile(fs, "/staging/Algorithms/Algorithms.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>algorithms</html>", string(snapshot))

	exists, err := afero.DirExists(fs, "/staging/Empty")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOrganizeRecoversNumberedName(t *testing.T) {
	fs, area := setup(t, "Report.pdf (2)")
	catalog := models.NewCatalog()
	entry := models.NewEntry("Databases", "https://portal/course/view.php?id=3")
	entry.SetFile("Report.pdf")
	catalog.Put(entry)

	report, err := New(area, config.OrganizeConfig{}, nil).Organize(context.Background(), catalog)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Recovered)
	assert.Equal(t, 0, report.Missing)
	assert.Equal(t, []string{"Databases/Report.pdf (2)"}, tree(t, fs, "/staging"))
}

func TestOrganizeRecoveryIsAnchored(t *testing.T) {
	fs, area := setup(t, "Old Report.pdf", "Report.pdf.bak", "Report.pdf (x)")
	catalog := models.NewCatalog()
	entry := models.NewEntry("Databases", "u")
	entry.SetFile("Report.pdf")
	catalog.Put(entry)

	log := logger.NewTestLogger()
	report, err := New(area, config.OrganizeConfig{}, log).Organize(context.Background(), catalog)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, []string{"Report.pdf"}, report.MissingFiles)
	assert.True(t, log.HasMessage("Recorded file not found in staging area"))
	assert.Equal(t, []string{"Old Report.pdf", "Report.pdf (x)", "Report.pdf.bak"}, tree(t, fs, "/staging"))
}

func TestOrganizeFuzzyFallback(t *testing.T) {
	fs, area := setup(t, "Lecture_01.pdf", "Syllabus.docx")
	catalog := models.NewCatalog()
	entry := models.NewEntry("Networks", "u")
	entry.AppendFile("Slides", "Lecture 01.pdf")
	catalog.Put(entry)

	report, err := New(area, config.OrganizeConfig{FuzzyThreshold: 0.9}, nil).Organize(context.Background(), catalog)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Recovered)
	assert.Equal(t, []string{"Networks/Slides/Lecture_01.pdf", "Syllabus.docx"}, tree(t, fs, "/staging"))
}

func TestOrganizeFuzzyDisabledByDefault(t *testing.T) {
	_, area := setup(t, "Lecture_01.pdf")
	catalog := models.NewCatalog()
	entry := models.NewEntry("Networks", "u")
	entry.SetFile("Lecture 01.pdf")
	catalog.Put(entry)

	report, err := New(area, config.OrganizeConfig{}, nil).Organize(context.Background(), catalog)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Missing)
}

func TestOrganizeIsIdempotent(t *testing.T) {
	fs, area := setup(t, "A.pdf", "B.pdf", "Resource.pdf (1)")
	org := New(area, config.OrganizeConfig{}, nil)

	_, err := org.Organize(context.Background(), courseCatalog())
	require.NoError(t, err)
	first := tree(t, fs, "/staging")

	// a changed snapshot must not be rewritten into an existing folder
	catalog := courseCatalog()
	entry, _ := catalog.Get("Algorithms")
	entry.Snapshot = nil
	entry.SetSnapshot("<html>changed</html>")

	report, err := org.Organize(context.Background(), catalog)
	require.NoError(t, err)

	assert.Equal(t, first, tree(t, fs, "/staging"))
	assert.Equal(t, Report{AlreadyPlaced: 3}, report)

	snapshot, err := afero.ReadFile(fs, "/staging/Algorithms/Algorithms.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>algorithms</html>", string(snapshot))
}

func TestOrganizeWaitsForIdle(t *testing.T) {
	fs, area := setup(t, "stuck.pdf.crdownload")

	_, err := New(area, config.OrganizeConfig{}, nil).Organize(context.Background(), courseCatalog())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeTimeout))

	exists, err := afero.DirExists(fs, "/staging/Algorithms")
	require.NoError(t, err)
	assert.False(t, exists, "nothing is organized while a download is in flight")
}

func TestOrganizeCustomSnapshotExtension(t *testing.T) {
	fs, area := setup(t, "A.pdf")
	catalog := models.NewCatalog()
	entry := models.NewEntry("Compilers", "u")
	entry.SetSnapshot("<html/>")
	entry.SetFile("A.pdf")
	catalog.Put(entry)

	_, err := New(area, config.OrganizeConfig{SnapshotExtension: "htm"}, nil).Organize(context.Background(), catalog)
	require.NoError(t, err)
	assert.Equal(t, []string{"Compilers/A.pdf", "Compilers/Compilers.htm"}, tree(t, fs, "/staging"))
}

func TestOrganizeKeepsFilesInsideStaging(t *testing.T) {
	fs, area := setup(t, "a.pdf", "b.pdf", "c.pdf")
	catalog := models.NewCatalog()

	parent := models.NewEntry("..", "https://portal/course/view.php?id=1")
	parent.SetFile("a.pdf")
	catalog.Put(parent)

	self := models.NewEntry(".", "https://portal/course/view.php?id=2")
	self.SetFile("b.pdf")
	catalog.Put(self)

	algo := models.NewEntry("Algorithms", "https://portal/course/view.php?id=3")
	algo.AppendFile("..", "c.pdf")
	catalog.Put(algo)

	log := logger.NewTestLogger()
	report, err := New(area, config.OrganizeConfig{}, log).Organize(context.Background(), catalog)
	require.NoError(t, err)

	assert.Equal(t, Report{}, report)
	assert.Equal(t, []string{"staging/a.pdf", "staging/b.pdf", "staging/c.pdf"}, tree(t, fs, "/"))
	assert.True(t, log.HasMessage("Entry name leaves the staging area, files left in place"))
	assert.True(t, log.HasMessage("Group name leaves the entry folder, files left in place"))
}

func TestOrganizeRejectsUnusableFileName(t *testing.T) {
	fs, area := setup(t, "a.pdf")
	catalog := models.NewCatalog()
	entry := models.NewEntry("Algorithms", "https://portal/course/view.php?id=1")
	entry.AppendFile("Slides", "..")
	catalog.Put(entry)

	report, err := New(area, config.OrganizeConfig{}, nil).Organize(context.Background(), catalog)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, []string{".."}, report.MissingFiles)
	assert.Equal(t, []string{"a.pdf"}, tree(t, fs, "/staging"))
}
