package importer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskview/pkg/config"
	"github.com/harrisonrobin/taskview/pkg/model"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newEngine(t *testing.T, root string, cfg *config.Config) *Engine {
	t.Helper()
	e, err := NewEngine(root, cfg, nil)
	require.NoError(t, err)
	return e
}

func adminTarget() model.ImportTarget {
	return model.ImportTarget{
		Name:     "inbox",
		Source:   "inbox.md",
		Strategy: model.SectionFixed,
		Section:  "Admin",
		Statuses: []model.Status{model.Transfer},
	}
}

func TestImportCreatesSectionAndIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "## Admin\n[t] Renew passport\n")
	e := newEngine(t, root, nil)

	res, err := e.Import(adminTarget(), false)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, []string{"Admin"}, res.Sections)
	assert.Equal(t, "Admin\n\tRenew passport\n", readFile(t, e.Destination()))

	res, err = e.Import(adminTarget(), false)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Empty(t, res.Proposed)
	assert.Len(t, res.Duplicates, 1)
	assert.Equal(t, "Admin\n\tRenew passport\n", readFile(t, e.Destination()))
}

func TestImportDryRunLeavesDestinationUntouched(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "## Admin\n[t] Renew passport\n[t] Book dentist\n")
	dest := writeFile(t, root, config.DefaultTodayFile, "Admin\n\tBook dentist\n")
	e := newEngine(t, root, nil)

	res, err := e.Import(adminTarget(), true)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	require.Len(t, res.Proposed, 1)
	assert.Equal(t, "Renew passport", res.Proposed[0].Record.Text)
	assert.Equal(t, "Admin\n\tBook dentist\n", readFile(t, dest))

	var out bytes.Buffer
	WritePlan(&out, res, true)
	assert.Equal(t,
		"[inbox] Dry run: would insert 1 task(s) into sections: Admin\n"+
			"\n  Section: Admin\n"+
			"    Renew passport\n"+
			"[inbox] Skipped 1 duplicate(s).\n",
		out.String())
}

func TestImportAppendsToEndOfExistingSection(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "[t] Renew passport\n")
	dest := writeFile(t, root, config.DefaultTodayFile,
		"[i] = in progress\nAdmin\n\t[i] Call bank\n\nHome\n\t[x] Fix sink\n")
	e := newEngine(t, root, nil)

	_, err := e.Import(adminTarget(), false)
	require.NoError(t, err)
	assert.Equal(t,
		"[i] = in progress\nAdmin\n\t[i] Call bank\n\tRenew passport\n\nHome\n\t[x] Fix sink\n",
		readFile(t, dest))
}

func TestImportUsesSourceSectionsWithMap(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.md", "# Personal\n## Admin\n[t] Renew passport\n# Work\n[t] File report\n[b] Not moved\n")
	dest := writeFile(t, root, config.DefaultTodayFile, "Work\n\tOld task\n")
	e := newEngine(t, root, nil)

	target := model.ImportTarget{
		Name:       "notes",
		Source:     "notes.md",
		Strategy:   model.SectionFromSource,
		Section:    model.DefaultImportSection,
		SectionMap: map[string]string{"Admin": "Errands"},
		Statuses:   []model.Status{model.Transfer},
	}
	res, err := e.Import(target, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, []string{"Errands", "Work"}, res.Sections)
	assert.Equal(t,
		"Work\n\tOld task\n\tFile report\n\nErrands\n\tRenew passport\n",
		readFile(t, dest))
}

func TestImportAllowDuplicates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "[t] Water plants\n[t] Water plants\n")
	dest := writeFile(t, root, config.DefaultTodayFile, "Admin\n\tWater plants\n")
	e := newEngine(t, root, nil)

	target := adminTarget()
	target.AllowDuplicates = true
	res, err := e.Import(target, false)
	require.NoError(t, err)
	assert.Len(t, res.Proposed, 2)
	assert.Equal(t, "Admin\n\tWater plants\n\tWater plants\n\tWater plants\n", readFile(t, dest))
}

func TestImportDedupsWithinBatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "[t] Water plants\n- [T]   Water   plants\n")
	e := newEngine(t, root, nil)

	res, err := e.Import(adminTarget(), true)
	require.NoError(t, err)
	assert.Len(t, res.Proposed, 1)
	assert.Len(t, res.Duplicates, 1)
}

func TestImportKeepsTagAndBody(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "[t] Call plumber\n    ask about Tuesday\n[i] Not eligible\n")
	e := newEngine(t, root, nil)

	target := adminTarget()
	target.TagStyle = model.TagKeep
	_, err := e.Import(target, false)
	require.NoError(t, err)
	assert.Equal(t, "Admin\n\t[t] Call plumber\n\t\task about Tuesday\n", readFile(t, e.Destination()))
}

func TestImportMarkdownDestination(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "[t] Renew passport\n")
	writeFile(t, root, "today.md", "# Today\n\n## Home\n- Fix sink\n")
	e := newEngine(t, root, &config.Config{TodayFile: "today.md"})

	_, err := e.Import(adminTarget(), false)
	require.NoError(t, err)
	assert.Equal(t,
		"# Today\n\n## Home\n- Fix sink\n\n## Admin\n- Renew passport\n",
		readFile(t, e.Destination()))
}

func TestImportResolvesExtraFileAlias(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "external/inbox.txt", "Inbox\n\t[t] Sort mail\n")
	e := newEngine(t, root, &config.Config{ExtraFiles: []string{"external/inbox.txt"}})

	path, err := e.ResolveSource("inbox")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "external", "inbox.txt"), path)

	path, err = e.ResolveSource("inbox.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "external", "inbox.txt"), path)

	target := adminTarget()
	target.Source = "inbox"
	res, err := e.Import(target, true)
	require.NoError(t, err)
	require.Len(t, res.Proposed, 1)
	assert.Equal(t, "Sort mail", res.Proposed[0].Record.Text)
}

func TestImportUnknownSource(t *testing.T) {
	root := t.TempDir()
	e := newEngine(t, root, nil)

	target := adminTarget()
	target.Source = "nowhere.md"
	_, err := e.Import(target, false)
	require.Error(t, err)

	var importErr *ImportError
	require.True(t, errors.As(err, &importErr))
	assert.Equal(t, "inbox", importErr.Target)
	var srcErr *SourceResolutionError
	assert.True(t, errors.As(err, &srcErr))

	_, statErr := os.Stat(e.Destination())
	assert.True(t, os.IsNotExist(statErr), "destination must not be created")
}

func TestImportAllContinuesPastFailures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "[t] Renew passport\n")
	e := newEngine(t, root, nil)

	broken := adminTarget()
	broken.Name = "broken"
	broken.Source = "missing.md"

	results, err := e.ImportAll([]model.ImportTarget{broken, adminTarget()}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	require.Len(t, results, 1)
	assert.True(t, results[0].Applied)
	assert.Equal(t, "Admin\n\tRenew passport\n", readFile(t, e.Destination()))
}

func TestWritePlanMessages(t *testing.T) {
	var out bytes.Buffer
	WritePlan(&out, &Result{Target: "a"}, false)
	WritePlan(&out, &Result{Target: "b", Matched: 2, Duplicates: make([]model.TaskRecord, 2)}, false)
	WritePlan(&out, &Result{
		Target:   "c",
		Matched:  1,
		Sections: []string{"Work"},
		Proposed: []Addition{{Section: "Work", Record: model.TaskRecord{Text: "Ship"}}},
	}, false)

	assert.Equal(t,
		"[a] No tasks matched.\n"+
			"[b] Nothing new to import (all duplicates).\n"+
			"[c] Inserted 1 task(s) into sections: Work\n"+
			"\n  Section: Work\n"+
			"    Ship\n",
		out.String())
}

func TestImportDestinationIsADirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "[t] Renew passport\n")
	dest := filepath.Join(root, config.DefaultTodayFile)
	require.NoError(t, os.Mkdir(dest, 0755))
	e := newEngine(t, root, nil)

	_, err := e.Import(adminTarget(), false)
	require.Error(t, err)
	var importErr *ImportError
	require.True(t, errors.As(err, &importErr))
	assert.Equal(t, "inbox", importErr.Target)
	assert.Contains(t, err.Error(), `"inbox"`)

	info, statErr := os.Stat(dest)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestImportUnwritableDestinationLeavesFileUnchanged(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "[t] Renew passport\n")
	dir := filepath.Join(root, "lists")
	dest := writeFile(t, root, filepath.Join("lists", "today.txt"), "Admin\n\tOld\n")
	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { os.Chmod(dir, 0755) })
	e := newEngine(t, root, &config.Config{TodayFile: "lists/today.txt"})

	res, err := e.Import(adminTarget(), false)
	require.Error(t, err)
	assert.Nil(t, res)
	var importErr *ImportError
	require.True(t, errors.As(err, &importErr))
	assert.Contains(t, err.Error(), `"inbox"`)
	assert.Equal(t, "Admin\n\tOld\n", readFile(t, dest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestImportThroughSymlinkedDestination(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "inbox.md", "[t] Renew passport\n")
	target := writeFile(t, root, "real_today.txt", "Admin\n\tOld\n")
	link := filepath.Join(root, config.DefaultTodayFile)
	require.NoError(t, os.Symlink("real_today.txt", link))
	e := newEngine(t, root, nil)

	res, err := e.Import(adminTarget(), false)
	require.NoError(t, err)
	assert.True(t, res.Applied)

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "today file must stay a symlink")
	assert.Equal(t, "Admin\n\tOld\n\tRenew passport\n", readFile(t, target))
}

func TestImportNestsSourceHeadings(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.md", strings.Join([]string{
		"# Personal",
		"## Admin",
		"[t] Renew passport",
		"    bring old one",
		"[t] Book dentist",
		"## Garden",
		"[t] Order seeds",
		"[t] Loose task",
	}, "\n")+"\n")
	writeFile(t, root, "loose.md", "[t] No heading\n")
	dest := writeFile(t, root, config.DefaultTodayFile, "Inbox\n\tExisting\n")
	e := newEngine(t, root, nil)

	target := model.ImportTarget{
		Name:         "notes",
		Source:       "notes.md",
		Strategy:     model.SectionFixed,
		Section:      "Inbox",
		Statuses:     []model.Status{model.Transfer},
		NestHeadings: true,
	}
	_, err := e.Import(target, false)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Inbox",
		"\tExisting",
		"\tPersonal",
		"\t\tAdmin",
		"\t\t\tRenew passport",
		"\t\t\t\tbring old one",
		"\t\t\tBook dentist",
		"\tPersonal",
		"\t\tGarden",
		"\t\t\tOrder seeds",
		"\t\t\tLoose task",
	}, "\n")+"\n", readFile(t, dest))

	target.Name, target.Source = "loose", "loose.md"
	_, err = e.Import(target, false)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(readFile(t, dest), "\t\t\tLoose task\n\tNo heading\n"))
}

func TestImportNestsHeadingsInMarkdown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.md", "# Work\n[t] File report\n")
	writeFile(t, root, "today.md", "## Inbox\n")
	e := newEngine(t, root, &config.Config{TodayFile: "today.md"})

	target := adminTarget()
	target.Source = "notes.md"
	target.Section = "Inbox"
	target.NestHeadings = true
	_, err := e.Import(target, false)
	require.NoError(t, err)
	assert.Equal(t, "## Inbox\n- Work\n  - File report\n", readFile(t, e.Destination()))
}
