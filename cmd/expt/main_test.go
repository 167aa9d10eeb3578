package main

import (
	"bytes"
	"github.com/jnb666/trafficsigns/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var (
	reportA = filepath.Join("..", "..", "report", "testdata", "experiments.md")
	reportB = filepath.Join("..", "..", "report", "testdata", "traffic_signs.md")
)

// write a settings file with the database and data dir in a temp directory
func testConfig(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "expt.yaml")
	conf := "data_dir: data\ndatabase: test.db\nlog_level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(conf), 0o644))
	return path
}

func run(t *testing.T, conf string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", conf}, args...))
	err := root.Execute()
	return out.String(), err
}

// first column of each data row of a Markdown table
func ids(out string) []string {
	var list []string
	for i, line := range strings.Split(strings.TrimSpace(out), "\n") {
		cells := strings.Split(line, "|")
		if i < 2 || len(cells) < 3 {
			continue
		}
		list = append(list, strings.TrimSpace(cells[1]))
	}
	return list
}

func TestCheck(t *testing.T) {
	conf := testConfig(t)
	out, err := run(t, conf, "check", reportA, reportB)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "PASS"), out)

	// claim names the wrong experiment
	data, err := os.ReadFile(reportA)
	require.NoError(t, err)
	bad := filepath.Join(t.TempDir(), "bad.md")
	text := strings.Replace(string(data), "Experiment 3 gave", "Experiment 2 gave", 1)
	require.NoError(t, os.WriteFile(bad, []byte(text), 0o644))
	out, err = run(t, conf, "check", bad)
	assert.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, "FAIL")

	_, err = run(t, conf, "check")
	assert.Error(t, err)
}

func TestBest(t *testing.T) {
	out, err := run(t, testConfig(t), "best", reportA)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(out))
	assert.Contains(t, out, "0.9619")
	assert.Contains(t, out, "0.1658")
}

func TestDiff(t *testing.T) {
	conf := testConfig(t)
	out, err := run(t, conf, "diff", reportA, reportB)
	require.NoError(t, err)
	assert.Contains(t, out, "tables are identical")
	assert.Contains(t, out, "titles differ")

	data, err := os.ReadFile(reportB)
	require.NoError(t, err)
	changed := filepath.Join(t.TempDir(), "changed.md")
	require.NoError(t, os.WriteFile(changed, []byte(strings.Replace(string(data), "0.2104", "0.2105", 1)), 0o644))
	out, err = run(t, conf, "diff", reportA, changed)
	assert.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, "experiment 2")
}

func TestRender(t *testing.T) {
	conf := testConfig(t)
	out, err := run(t, conf, "render", reportA)
	require.NoError(t, err)
	r, err := report.Parse([]byte(out))
	require.NoError(t, err)
	orig, err := report.ParseFile(reportA)
	require.NoError(t, err)
	assert.Equal(t, orig.Experiments, r.Experiments)
	assert.Equal(t, orig.Title, r.Title)

	path := filepath.Join(t.TempDir(), "out.md")
	_, err = run(t, conf, "render", "-o", path, reportA)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))
}

func TestShow(t *testing.T) {
	out, err := run(t, testConfig(t), "show", "--width", "80", reportA)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestSummary(t *testing.T) {
	out, err := run(t, testConfig(t), "summary", reportA)
	require.NoError(t, err)
	assert.Contains(t, out, "6 experiments")
	assert.Contains(t, out, "max=0.9619 (#3)")
	assert.Contains(t, out, "by accuracy [3 2 4 5 1 6]")
}

func TestPlan(t *testing.T) {
	conf := testConfig(t)
	out, err := run(t, conf, "plan", "--tune", "Hidden=128,256", "--tune", "Dropout=0.3,0.5", "--runs", "2")
	require.NoError(t, err)
	assert.Equal(t, 8, strings.Count(out, "planned"), out)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7", "8"}, ids(out))

	out, err = run(t, conf, "plan", "-t", "Hidden=128,256", "--results", reportA)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "planned"))
	assert.Equal(t, []string{"7", "8"}, ids(out))

	_, err = run(t, conf, "plan", "--tune", "Nosuch=1,2")
	assert.Error(t, err)
	_, err = run(t, conf, "plan", "missing.json")
	assert.Error(t, err)

	// saved base config is picked up next time
	_, err = run(t, conf, "plan", "--save", "-t", "Hidden=64")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(conf), "data", "plan.json"))
	assert.NoError(t, err)
}

func TestImportHistory(t *testing.T) {
	conf := testConfig(t)
	out, err := run(t, conf, "import", reportA, reportB)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "imported"), out)

	out, err = run(t, conf, "import", reportA)
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged")

	out, err = run(t, conf, "history", "3")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "acc=0.9619 loss=0.1658"), out)
	assert.Contains(t, out, "mean over 2 reports: acc=0.9619 loss=0.1658")

	// forget one report, the other still has the experiment
	orig, err := report.ParseFile(reportA)
	require.NoError(t, err)
	out, err = run(t, conf, "forget", orig.Digest)
	require.NoError(t, err)
	assert.Contains(t, out, orig.Digest)
	out, err = run(t, conf, "history", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "mean over 1 reports")
	_, err = run(t, conf, "forget", orig.Digest)
	assert.Error(t, err)

	_, err = run(t, conf, "history", "42")
	assert.Error(t, err)
	_, err = run(t, conf, "history", "x")
	assert.Error(t, err)
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "nosuch.yaml"), "summary", reportA)
	assert.Error(t, err)
}
