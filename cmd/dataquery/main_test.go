package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/dataquery/config"
	"github.com/isdmx/dataquery/generator"
	"github.com/isdmx/dataquery/sandbox"
)

const salesCSV = `region,units
north,3
south,4
`

type replyCompleter struct {
	replies []string
}

func (c *replyCompleter) Complete(context.Context, string, string) (string, error) {
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

type fixture struct {
	dir    string
	csv    string
	config string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(salesCSV), 0o600))

	configPath := filepath.Join(dir, "config.yaml")
	configYAML := "logging:\n  level: error\nhistory:\n  enabled: true\n  path: " + filepath.Join(dir, "history.db") + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o600))

	return fixture{dir: dir, csv: csvPath, config: configPath}
}

// execute runs one command line and returns its stdout
func (f fixture) execute(t *testing.T, stdin string, completer generator.Completer, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := newCLI(strings.NewReader(stdin), &out)
	if completer != nil {
		c.newCompleter = func(*config.Config) generator.Completer { return completer }
	}
	err := c.run(append([]string{"--config", f.config}, args...))
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	f := newFixture(t)

	t.Run("ScriptFromStdin", func(t *testing.T) {
		out, err := f.execute(t, "print(df.units.sum())", nil, "run", f.csv, "-")
		require.NoError(t, err)
		assert.Contains(t, out, "2 rows, 2 columns")
		assert.Contains(t, out, "Result:")
		assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "7"))
	})

	t.Run("ScriptFromFile", func(t *testing.T) {
		script := filepath.Join(f.dir, "script.js")
		require.NoError(t, os.WriteFile(script, []byte("print(df.shape)"), 0o600))

		out, err := f.execute(t, "", nil, "run", f.csv, script)
		require.NoError(t, err)
		assert.Contains(t, out, "(2, 2)")
	})

	t.Run("FailedOutcomeExitsNonZero", func(t *testing.T) {
		out, err := f.execute(t, "print(df.revenue.sum())", nil, "run", f.csv, "-")
		assert.ErrorIs(t, err, errAnalysisFailed)
		assert.Contains(t, out, sandbox.FailureMarker)
		assert.Contains(t, out, "revenue")
	})

	t.Run("YAMLOutput", func(t *testing.T) {
		out, err := f.execute(t, "print(df.units.max())", nil, "run", f.csv, "-", "--output", "yaml")
		require.NoError(t, err)

		var report struct {
			Script  string `yaml:"script"`
			Outcome struct {
				Kind   string `yaml:"kind"`
				Output string `yaml:"output"`
			} `yaml:"outcome"`
		}
		require.NoError(t, yaml.Unmarshal([]byte(out), &report))
		assert.Equal(t, "print(df.units.max())", report.Script)
		assert.Equal(t, "success", report.Outcome.Kind)
		assert.Equal(t, "4\n", report.Outcome.Output)
	})

	t.Run("MissingScriptFile", func(t *testing.T) {
		_, err := f.execute(t, "", nil, "run", f.csv, filepath.Join(f.dir, "nope.js"))
		assert.ErrorContains(t, err, "failed to read script")
	})

	t.Run("InvalidOutputFormat", func(t *testing.T) {
		_, err := f.execute(t, "print(1)", nil, "run", f.csv, "-", "--output", "xml")
		assert.ErrorContains(t, err, "invalid output format")
	})
}

func TestAskCommand(t *testing.T) {
	f := newFixture(t)
	completer := &replyCompleter{replies: []string{
		"units",
		"```javascript\nprint(df.units.mean())\n```",
	}}

	out, err := f.execute(t, "", completer, "ask", f.csv, "What is the average number of units?")
	require.NoError(t, err)
	assert.Contains(t, out, "Relevant column: units")
	assert.Contains(t, out, "print(df.units.mean())")
	assert.NotContains(t, out, "```")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "3.5"))
}

func TestDescribeCommand(t *testing.T) {
	f := newFixture(t)

	t.Run("Text", func(t *testing.T) {
		out, err := f.execute(t, "", nil, "describe", f.csv)
		require.NoError(t, err)
		assert.Contains(t, out, "Rows: 2")
		assert.Regexp(t, `region\s+string`, out)
		assert.Regexp(t, `units\s+integer`, out)
	})

	t.Run("YAML", func(t *testing.T) {
		out, err := f.execute(t, "", nil, "describe", f.csv, "-o", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "type: integer")
		assert.Contains(t, out, "rows: 2")
	})
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(t)

	out, err := f.execute(t, "", nil, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	_, err = f.execute(t, "print('first')", nil, "run", f.csv, "-")
	require.NoError(t, err)
	_, err = f.execute(t, "print(df.nope)", nil, "run", f.csv, "-")
	require.ErrorIs(t, err, errAnalysisFailed)

	out, err = f.execute(t, "", nil, "history", "-o", "yaml")
	require.NoError(t, err)
	var entries []struct {
		ID      string `yaml:"id"`
		Script  string `yaml:"script"`
		Outcome struct {
			Kind string `yaml:"kind"`
		} `yaml:"outcome"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "data_reference_error", entries[0].Outcome.Kind)
	assert.Equal(t, "success", entries[1].Outcome.Kind)

	out, err = f.execute(t, "", nil, "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "data_reference_error")
	assert.NotContains(t, out, "success")

	out, err = f.execute(t, "", nil, "history", entries[1].ID)
	require.NoError(t, err)
	assert.Contains(t, out, entries[1].ID)
	assert.Contains(t, out, "print('first')")
	assert.Contains(t, out, "first")

	_, err = f.execute(t, "", nil, "history", "does-not-exist")
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg..", truncate("abcdefghijkl", 9))
}
