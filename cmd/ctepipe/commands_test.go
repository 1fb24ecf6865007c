package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/fatih/color"
	"github.com/shibukawa/ctepipe"
	"github.com/shibukawa/ctepipe/testhelper"
	"github.com/shibukawa/ctepipe/tokenizer"

	_ "github.com/mattn/go-sqlite3"
)

func init() {
	color.NoColor = true
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(content), 0o644)
	assert.NoError(t, err)

	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer

	err := run(args, strings.NewReader(""), &stdout)

	return stdout.String(), err
}

func TestTokensCmd(t *testing.T) {
	source := writeFile(t, t.TempDir(), "q.sql", "WITH a AS (SELECT 1) SELECT 2")

	out, err := runCLI(t, "tokens", source)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, 5, len(lines))
	assert.True(t, strings.HasPrefix(lines[0], "WITH "))
	assert.Contains(t, lines[1], "CTE_IDENTIFIER")
	assert.Contains(t, lines[1], `"a"`)
	assert.Contains(t, lines[4], `"SELECT 2"`)

	out, err = runCLI(t, "tokens", "--trivia", source)
	assert.NoError(t, err)
	assert.Equal(t, 9, len(strings.Split(strings.TrimRight(out, "\n"), "\n")))
}

func TestTokensCmd_JSON(t *testing.T) {
	source := writeFile(t, t.TempDir(), "q.sql", "WITH a AS (SELECT 1)\nSELECT 2")

	out, err := runCLI(t, "tokens", "--json", source)
	assert.NoError(t, err)

	var tokens []tokenJSON
	assert.NoError(t, json.Unmarshal([]byte(out), &tokens))
	assert.Equal(t, tokenJSON{Type: "SELECT", Value: "SELECT 2", Line: 2, Column: 1, Offset: 21}, tokens[len(tokens)-1])
}

func TestCTEsCmd(t *testing.T) {
	source := writeFile(t, t.TempDir(), "q.sql", `WITH RECURSIVE a AS (SELECT 1), "b c" AS (SELECT 2) SELECT 3`)

	out, err := runCLI(t, "ctes", source)
	assert.NoError(t, err)
	assert.Equal(t, "a\nb c\n", out)
}

func TestCTEsCmd_QueryDirLookup(t *testing.T) {
	dir := t.TempDir()
	queries := filepath.Join(dir, "queries")
	assert.NoError(t, os.Mkdir(queries, 0o755))

	writeFile(t, queries, "report.md", "# Report\n\n```sql\nWITH x AS (SELECT 1)\nSELECT * FROM x\n```\n")
	config := writeFile(t, dir, "ctepipe.yaml", "query_dir: "+queries+"\n")

	out, err := runCLI(t, "--config", config, "ctes", "report")
	assert.NoError(t, err)
	assert.Equal(t, "x\n", out)
}

func TestEditCommands(t *testing.T) {
	source := writeFile(t, t.TempDir(), "q.sql", "WITH foo AS (SELECT 1), bar AS (SELECT 2) SELECT 3\n")

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "prepend",
			args:     []string{"prepend", source, "zero AS (SELECT 0)"},
			expected: "WITH zero AS (SELECT 0),\nfoo AS (SELECT 1), bar AS (SELECT 2) SELECT 3\n",
		},
		{
			name:     "append",
			args:     []string{"append", source, "baz AS (SELECT 4)"},
			expected: "WITH foo AS (SELECT 1), bar AS (SELECT 2),\nbaz AS (SELECT 4) SELECT 3\n",
		},
		{
			name:     "replace",
			args:     []string{"replace", source, "bar AS (SELECT 20)"},
			expected: "WITH foo AS (SELECT 1), bar AS (SELECT 20) SELECT 3\n",
		},
		{
			name: "pipe",
			args: []string{"pipe", source, "SELECT count(*) FROM :_", "SELECT * FROM :_"},
			expected: testhelper.TrimIndent(t, `
				WITH foo AS (SELECT 1), bar AS (SELECT 2),
				_ AS (
				  SELECT 3
				),
				_1 AS (
				  SELECT count(*) FROM _
				) SELECT * FROM _1
				`),
		},
		{
			name:     "focus",
			args:     []string{"focus", source, "bar"},
			expected: "WITH foo AS (SELECT 1), bar AS (SELECT 2),\n_ AS (\n  SELECT 3\n) SELECT * FROM \"bar\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestEditCommands_OutputFile(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "q.sql", "SELECT 1")
	target := filepath.Join(dir, "out.sql")

	out, err := runCLI(t, "--quiet", "append", "-o", target, source, "foo AS (SELECT 2)")
	assert.NoError(t, err)
	assert.Equal(t, "", out)

	data, err := os.ReadFile(target)
	assert.NoError(t, err)
	assert.Equal(t, "WITH foo AS (SELECT 2)\nSELECT 1\n", string(data))
}

func TestEditCommands_Errors(t *testing.T) {
	source := writeFile(t, t.TempDir(), "q.sql", "WITH foo AS (SELECT 1) SELECT 2")

	_, err := runCLI(t, "replace", source, "missing AS (SELECT 1)")
	assert.True(t, errors.Is(err, ctepipe.ErrNoSuchCTE))

	_, err = runCLI(t, "append", source, "broken AS SELECT 1")
	assert.True(t, errors.Is(err, tokenizer.ErrMissingCTEBody))

	_, err = runCLI(t, "focus", source, "nope")
	assert.True(t, errors.Is(err, ctepipe.ErrNoSuchCTE))
}

func TestQueryCmd_SQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := sql.Open("sqlite3", dbPath)
	assert.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT);
		INSERT INTO items (id, name) VALUES (1, 'apple'), (2, 'banana'), (3, 'cherry');`)
	assert.NoError(t, err)
	assert.NoError(t, db.Close())

	source := writeFile(t, dir, "q.sql", "WITH picked AS (SELECT id, name FROM items WHERE id >= :min)\nSELECT * FROM picked ORDER BY id")

	out, err := runCLI(t, "query", "--db", dbPath, "--driver", "sqlite", "--format", "csv", "--param", "min=2", source)
	assert.NoError(t, err)
	assert.Equal(t, "id,name\n2,banana\n3,cherry\n", out)

	out, err = runCLI(t, "query", "--db", dbPath, "--driver", "sqlite", "--format", "csv", "--param", "min=1", "--limit", "1", "--offset", "1", source)
	assert.NoError(t, err)
	assert.Equal(t, "id,name\n2,banana\n", out)
}

func TestQueryCmd_DryRun(t *testing.T) {
	source := writeFile(t, t.TempDir(), "q.sql", "SELECT * FROM items")

	out, err := runCLI(t, "query", "--dry-run", "--limit", "10", source)
	assert.NoError(t, err)
	assert.Equal(t, "WITH _ AS (\n  SELECT * FROM items\n)\nSELECT * FROM _ LIMIT 10\n", out)
}

func TestQueryCmd_ResolveDatabaseConnection(t *testing.T) {
	config := &ctepipe.Config{
		Dialect: "postgres",
		Databases: map[string]ctepipe.Database{
			"development": {Driver: "sqlite", Connection: "dev.db"},
		},
		Query: ctepipe.QueryConfig{DefaultEnvironment: "development"},
	}

	driver, connection, err := (&QueryCmd{}).resolveDatabaseConnection(config)
	assert.NoError(t, err)
	assert.Equal(t, "sqlite", driver)
	assert.Equal(t, "dev.db", connection)

	driver, connection, err = (&QueryCmd{DBConnection: "postgres://localhost/app"}).resolveDatabaseConnection(config)
	assert.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://localhost/app", connection)

	_, _, err = (&QueryCmd{Environment: "production"}).resolveDatabaseConnection(config)
	assert.True(t, errors.Is(err, ErrEnvironmentNotFound))
}

func TestLoadQuery_Stdin(t *testing.T) {
	ctx := &Context{Stdin: strings.NewReader("WITH a AS (SELECT 1) SELECT 2"), Stdout: &bytes.Buffer{}}

	q, err := loadQuery(ctx, "-")
	assert.NoError(t, err)

	names, err := q.CTENames()
	assert.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input    string
		expected any
	}{
		{"42", int64(42)},
		{"1.5", 1.5},
		{"true", true},
		{"null", nil},
		{"hello", "hello"},
		{`[1,"a"]`, []any{float64(1), "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseValue(tt.input))
		})
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	assert.NoError(t, err)
	assert.Equal(t, "ctepipe v0.1.0\n", out)
}
