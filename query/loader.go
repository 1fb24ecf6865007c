package query

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shibukawa/ctepipe"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Error definitions for query loading
var (
	ErrUnsupportedFileFormat = errors.New("unsupported query file format")
	ErrFileNotFound          = errors.New("query file not found")
	ErrFileRead              = errors.New("failed to read query file")
	ErrNoSQLBlock            = errors.New("no sql code block in markdown")
)

// Loader resolves query names against a query directory.
type Loader struct {
	Dir string
}

// NewLoader creates a loader rooted at dir
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

// Load finds <name>.sql or <name>.md in the query directory. A name that already carries
// one of those extensions is used as is.
func (l *Loader) Load(name string) (ctepipe.Query, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".sql" || ext == ".md" {
		return LoadFile(l.path(name))
	}

	for _, candidate := range []string{name + ".sql", name + ".md"} {
		path := l.path(candidate)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return ctepipe.Query{}, fmt.Errorf("%w: %s", ErrFileNotFound, name)
}

func (l *Loader) path(name string) string {
	if filepath.IsAbs(name) || l.Dir == "" {
		return name
	}

	return filepath.Join(l.Dir, name)
}

// LoadFile loads a query from a .sql or .md file
func LoadFile(path string) (ctepipe.Query, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ctepipe.Query{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".sql" && ext != ".md" {
		return ctepipe.Query{}, fmt.Errorf("%w: %s", ErrUnsupportedFileFormat, ext)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ctepipe.Query{}, fmt.Errorf("%w: %v", ErrFileRead, err)
	}

	if ext == ".sql" {
		return ctepipe.New(string(content)), nil
	}

	sql, ok := extractSQL(content)
	if !ok {
		return ctepipe.Query{}, fmt.Errorf("%w: %s", ErrNoSQLBlock, path)
	}

	return ctepipe.New(sql), nil
}

// extractSQL returns the body of the first ```sql fenced block
func extractSQL(content []byte) (string, bool) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(content))

	var (
		sql   strings.Builder
		found bool
	)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		block, ok := n.(*ast.FencedCodeBlock)
		if !ok || !strings.EqualFold(string(block.Language(content)), "sql") {
			return ast.WalkContinue, nil
		}

		lines := block.Lines()
		for i := range lines.Len() {
			line := lines.At(i)
			sql.Write(line.Value(content))
		}

		found = true

		return ast.WalkStop, nil
	})

	return strings.TrimRight(sql.String(), "\n"), found
}
