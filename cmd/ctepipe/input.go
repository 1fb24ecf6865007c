package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/shibukawa/ctepipe"
	"github.com/shibukawa/ctepipe/query"
)

// loadQuery reads the query named by source: "-" is stdin, an existing path is read as a
// .sql/.md file (any other extension is plain SQL), anything else is looked up in query_dir.
func loadQuery(ctx *Context, source string) (ctepipe.Query, error) {
	if source == "-" {
		data, err := io.ReadAll(ctx.Stdin)
		if err != nil {
			return ctepipe.Query{}, fmt.Errorf("failed to read stdin: %w", err)
		}

		return ctepipe.New(string(data)), nil
	}

	if fileExists(source) {
		if ctx.Verbose {
			color.Blue("Reading query from %s", source)
		}

		q, err := query.LoadFile(source)
		if !errors.Is(err, query.ErrUnsupportedFileFormat) {
			return q, err
		}

		data, err := os.ReadFile(source)
		if err != nil {
			return ctepipe.Query{}, fmt.Errorf("failed to read %s: %w", source, err)
		}

		return ctepipe.New(string(data)), nil
	}

	config, err := ctepipe.LoadConfig(ctx.Config)
	if err != nil {
		return ctepipe.Query{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	if ctx.Verbose {
		color.Blue("Looking up %s in %s", source, config.QueryDir)
	}

	return query.NewLoader(config.QueryDir).Load(source)
}

// writeQuery prints q to the command output, or to file when it is set
func writeQuery(ctx *Context, q ctepipe.Query, file string) error {
	text := q.SQL()
	if text != "" && text[len(text)-1] != '\n' {
		text += "\n"
	}

	if file == "" {
		_, err := io.WriteString(ctx.Stdout, text)
		return err
	}

	if err := os.WriteFile(file, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}

	if !ctx.Quiet {
		color.Green("Wrote %s", file)
	}

	return nil
}

// fileExists checks if a regular file exists
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
