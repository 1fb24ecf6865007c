package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-yaml"
	"github.com/shibukawa/ctepipe"
	"github.com/shibukawa/ctepipe/query"
)

// QueryCmd represents the query command
type QueryCmd struct {
	Source                string   `arg:"" help:"SQL file, query name, or - for stdin"`
	ParamsFile            string   `short:"p" name:"params" help:"Named parameters file (JSON/YAML)" type:"path"`
	Param                 []string `name:"param" help:"Individual named parameter (key=value format)"`
	Arg                   []string `name:"arg" help:"Positional bind value, in order"`
	DBConnection          string   `name:"db" help:"Database connection string"`
	Driver                string   `name:"driver" help:"Driver for --db (postgres, mysql, sqlite)"`
	Environment           string   `name:"env" help:"Environment name from config"`
	Format                string   `name:"format" help:"Output format (table, json, csv, yaml, markdown)"`
	OutputFile            string   `short:"o" name:"output" help:"Output file (defaults to stdout)" type:"path"`
	Timeout               int      `name:"timeout" help:"Query timeout in seconds (defaults to config)"`
	Explain               bool     `name:"explain" help:"Show query execution plan"`
	Limit                 int      `name:"limit" help:"Limit number of rows returned"`
	Offset                int      `name:"offset" help:"Offset for result set"`
	ExecuteDangerousQuery bool     `name:"execute-dangerous-query" help:"Execute DELETE/UPDATE queries without WHERE clause (dangerous!)"`
	DryRun                bool     `name:"dry-run" help:"Show the SQL without executing"`
}

// Run executes the query command
func (q *QueryCmd) Run(ctx *Context) error {
	config, err := ctepipe.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	statement, err := loadQuery(ctx, q.Source)
	if err != nil {
		return err
	}

	options, err := q.buildOptions(ctx, config)
	if err != nil {
		return err
	}

	if q.DryRun {
		sql, err := query.Prepare(statement, options)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(ctx.Stdout, sql)

		return err
	}

	format := q.Format
	if format == "" {
		format = config.Query.DefaultFormat
	}

	if !query.IsValidOutputFormat(format) {
		return fmt.Errorf("%w: %s", ErrInvalidOutputFormat, format)
	}

	driver, connection, err := q.resolveDatabaseConnection(config)
	if err != nil {
		return err
	}

	if ctx.Verbose {
		color.Blue("Connecting to %s database", query.NormalizeDriverName(driver))
	}

	bg := context.Background()

	db, err := query.OpenDatabase(bg, driver, connection, options.Timeout)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := query.NewExecutor(db).Execute(bg, statement, options)
	if err != nil {
		if !ctx.Quiet {
			color.Red("Query failed")
		}

		return err
	}

	var output io.Writer = ctx.Stdout

	if q.OutputFile != "" {
		file, err := os.Create(q.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()

		output = file
	}

	if err := query.NewFormatter(query.OutputFormat(strings.ToLower(format))).Format(result, output); err != nil {
		return err
	}

	if ctx.Verbose {
		color.Green("%d rows in %v", result.Count, result.Duration)
	}

	return nil
}

func (q *QueryCmd) buildOptions(ctx *Context, config *ctepipe.Config) (query.Options, error) {
	params, err := q.loadParameters(ctx)
	if err != nil {
		return query.Options{}, fmt.Errorf("failed to load parameters: %w", err)
	}

	options := query.Options{
		Timeout:               config.Query.Timeout,
		Explain:               q.Explain,
		Limit:                 config.Query.Limit,
		Offset:                q.Offset,
		Params:                params,
		ExecuteDangerousQuery: q.ExecuteDangerousQuery,
	}

	if q.Timeout > 0 {
		options.Timeout = q.Timeout
	}

	if q.Limit > 0 {
		options.Limit = q.Limit
	}

	for _, arg := range q.Arg {
		options.Args = append(options.Args, parseValue(arg))
	}

	return options, nil
}

// resolveDatabaseConnection picks --db or the configured environment
func (q *QueryCmd) resolveDatabaseConnection(config *ctepipe.Config) (string, string, error) {
	if q.DBConnection != "" {
		driver := q.Driver
		if driver == "" {
			driver = config.Dialect
		}

		return driver, q.DBConnection, nil
	}

	env := q.Environment
	if env == "" {
		env = config.Query.DefaultEnvironment
	}

	if env == "" {
		return "", "", ErrMissingDBOrEnv
	}

	db, ok := config.Database(env)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrEnvironmentNotFound, env)
	}

	return db.Driver, db.Connection, nil
}

// loadParameters loads named parameters from the params file and --param flags
func (q *QueryCmd) loadParameters(ctx *Context) (map[string]any, error) {
	params := make(map[string]any)

	if q.ParamsFile != "" {
		data, err := os.ReadFile(q.ParamsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read parameters file: %w", err)
		}

		switch ext := strings.ToLower(filepath.Ext(q.ParamsFile)); ext {
		case ".json":
			if err := json.Unmarshal(data, &params); err != nil {
				return nil, fmt.Errorf("failed to parse JSON parameters: %w", err)
			}
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &params); err != nil {
				return nil, fmt.Errorf("failed to parse YAML parameters: %w", err)
			}
		default:
			return nil, fmt.Errorf("%w: unsupported parameters file format: %s", ErrInvalidParams, ext)
		}

		if ctx.Verbose {
			color.Blue("Loaded parameters from %s", q.ParamsFile)
		}
	}

	// command line parameters override the file
	for _, param := range q.Param {
		key, value, ok := strings.Cut(param, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: parameter must be in key=value format: %s", ErrInvalidParams, param)
		}

		params[key] = parseValue(value)
	}

	return params, nil
}

// parseValue turns a command line value into a bool, number, JSON value or string
func parseValue(value string) any {
	if (strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}")) ||
		(strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]")) {
		var jsonValue any
		if err := json.Unmarshal([]byte(value), &jsonValue); err == nil {
			return jsonValue
		}
	}

	switch value {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}

	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return value
}
