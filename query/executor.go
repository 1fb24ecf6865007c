package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shibukawa/ctepipe"
	"github.com/shopspring/decimal"
)

// Error definitions
var (
	ErrDatabaseConnection  = errors.New("database connection failed")
	ErrQueryExecution      = errors.New("query execution failed")
	ErrInvalidOutputFormat = errors.New("invalid output format")
	ErrInvalidOptions      = errors.New("invalid query options")
	ErrDangerousQuery      = errors.New("dangerous query detected")
)

// OutputFormat represents the supported output formats
type OutputFormat string

const (
	FormatTable    OutputFormat = "table"
	FormatJSON     OutputFormat = "json"
	FormatCSV      OutputFormat = "csv"
	FormatYAML     OutputFormat = "yaml"
	FormatMarkdown OutputFormat = "markdown"
)

// Options controls a single query execution
type Options struct {
	// Timeout in seconds, 0 disables it
	Timeout int

	Explain bool
	Limit   int
	Offset  int

	// Args are positional bind values, Params are bound with sql.Named
	Args   []any
	Params map[string]any

	ExecuteDangerousQuery bool
}

// Result represents the result of a query execution
type Result struct {
	SQL      string        `json:"sql"`
	Args     []any         `json:"args"`
	Duration time.Duration `json:"duration"`

	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Count   int      `json:"count"`
}

// Executor runs queries against a database
type Executor struct {
	db *sql.DB
}

// NewExecutor creates a new query executor
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{
		db: db,
	}
}

// IsDangerousQuery checks if a statement is a DELETE or UPDATE without WHERE
func IsDangerousQuery(sql string) bool {
	normalizedSQL := strings.ToUpper(strings.TrimSpace(sql))

	if strings.HasPrefix(normalizedSQL, "DELETE FROM") && !strings.Contains(normalizedSQL, "WHERE") {
		return true
	}

	if strings.HasPrefix(normalizedSQL, "UPDATE") && !strings.Contains(normalizedSQL, "WHERE") {
		return true
	}

	return false
}

// Prepare returns the SQL text that Execute sends for q, with limit and offset wrapped around
// the trailing select as a new pipeline stage.
func Prepare(q ctepipe.Query, options Options) (string, error) {
	if options.Limit < 0 || options.Offset < 0 {
		return "", fmt.Errorf("%w: limit and offset must be non-negative", ErrInvalidOptions)
	}

	if options.Offset > 0 && options.Limit == 0 {
		return "", fmt.Errorf("%w: offset requires a limit", ErrInvalidOptions)
	}

	statement, err := q.SelectText()
	if err != nil {
		return "", err
	}

	if IsDangerousQuery(statement) && !options.ExecuteDangerousQuery {
		return "", fmt.Errorf("%w: query contains DELETE/UPDATE without WHERE clause. Use --execute-dangerous-query flag to execute anyway", ErrDangerousQuery)
	}

	if options.Limit > 0 {
		paging := fmt.Sprintf("SELECT * FROM %s LIMIT %d", ctepipe.Placeholder, options.Limit)
		if options.Offset > 0 {
			paging += fmt.Sprintf(" OFFSET %d", options.Offset)
		}

		q, err = q.WithSelect(paging)
		if err != nil {
			return "", err
		}
	}

	text := q.SQL()
	if options.Explain {
		text = "EXPLAIN " + text
	}

	return text, nil
}

// Execute runs q and collects every row
func (e *Executor) Execute(ctx context.Context, q ctepipe.Query, options Options) (*Result, error) {
	sqlText, err := Prepare(q, options)
	if err != nil {
		return nil, err
	}

	args := bindArgs(options)

	queryCtx := ctx
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, time.Duration(options.Timeout)*time.Second)

		defer cancel()
	}

	startTime := time.Now()

	rows, err := e.db.QueryContext(queryCtx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	result := &Result{
		SQL:     sqlText,
		Args:    args,
		Columns: make([]string, len(columnTypes)),
	}

	numeric := make([]bool, len(columnTypes))
	for i, columnType := range columnTypes {
		result.Columns[i] = columnType.Name()
		numeric[i] = isDecimalType(columnType.DatabaseTypeName())
	}

	values := make([]any, len(columnTypes))

	scanArgs := make([]any, len(columnTypes))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowValues := make([]any, len(values))
		for i, v := range values {
			if numeric[i] {
				rowValues[i] = toDecimal(v)
			} else {
				rowValues[i] = convertSQLValue(v)
			}
		}

		result.Rows = append(result.Rows, rowValues)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}

	result.Duration = time.Since(startTime)
	result.Count = len(result.Rows)

	return result, nil
}

// bindArgs appends named params in name order after the positional args
func bindArgs(options Options) []any {
	args := make([]any, 0, len(options.Args)+len(options.Params))
	args = append(args, options.Args...)

	names := make([]string, 0, len(options.Params))
	for name := range options.Params {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		args = append(args, sql.Named(name, options.Params[name]))
	}

	return args
}

func isDecimalType(databaseType string) bool {
	databaseType = strings.ToUpper(databaseType)
	return strings.HasPrefix(databaseType, "NUMERIC") || strings.HasPrefix(databaseType, "DECIMAL")
}

// toDecimal converts a driver value of a NUMERIC/DECIMAL column to decimal.Decimal
func toDecimal(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case int64:
		return decimal.NewFromInt(value)
	case float64:
		return decimal.NewFromFloat(value)
	case []byte:
		if d, err := decimal.NewFromString(string(value)); err == nil {
			return d
		}

		return string(value)
	case string:
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}

		return value
	default:
		return convertSQLValue(v)
	}
}

// convertSQLValue converts SQL values to appropriate Go types
func convertSQLValue(v any) any {
	value, ok := v.([]byte)
	if !ok {
		return v
	}

	str := string(value)

	// JSON objects and arrays are decoded
	if len(str) > 1 && ((str[0] == '{' && str[len(str)-1] == '}') || (str[0] == '[' && str[len(str)-1] == ']')) {
		var jsonValue any
		if err := json.Unmarshal(value, &jsonValue); err == nil {
			return jsonValue
		}
	}

	return str
}
