package query

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/shopspring/decimal"
)

// Formatter formats query results
type Formatter struct {
	format OutputFormat
}

// NewFormatter creates a new result formatter
func NewFormatter(format OutputFormat) *Formatter {
	return &Formatter{
		format: format,
	}
}

// Format writes result to output in the formatter's output format
func (f *Formatter) Format(result *Result, output io.Writer) error {
	switch f.format {
	case FormatTable:
		return formatAsTable(result, output)
	case FormatJSON:
		return formatAsJSON(result, output)
	case FormatCSV:
		return formatAsCSV(result, output)
	case FormatYAML:
		return formatAsYAML(result, output)
	case FormatMarkdown:
		return formatAsMarkdown(result, output)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOutputFormat, f.format)
	}
}

func formatAsTable(result *Result, output io.Writer) error {
	if len(result.Rows) == 0 {
		_, err := fmt.Fprintln(output, "No results")
		return err
	}

	writer := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)

	fmt.Fprintln(writer, strings.Join(result.Columns, "\t"))

	rules := make([]string, len(result.Columns))
	for i, column := range result.Columns {
		rules[i] = strings.Repeat("-", len(column))
	}

	fmt.Fprintln(writer, strings.Join(rules, "\t"))

	for _, row := range result.Rows {
		fmt.Fprintln(writer, strings.Join(rowStrings(row), "\t"))
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(output, "(%d rows, Time: %v)\n", result.Count, result.Duration)

	return err
}

func formatAsMarkdown(result *Result, output io.Writer) error {
	if len(result.Rows) == 0 {
		_, err := fmt.Fprintln(output, "No results")
		return err
	}

	var builder strings.Builder

	builder.WriteString("| " + strings.Join(escapeCells(result.Columns), " | ") + " |\n")
	builder.WriteString("|" + strings.Repeat(" --- |", len(result.Columns)) + "\n")

	for _, row := range result.Rows {
		builder.WriteString("| " + strings.Join(escapeCells(rowStrings(row)), " | ") + " |\n")
	}

	fmt.Fprintf(&builder, "\n<!-- %d rows, Time: %v -->\n", result.Count, result.Duration)

	_, err := io.WriteString(output, builder.String())

	return err
}

func formatAsJSON(result *Result, output io.Writer) error {
	jsonResult := map[string]any{
		"data":     rowsToMaps(result.Columns, result.Rows),
		"count":    result.Count,
		"duration": result.Duration.String(),
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")

	return encoder.Encode(jsonResult)
}

func formatAsCSV(result *Result, output io.Writer) error {
	writer := csv.NewWriter(output)

	if err := writer.Write(result.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range result.Rows {
		if err := writer.Write(rowStrings(row)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()

	return writer.Error()
}

func formatAsYAML(result *Result, output io.Writer) error {
	data := make([]yaml.MapSlice, 0, len(result.Rows))

	for _, row := range result.Rows {
		item := make(yaml.MapSlice, 0, len(result.Columns))
		for i, column := range result.Columns {
			if i < len(row) {
				item = append(item, yaml.MapItem{Key: column, Value: plainValue(row[i])})
			}
		}

		data = append(data, item)
	}

	yamlResult := yaml.MapSlice{
		{Key: "data", Value: data},
		{Key: "count", Value: result.Count},
		{Key: "duration", Value: result.Duration.String()},
	}

	encoded, err := yaml.Marshal(yamlResult)
	if err != nil {
		return fmt.Errorf("failed to marshal results to YAML: %w", err)
	}

	_, err = output.Write(encoded)

	return err
}

func rowsToMaps(columns []string, rows [][]any) []map[string]any {
	result := make([]map[string]any, 0, len(rows))

	for _, row := range rows {
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rowMap[col] = row[i]
			}
		}

		result = append(result, rowMap)
	}

	return result
}

func rowStrings(row []any) []string {
	values := make([]string, len(row))
	for i, val := range row {
		values[i] = formatValue(val)
	}

	return values
}

func escapeCells(cells []string) []string {
	escaped := make([]string, len(cells))
	for i, cell := range cells {
		escaped[i] = strings.ReplaceAll(strings.ReplaceAll(cell, "|", `\|`), "\n", " ")
	}

	return escaped
}

// plainValue turns decimals and times into strings so every encoder renders them the same
func plainValue(val any) any {
	switch v := val.(type) {
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case []byte:
		return string(v)
	default:
		return v
	}
}

// formatValue formats a value as a string
func formatValue(val any) string {
	switch v := plainValue(val).(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// IsValidOutputFormat checks if the output format is valid
func IsValidOutputFormat(format string) bool {
	f := OutputFormat(strings.ToLower(format))
	return f == FormatTable || f == FormatJSON || f == FormatCSV || f == FormatYAML || f == FormatMarkdown
}
