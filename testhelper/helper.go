package testhelper

import (
	"strings"
	"testing"
)

// TrimIndent drops the first line of src and removes the indentation of the second line from every line.
// Remaining leading tabs become four spaces each.
func TrimIndent(t *testing.T, src string) string {
	t.Helper()

	lines := strings.Split(src, "\n")
	if len(lines) < 2 {
		return src
	}

	second := lines[1]
	indent := second[:len(second)-len(strings.TrimLeft(second, " \t"))]

	lines = lines[1:]
	for i, line := range lines {
		line = strings.TrimPrefix(line, indent)
		body := strings.TrimLeft(line, "\t")
		lines[i] = strings.Repeat("    ", len(line)-len(body)) + body
	}

	return strings.Join(lines, "\n")
}
