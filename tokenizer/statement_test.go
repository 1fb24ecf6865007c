package tokenizer

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestTrimTerminator(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no terminator", input: "SELECT 1", expected: "SELECT 1"},
		{name: "terminator", input: "SELECT 1;\n", expected: "SELECT 1"},
		{name: "repeated terminators", input: "SELECT 1; ;", expected: "SELECT 1"},
		{name: "trailing line comment", input: "SELECT 1; -- done", expected: "SELECT 1 -- done"},
		{name: "trailing block comment", input: "SELECT 1 /* a; */;\n/* end */", expected: "SELECT 1 /* a; */\n/* end */"},
		{name: "semicolon in literal", input: "SELECT ';'", expected: "SELECT ';'"},
		{name: "semicolon in dollar quote", input: "SELECT $$;$$ -- x;", expected: "SELECT $$;$$ -- x;"},
		{name: "inner semicolon kept", input: "SELECT 1; SELECT 2", expected: "SELECT 1; SELECT 2"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, TrimTerminator(test.input))
		})
	}
}

func TestIndent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain lines", input: "SELECT *\nFROM a", expected: "  SELECT *\n  FROM a"},
		{name: "blank line", input: "SELECT *\n\nFROM a", expected: "  SELECT *\n\n  FROM a"},
		{name: "multi-line literal", input: "SELECT 'x\ny'\nFROM a", expected: "  SELECT 'x\ny'\n  FROM a"},
		{name: "multi-line dollar quote", input: "SELECT $t$a\nb$t$", expected: "  SELECT $t$a\nb$t$"},
		{name: "multi-line block comment", input: "/* a\nb */\nSELECT 1", expected: "  /* a\nb */\n  SELECT 1"},
		{name: "line comment", input: "SELECT 1 -- 'x\nFROM a", expected: "  SELECT 1 -- 'x\n  FROM a"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Indent(test.input, "  "))
		})
	}
}
