package tokenizer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors
var (
	ErrUnterminatedComment  = errors.New("unterminated block comment")
	ErrUnterminatedQuote    = errors.New("unterminated quoted text")
	ErrUnterminatedCTEBody  = errors.New("unterminated CTE body")
	ErrMissingCTEIdentifier = errors.New("expected CTE identifier")
	ErrMissingColumnName    = errors.New("expected column name")
	ErrMissingColumnsClose  = errors.New("expected ',' or ')' in column list")
	ErrMissingAS            = errors.New("expected AS")
	ErrMissingCTEBody       = errors.New("expected '(' opening the CTE body")
	ErrEmptyCTEBody         = errors.New("empty CTE body")
	ErrUnexpectedRecursive  = errors.New("RECURSIVE is not allowed here")
	ErrUnexpectedInput      = errors.New("unexpected input after CTE definition")
)

// LexicalError reports the position at which scanning stopped.
type LexicalError struct {
	Err    error
	Offset int
	Line   int
	Column int
	Source string
}

// Error renders the message followed by the source with a caret under the offending byte.
func (e *LexicalError) Error() string {
	lines := strings.Split(e.Source, "\n")
	out := make([]string, 0, len(lines)+2)
	out = append(out, fmt.Sprintf("%s at line %d, column %d:", e.Err, e.Line, e.Column))

	for i, line := range lines {
		out = append(out, line)

		if i == e.Line-1 {
			out = append(out, strings.Repeat(" ", e.Column-1)+"^")
		}
	}

	return strings.TrimRight(strings.Join(out, "\n"), "\n")
}

func (e *LexicalError) Unwrap() error {
	return e.Err
}

// lineIndex maps byte offsets to 1-based line and column numbers.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	index := lineIndex{0}

	for i := range len(src) {
		if src[i] == '\n' {
			index = append(index, i+1)
		}
	}

	return index
}

func (l lineIndex) position(offset int) Position {
	line := sort.SearchInts(l, offset+1) - 1
	if line < 0 {
		line = 0
	}

	return Position{
		Line:   line + 1,
		Column: offset - l[line] + 1,
		Offset: offset,
	}
}
