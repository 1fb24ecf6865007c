package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// production is a pending grammar step on the scanner's continuation stack.
type production int

const (
	prodStatement production = iota
	prodRecursive
	prodCTE
	prodColumns
	prodColumn
	prodColumnNext
	prodAS
	prodMaterialized
	prodBody
	prodCTENext
	prodSelect
	prodFragmentEnd
)

// CTEOptions are options for TokenizeCTE
type CTEOptions struct {
	// AllowRecursive accepts a leading RECURSIVE keyword in the fragment.
	AllowRecursive bool
}

// Tokenize scans a complete statement: an optional WITH clause followed by the trailing select.
func Tokenize(sql string) ([]Token, error) {
	s := newScanner(sql, true)
	s.push(prodStatement)

	return s.run()
}

// TokenizeCTE scans a standalone CTE definition list as it would appear right after WITH.
// Anything after the last definition is rejected.
func TokenizeCTE(fragment string, options ...CTEOptions) ([]Token, error) {
	opts := CTEOptions{AllowRecursive: true}
	if len(options) > 0 {
		opts = options[0]
	}

	s := newScanner(fragment, opts.AllowRecursive)
	s.push(prodRecursive, prodCTE, prodFragmentEnd)

	return s.run()
}

type scanner struct {
	src            string
	pos            int
	lines          lineIndex
	stack          []production
	tokens         []Token
	allowRecursive bool
}

func newScanner(src string, allowRecursive bool) *scanner {
	return &scanner{
		src:            src,
		lines:          newLineIndex(src),
		stack:          make([]production, 0, 8),
		tokens:         make([]Token, 0, 32),
		allowRecursive: allowRecursive,
	}
}

// push schedules productions so that the first argument runs first.
func (s *scanner) push(prods ...production) {
	for i := len(prods) - 1; i >= 0; i-- {
		s.stack = append(s.stack, prods[i])
	}
}

func (s *scanner) run() ([]Token, error) {
	for len(s.stack) > 0 {
		next := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]

		if err := s.step(next); err != nil {
			return nil, err
		}
	}

	return s.tokens, nil
}

func (s *scanner) step(p production) error {
	switch p {
	case prodStatement:
		return s.statement()
	case prodRecursive:
		return s.recursive()
	case prodCTE:
		return s.cte()
	case prodColumns:
		return s.columns()
	case prodColumn:
		return s.column()
	case prodColumnNext:
		return s.columnNext()
	case prodAS:
		return s.as()
	case prodMaterialized:
		return s.materialized()
	case prodBody:
		return s.body()
	case prodCTENext:
		return s.cteNext()
	case prodSelect:
		return s.selectStatement()
	case prodFragmentEnd:
		return s.fragmentEnd()
	default:
		return fmt.Errorf("unknown production %d", p)
	}
}

func (s *scanner) statement() error {
	if err := s.trivia(); err != nil {
		return err
	}

	if s.eof() {
		return nil
	}

	if start, ok := s.keyword("WITH"); ok {
		s.emit(WITH, start)

		if err := s.trivia(); err != nil {
			return err
		}

		s.push(prodRecursive, prodCTE, prodSelect)

		return nil
	}

	s.push(prodSelect)

	return nil
}

func (s *scanner) recursive() error {
	if err := s.trivia(); err != nil {
		return err
	}

	start, ok := s.keyword("RECURSIVE")
	if !ok {
		return nil
	}

	if !s.allowRecursive {
		return s.fail(start, ErrUnexpectedRecursive)
	}

	s.emit(RECURSIVE, start)

	return s.trivia()
}

func (s *scanner) cte() error {
	start := s.pos

	ok, err := s.identifier()
	if err != nil {
		return err
	}

	if !ok {
		return s.fail(start, ErrMissingCTEIdentifier)
	}

	s.emit(CTE_IDENTIFIER, start)

	if err := s.trivia(); err != nil {
		return err
	}

	s.push(prodColumns, prodAS, prodMaterialized, prodBody, prodCTENext)

	return nil
}

func (s *scanner) columns() error {
	if s.peek() != '(' {
		return nil
	}

	s.single(CTE_COLUMNS_OPEN)

	if err := s.trivia(); err != nil {
		return err
	}

	s.push(prodColumn)

	return nil
}

func (s *scanner) column() error {
	start := s.pos

	ok, err := s.identifier()
	if err != nil {
		return err
	}

	if !ok {
		return s.fail(start, ErrMissingColumnName)
	}

	s.emit(CTE_COLUMN, start)

	if err := s.trivia(); err != nil {
		return err
	}

	s.push(prodColumnNext)

	return nil
}

func (s *scanner) columnNext() error {
	switch s.peek() {
	case ',':
		s.single(CTE_COLUMN_DIV)
		s.push(prodColumn)
	case ')':
		s.single(CTE_COLUMNS_CLOSE)
	default:
		return s.fail(s.pos, ErrMissingColumnsClose)
	}

	return s.trivia()
}

func (s *scanner) as() error {
	start, ok := s.keyword("AS")
	if !ok {
		return s.fail(s.pos, ErrMissingAS)
	}

	s.emit(AS, start)

	return s.trivia()
}

func (s *scanner) materialized() error {
	if start, ok := s.keyword("MATERIALIZED"); ok {
		s.emit(MATERIALIZED, start)
		return s.trivia()
	}

	start, ok := s.keyword("NOT")
	if !ok {
		return nil
	}

	if err := s.skipGap(); err != nil {
		return err
	}

	if _, ok := s.keyword("MATERIALIZED"); !ok {
		// leave NOT for the body production to reject
		s.pos = start
		return nil
	}

	s.emit(NOT_MATERIALIZED, start)

	return s.trivia()
}

// body scans the parenthesized CTE select. Quoted text and comments suspend paren counting.
func (s *scanner) body() error {
	start := s.pos
	if s.peek() != '(' {
		return s.fail(start, ErrMissingCTEBody)
	}

	depth := 0
	empty := true

	for !s.eof() {
		c := s.src[s.pos]

		switch {
		case c == '(':
			if depth > 0 {
				empty = false
			}

			depth++
			s.pos++
		case c == ')':
			depth--
			s.pos++

			if depth == 0 {
				if empty {
					return s.fail(start, ErrEmptyCTEBody)
				}

				s.emit(CTE_SELECT, start)

				return s.trivia()
			}

			empty = false
		case c == '\'' || c == '"':
			empty = false

			if err := s.skipQuoted(c); err != nil {
				return err
			}
		case c == '$':
			empty = false

			if err := s.skipDollarQuoted(); err != nil {
				return err
			}
		case s.hasPrefix("--"):
			s.skipLineComment()
		case s.hasPrefix("/*"):
			if err := s.skipBlockComment(); err != nil {
				return err
			}
		case isSpace(c):
			s.pos++
		default:
			empty = false
			s.pos++
		}
	}

	return s.fail(start, ErrUnterminatedCTEBody)
}

func (s *scanner) cteNext() error {
	if s.peek() != ',' {
		return nil
	}

	s.single(CTE_COMMA)

	if err := s.trivia(); err != nil {
		return err
	}

	s.push(prodCTE)

	return nil
}

// selectStatement takes the rest of the input; trailing whitespace becomes its own token.
func (s *scanner) selectStatement() error {
	if s.eof() {
		return nil
	}

	end := len(strings.TrimRight(s.src, spaceChars))
	if end > s.pos {
		start := s.pos
		s.pos = end
		s.emit(SELECT, start)
	}

	if !s.eof() {
		start := s.pos
		s.pos = len(s.src)
		s.emit(WHITESPACE, start)
	}

	return nil
}

func (s *scanner) fragmentEnd() error {
	if !s.eof() {
		return s.fail(s.pos, ErrUnexpectedInput)
	}

	return nil
}

// trivia emits whitespace and comment tokens until something significant shows up.
func (s *scanner) trivia() error {
	for !s.eof() {
		start := s.pos

		switch {
		case isSpace(s.src[s.pos]):
			for !s.eof() && isSpace(s.src[s.pos]) {
				s.pos++
			}

			s.emit(WHITESPACE, start)
		case s.hasPrefix("--"):
			s.skipLineComment()
			s.emit(COMMENT, start)
		case s.hasPrefix("/*"):
			if err := s.skipBlockComment(); err != nil {
				return err
			}

			s.emit(COMMENT, start)
		default:
			return nil
		}
	}

	return nil
}

// identifier consumes a bare word or a double-quoted identifier.
func (s *scanner) identifier() (bool, error) {
	if s.peek() == '"' {
		start := s.pos
		if err := s.skipQuoted('"'); err != nil {
			return false, err
		}

		if s.pos-start == 2 {
			s.pos = start
			return false, nil
		}

		return true, nil
	}

	r, size := utf8.DecodeRuneInString(s.src[s.pos:])
	if size == 0 || !(unicode.IsLetter(r) || r == '_') {
		return false, nil
	}

	s.pos += size
	s.skipWordRunes()

	return true, nil
}

// keyword consumes word when it appears at the cursor as a whole word, ignoring case.
func (s *scanner) keyword(word string) (int, bool) {
	start := s.pos
	end := start + len(word)

	if end > len(s.src) || !strings.EqualFold(s.src[start:end], word) {
		return start, false
	}

	r, size := utf8.DecodeRuneInString(s.src[end:])
	if size > 0 && isWordRune(r) {
		return start, false
	}

	s.pos = end

	return start, true
}

func (s *scanner) skipWordRunes() {
	for !s.eof() {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !isWordRune(r) {
			return
		}

		s.pos += size
	}
}

// skipQuoted consumes a quoted run where a doubled delimiter is an escaped one. In E'...'
// escape strings a backslash also escapes the next byte.
func (s *scanner) skipQuoted(delimiter byte) error {
	start := s.pos
	escapes := delimiter == '\'' && s.escapeString(start)
	s.pos++

	for !s.eof() {
		if escapes && s.src[s.pos] == '\\' {
			s.pos += 2
			continue
		}

		if s.src[s.pos] == delimiter {
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == delimiter {
				s.pos += 2
				continue
			}

			s.pos++

			return nil
		}

		s.pos++
	}

	return s.fail(start, ErrUnterminatedQuote)
}

// skipDollarQuoted consumes $tag$...$tag$. A '$' that does not open a tag is consumed alone.
func (s *scanner) skipDollarQuoted() error {
	start := s.pos

	if start > 0 && isWordByte(s.src[start-1]) {
		s.pos++
		return nil
	}

	end := start + 1
	for end < len(s.src) && isWordByte(s.src[end]) && s.src[end] != '$' {
		if end == start+1 && s.src[end] >= '0' && s.src[end] <= '9' {
			break
		}

		end++
	}

	if end >= len(s.src) || s.src[end] != '$' {
		s.pos++
		return nil
	}

	tag := s.src[start : end+1]

	closing := strings.Index(s.src[end+1:], tag)
	if closing < 0 {
		return s.fail(start, ErrUnterminatedQuote)
	}

	s.pos = end + 1 + closing + len(tag)

	return nil
}

func (s *scanner) escapeString(quote int) bool {
	if quote == 0 || (s.src[quote-1] != 'E' && s.src[quote-1] != 'e') {
		return false
	}

	return quote == 1 || !isWordByte(s.src[quote-2])
}

// skipGap consumes whitespace and comments between two keywords.
func (s *scanner) skipGap() error {
	for !s.eof() {
		switch {
		case isSpace(s.src[s.pos]):
			s.pos++
		case s.hasPrefix("--"):
			s.skipLineComment()
		case s.hasPrefix("/*"):
			if err := s.skipBlockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}

	return nil
}

func (s *scanner) skipLineComment() {
	for !s.eof() && s.src[s.pos] != '\n' {
		s.pos++
	}
}

// skipBlockComment consumes a block comment; comments nest as in PostgreSQL.
func (s *scanner) skipBlockComment() error {
	start := s.pos
	depth := 0

	for !s.eof() {
		switch {
		case s.hasPrefix("/*"):
			depth++
			s.pos += 2
		case s.hasPrefix("*/"):
			depth--
			s.pos += 2

			if depth == 0 {
				return nil
			}
		default:
			s.pos++
		}
	}

	return s.fail(start, ErrUnterminatedComment)
}

func (s *scanner) single(tokenType TokenType) {
	start := s.pos
	s.pos++
	s.emit(tokenType, start)
}

func (s *scanner) emit(tokenType TokenType, start int) {
	s.tokens = append(s.tokens, Token{
		Type:     tokenType,
		Value:    s.src[start:s.pos],
		Position: s.lines.position(start),
	})
}

func (s *scanner) fail(offset int, err error) error {
	pos := s.lines.position(offset)

	return &LexicalError{
		Err:    err,
		Offset: offset,
		Line:   pos.Line,
		Column: pos.Column,
		Source: s.src,
	}
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}

	return s.src[s.pos]
}

func (s *scanner) hasPrefix(prefix string) bool {
	return strings.HasPrefix(s.src[s.pos:], prefix)
}

const spaceChars = " \t\n\r\f\v"

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	default:
		return false
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$'
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
