package tokenizer

import "strings"

// TrimTerminator removes the statement terminator from the end of sql. Trailing comments are
// kept; a ';' inside quoted text or comments is not a terminator.
func TrimTerminator(sql string) string {
	terminators := []int{}
	lastCode := -1

	walkCode(sql, func(pos int) {
		c := sql[pos]
		if isSpace(c) {
			return
		}

		if c == ';' {
			if lastCode < 0 || sql[lastCode] != ';' {
				terminators = terminators[:0]
			}

			terminators = append(terminators, pos)
		}

		lastCode = pos
	})

	if lastCode < 0 || sql[lastCode] != ';' {
		return strings.TrimRight(sql, spaceChars)
	}

	var builder strings.Builder

	last := 0
	for _, pos := range terminators {
		builder.WriteString(sql[last:pos])
		last = pos + 1
	}

	builder.WriteString(sql[last:])

	return strings.TrimRight(builder.String(), spaceChars)
}

// Indent prefixes every non-blank line of sql that starts outside quoted text and block
// comments. Lines continuing a literal are left as they are.
func Indent(sql, prefix string) string {
	starts := []int{0}

	walkCode(sql, func(pos int) {
		if sql[pos] == '\n' {
			starts = append(starts, pos+1)
		}
	})

	var builder strings.Builder

	last := 0
	for _, start := range starts {
		end := strings.IndexByte(sql[start:], '\n')
		if end < 0 {
			end = len(sql) - start
		}

		if strings.TrimSpace(sql[start:start+end]) == "" {
			continue
		}

		builder.WriteString(sql[last:start])
		builder.WriteString(prefix)
		last = start
	}

	builder.WriteString(sql[last:])

	return builder.String()
}

// walkCode calls visit for each byte of sql outside quoted text and comments. Scanning stops
// at an unterminated quote or comment.
func walkCode(sql string, visit func(pos int)) {
	s := newScanner(sql, false)

	for !s.eof() {
		c := s.src[s.pos]

		switch {
		case c == '\'' || c == '"':
			if err := s.skipQuoted(c); err != nil {
				return
			}
		case c == '$':
			if err := s.skipDollarQuoted(); err != nil {
				return
			}
		case s.hasPrefix("--"):
			s.skipLineComment()
		case s.hasPrefix("/*"):
			if err := s.skipBlockComment(); err != nil {
				return
			}
		default:
			visit(s.pos)
			s.pos++
		}
	}
}
