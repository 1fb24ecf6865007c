package tokenizer

import "strings"

// ReplacePlaceholder replaces placeholder with replacement wherever it appears as a standalone
// word outside of quoted text and comments. It returns the rewritten SQL and the number of
// replacements. An occurrence glued to a preceding ':' (a "::" cast) is left alone.
func ReplacePlaceholder(sql, placeholder, replacement string) (string, int) {
	if placeholder == "" {
		return sql, 0
	}

	s := newScanner(sql, false)

	var builder strings.Builder

	count := 0
	last := 0

	for !s.eof() {
		c := s.src[s.pos]

		switch {
		case c == '\'' || c == '"':
			if err := s.skipQuoted(c); err != nil {
				s.pos = len(s.src)
			}
		case c == '$':
			if err := s.skipDollarQuoted(); err != nil {
				s.pos = len(s.src)
			}
		case s.hasPrefix("--"):
			s.skipLineComment()
		case s.hasPrefix("/*"):
			if err := s.skipBlockComment(); err != nil {
				s.pos = len(s.src)
			}
		case s.hasPrefix(placeholder) && s.standalone(len(placeholder)):
			builder.WriteString(sql[last:s.pos])
			builder.WriteString(replacement)

			s.pos += len(placeholder)
			last = s.pos
			count++
		default:
			s.pos++
		}
	}

	builder.WriteString(sql[last:])

	return builder.String(), count
}

func (s *scanner) standalone(size int) bool {
	if s.pos > 0 {
		prev := s.src[s.pos-1]
		if prev == ':' || isWordByte(prev) {
			return false
		}
	}

	end := s.pos + size

	return end >= len(s.src) || !isWordByte(s.src[end])
}
