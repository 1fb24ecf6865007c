package tokenizer

// TokenType represents the type of a token
type TokenType int

const (
	// Trivia
	WHITESPACE TokenType = iota
	COMMENT              // -- line comment or /* block comment */

	// WITH clause
	WITH      // WITH keyword
	RECURSIVE // RECURSIVE keyword

	// CTE definition
	CTE_IDENTIFIER    // bare or double-quoted CTE name
	CTE_COLUMNS_OPEN  // ( opening the column list
	CTE_COLUMN        // column name in the column list
	CTE_COLUMN_DIV    // , between column names
	CTE_COLUMNS_CLOSE // ) closing the column list
	AS                // AS keyword
	MATERIALIZED      // MATERIALIZED hint
	NOT_MATERIALIZED  // NOT MATERIALIZED hint
	CTE_SELECT        // parenthesized CTE body, parens included
	CTE_COMMA         // , between CTE definitions

	// Trailing statement
	SELECT
)

// String returns the string representation of TokenType
func (t TokenType) String() string {
	switch t {
	case WHITESPACE:
		return "WHITESPACE"
	case COMMENT:
		return "COMMENT"
	case WITH:
		return "WITH"
	case RECURSIVE:
		return "RECURSIVE"
	case CTE_IDENTIFIER:
		return "CTE_IDENTIFIER"
	case CTE_COLUMNS_OPEN:
		return "CTE_COLUMNS_OPEN"
	case CTE_COLUMN:
		return "CTE_COLUMN"
	case CTE_COLUMN_DIV:
		return "CTE_COLUMN_DIV"
	case CTE_COLUMNS_CLOSE:
		return "CTE_COLUMNS_CLOSE"
	case AS:
		return "AS"
	case MATERIALIZED:
		return "MATERIALIZED"
	case NOT_MATERIALIZED:
		return "NOT_MATERIALIZED"
	case CTE_SELECT:
		return "CTE_SELECT"
	case CTE_COMMA:
		return "CTE_COMMA"
	case SELECT:
		return "SELECT"
	default:
		return "UNKNOWN"
	}
}

// IsTrivia reports whether the token type carries only formatting.
func (t TokenType) IsTrivia() bool {
	return t == WHITESPACE || t == COMMENT
}

// Position represents a position in the source code
type Position struct {
	Line   int
	Column int
	Offset int
}

// Token represents a token
type Token struct {
	Type     TokenType
	Value    string
	Position Position
}

// End returns the byte offset just past the token.
func (t Token) End() int {
	return t.Position.Offset + len(t.Value)
}

// String returns the string representation of Token
func (t Token) String() string {
	return t.Type.String() + ": " + t.Value
}

// Join concatenates token values back into SQL text.
func Join(tokens []Token) string {
	size := 0
	for _, token := range tokens {
		size += len(token.Value)
	}

	buf := make([]byte, 0, size)
	for _, token := range tokens {
		buf = append(buf, token.Value...)
	}

	return string(buf)
}
