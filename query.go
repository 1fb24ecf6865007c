package ctepipe

import (
	"slices"
	"strings"
	"sync"

	"github.com/shibukawa/ctepipe/tokenizer"
)

// Query is an immutable SQL statement. Its tokens are computed on first use and cached;
// every editing method returns a new Query and leaves the receiver untouched.
type Query struct {
	sql   string
	depth int
	memo  *tokenMemo
}

type tokenMemo struct {
	once   sync.Once
	tokens []tokenizer.Token
	err    error
}

// New creates a Query from SQL text.
func New(sql string) Query {
	return Query{sql: sql, memo: &tokenMemo{}}
}

// SQL returns the statement text.
func (q Query) SQL() string {
	return q.sql
}

// String returns the statement text.
func (q Query) String() string {
	return q.sql
}

// Depth returns how many pipeline stages WithSelect has wrapped so far.
func (q Query) Depth() int {
	return q.depth
}

// Tokens returns the token sequence of the statement.
func (q Query) Tokens() ([]tokenizer.Token, error) {
	tokens, err := q.tokens()
	if err != nil {
		return nil, err
	}

	return slices.Clone(tokens), nil
}

// tokens returns the shared cached slice; callers must not modify it.
func (q Query) tokens() ([]tokenizer.Token, error) {
	if q.memo == nil {
		return tokenizer.Tokenize(q.sql)
	}

	q.memo.once.Do(func() {
		q.memo.tokens, q.memo.err = tokenizer.Tokenize(q.sql)
	})

	return q.memo.tokens, q.memo.err
}

// SelectText returns the trailing statement after the WITH clause, or "" when there is none.
func (q Query) SelectText() (string, error) {
	tokens, err := q.tokens()
	if err != nil {
		return "", err
	}

	if i := lastIndex(tokens, tokenizer.SELECT); i >= 0 {
		return tokens[i].Value, nil
	}

	return "", nil
}

// CTENames returns the CTE names in source order with identifier quotes removed.
func (q Query) CTENames() ([]string, error) {
	tokens, err := q.tokens()
	if err != nil {
		return nil, err
	}

	names := []string{}

	for _, token := range tokens {
		if token.Type == tokenizer.CTE_IDENTIFIER {
			names = append(names, unquoteIdentifier(token.Value))
		}
	}

	return names, nil
}

// Recursive reports whether the WITH clause carries the RECURSIVE keyword.
func (q Query) Recursive() (bool, error) {
	tokens, err := q.tokens()
	if err != nil {
		return false, err
	}

	return hasType(tokens, tokenizer.RECURSIVE), nil
}

func (q Query) hasCTE(name string) (bool, error) {
	names, err := q.CTENames()
	if err != nil {
		return false, err
	}

	return slices.Contains(names, name), nil
}

// QuoteIdentifier double-quotes name, doubling any embedded quote.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func unquoteIdentifier(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return strings.ReplaceAll(value[1:len(value)-1], `""`, `"`)
	}

	return value
}
