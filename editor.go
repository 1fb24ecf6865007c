package ctepipe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shibukawa/ctepipe/tokenizer"
)

// Placeholder marks the previous pipeline stage in the select passed to WithSelect.
const Placeholder = ":_"

// StageName returns the CTE name WithSelect uses at the given pipeline depth: "_", "_1", "_2", ...
func StageName(depth int) string {
	if depth == 0 {
		return "_"
	}

	return "_" + strconv.Itoa(depth)
}

// PrependCTE inserts fragment in front of the existing CTEs, creating a WITH clause if needed.
// A leading RECURSIVE in fragment is rejected when the query is already recursive.
func (q Query) PrependCTE(fragment string) (Query, error) {
	tokens, err := q.tokens()
	if err != nil {
		return Query{}, err
	}

	recursive := hasType(tokens, tokenizer.RECURSIVE)

	cte, err := tokenizer.TokenizeCTE(fragment, tokenizer.CTEOptions{AllowRecursive: !recursive})
	if err != nil {
		return Query{}, err
	}

	cte = trimTrivia(cte)

	first := index(tokens, tokenizer.CTE_IDENTIFIER)
	if first < 0 {
		return q.derive(createWith(tokens, cte), q.depth), nil
	}

	out := make([]tokenizer.Token, 0, len(tokens)+len(cte)+1)
	out = append(out, tokens[:first]...)
	out = append(out, cte...)
	out = append(out, separator(tokens))
	out = append(out, tokens[first:]...)

	return q.derive(out, q.depth), nil
}

// AppendCTE inserts fragment after the last existing CTE, creating a WITH clause if needed.
// A RECURSIVE keyword in fragment moves onto the query's WITH.
func (q Query) AppendCTE(fragment string) (Query, error) {
	tokens, err := q.tokens()
	if err != nil {
		return Query{}, err
	}

	cte, err := tokenizer.TokenizeCTE(fragment)
	if err != nil {
		return Query{}, err
	}

	return q.derive(appendCTE(tokens, trimTrivia(cte)), q.depth), nil
}

// ReplaceCTE swaps the definition of the CTE named by fragment for fragment itself.
// It fails with ErrNoSuchCTE when the query has no CTE of that name.
func (q Query) ReplaceCTE(fragment string) (Query, error) {
	tokens, err := q.tokens()
	if err != nil {
		return Query{}, err
	}

	cte, err := tokenizer.TokenizeCTE(fragment)
	if err != nil {
		return Query{}, err
	}

	cte = trimTrivia(cte)
	name := unquoteIdentifier(cte[index(cte, tokenizer.CTE_IDENTIFIER)].Value)

	target := -1

	for i, token := range tokens {
		if token.Type == tokenizer.CTE_IDENTIFIER && unquoteIdentifier(token.Value) == name {
			target = i
			break
		}
	}

	if target < 0 {
		return Query{}, fmt.Errorf("%w: %s", ErrNoSuchCTE, name)
	}

	end := target + index(tokens[target:], tokenizer.CTE_SELECT)
	cte, hoist := dropRecursive(cte)

	out := make([]tokenizer.Token, 0, len(tokens)+len(cte))
	out = append(out, tokens[:target]...)
	out = append(out, cte...)
	out = append(out, tokens[end+1:]...)

	if hoist {
		out = hoistRecursive(out)
	}

	return q.derive(out, q.depth), nil
}

// WithSelect moves the current select into a new pipeline-stage CTE and makes selectText the
// trailing select. Placeholder in selectText refers to the new stage.
func (q Query) WithSelect(selectText string) (Query, error) {
	tokens, err := q.tokens()
	if err != nil {
		return Query{}, err
	}

	current := lastIndex(tokens, tokenizer.SELECT)
	if current < 0 {
		if _, n := tokenizer.ReplacePlaceholder(selectText, Placeholder, ""); n > 0 {
			return Query{}, ErrNoPipelineStage
		}

		return q.derive(installSelect(tokens, selectText), q.depth), nil
	}

	name := StageName(q.depth)
	body := tokenizer.TrimTerminator(tokens[current].Value)

	cte, err := tokenizer.TokenizeCTE(name + " AS (\n" + tokenizer.Indent(body, "  ") + "\n)")
	if err != nil {
		return Query{}, err
	}

	out := appendCTE(tokens, trimTrivia(cte))
	replaced, _ := tokenizer.ReplacePlaceholder(selectText, Placeholder, name)

	last := lastIndex(out, tokenizer.SELECT)
	out[last].Value = replaced

	return q.derive(out, q.depth+1), nil
}

// CTE makes the named CTE the subject of a new pipeline stage.
func (q Query) CTE(name string) (Query, error) {
	ok, err := q.hasCTE(name)
	if err != nil {
		return Query{}, err
	}

	if !ok {
		return Query{}, fmt.Errorf("%w: %s", ErrNoSuchCTE, name)
	}

	return q.WithSelect("SELECT * FROM " + QuoteIdentifier(name))
}

func (q Query) derive(tokens []tokenizer.Token, depth int) Query {
	next := New(tokenizer.Join(tokens))
	next.depth = depth

	return next
}

// appendCTE splices cte after the last CTE body; the result never aliases tokens.
func appendCTE(tokens, cte []tokenizer.Token) []tokenizer.Token {
	last := lastIndex(tokens, tokenizer.CTE_SELECT)
	if last < 0 {
		return createWith(tokens, cte)
	}

	cte, hoist := dropRecursive(cte)

	out := make([]tokenizer.Token, 0, len(tokens)+len(cte)+3)
	out = append(out, tokens[:last+1]...)
	out = append(out, separator(tokens))
	out = append(out, cte...)
	out = append(out, tokens[last+1:]...)

	if hoist {
		out = hoistRecursive(out)
	}

	return out
}

// createWith opens a new WITH clause holding cte in front of tokens.
func createWith(tokens, cte []tokenizer.Token) []tokenizer.Token {
	out := make([]tokenizer.Token, 0, len(tokens)+len(cte)+3)
	out = append(out,
		tokenizer.Token{Type: tokenizer.WITH, Value: "WITH"},
		tokenizer.Token{Type: tokenizer.WHITESPACE, Value: " "},
	)
	out = append(out, cte...)
	out = append(out, tokenizer.Token{Type: tokenizer.WHITESPACE, Value: "\n"})

	return append(out, tokens...)
}

func installSelect(tokens []tokenizer.Token, selectText string) []tokenizer.Token {
	out := make([]tokenizer.Token, 0, len(tokens)+2)
	out = append(out, tokens...)

	if len(out) > 0 && !strings.HasSuffix(out[len(out)-1].Value, "\n") {
		out = append(out, tokenizer.Token{Type: tokenizer.WHITESPACE, Value: "\n"})
	}

	return append(out, tokenizer.Token{Type: tokenizer.SELECT, Value: selectText})
}

// separator builds the comma between CTEs, keeping the indentation of the first definition.
func separator(tokens []tokenizer.Token) tokenizer.Token {
	value := ",\n"

	if first := index(tokens, tokenizer.CTE_IDENTIFIER); first > 0 {
		prev := tokens[first-1]
		if prev.Type == tokenizer.WHITESPACE {
			if nl := strings.LastIndexByte(prev.Value, '\n'); nl >= 0 {
				value += prev.Value[nl+1:]
			}
		}
	}

	return tokenizer.Token{Type: tokenizer.CTE_COMMA, Value: value}
}

// dropRecursive strips a leading RECURSIVE and its trivia and reports whether it was there.
func dropRecursive(cte []tokenizer.Token) ([]tokenizer.Token, bool) {
	if len(cte) == 0 || cte[0].Type != tokenizer.RECURSIVE {
		return cte, false
	}

	return trimTrivia(cte[1:]), true
}

// hoistRecursive adds RECURSIVE right after WITH unless it is already there.
func hoistRecursive(tokens []tokenizer.Token) []tokenizer.Token {
	if hasType(tokens, tokenizer.RECURSIVE) {
		return tokens
	}

	with := index(tokens, tokenizer.WITH)

	out := make([]tokenizer.Token, 0, len(tokens)+2)
	out = append(out, tokens[:with+1]...)
	out = append(out,
		tokenizer.Token{Type: tokenizer.WHITESPACE, Value: " "},
		tokenizer.Token{Type: tokenizer.RECURSIVE, Value: "RECURSIVE"},
	)

	return append(out, tokens[with+1:]...)
}

func trimTrivia(tokens []tokenizer.Token) []tokenizer.Token {
	start, end := 0, len(tokens)
	for start < end && tokens[start].Type.IsTrivia() {
		start++
	}

	for end > start && tokens[end-1].Type.IsTrivia() {
		end--
	}

	return tokens[start:end]
}

func index(tokens []tokenizer.Token, tokenType tokenizer.TokenType) int {
	for i, token := range tokens {
		if token.Type == tokenType {
			return i
		}
	}

	return -1
}

func lastIndex(tokens []tokenizer.Token, tokenType tokenizer.TokenType) int {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].Type == tokenType {
			return i
		}
	}

	return -1
}

func hasType(tokens []tokenizer.Token, tokenType tokenizer.TokenType) bool {
	return index(tokens, tokenType) >= 0
}
