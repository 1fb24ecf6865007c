package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/shibukawa/ctepipe/tokenizer"
)

// TokensCmd represents the tokens command
type TokensCmd struct {
	Source string `arg:"" help:"SQL file, query name, or - for stdin"`
	JSON   bool   `name:"json" help:"Print tokens as JSON"`
	Trivia bool   `name:"trivia" help:"Include whitespace and comment tokens"`
}

type tokenJSON struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Offset int    `json:"offset"`
}

// Run executes the tokens command
func (cmd *TokensCmd) Run(ctx *Context) error {
	q, err := loadQuery(ctx, cmd.Source)
	if err != nil {
		return err
	}

	tokens, err := q.Tokens()
	if err != nil {
		return err
	}

	if !cmd.Trivia {
		kept := tokens[:0]
		for _, token := range tokens {
			if !token.Type.IsTrivia() {
				kept = append(kept, token)
			}
		}

		tokens = kept
	}

	if cmd.JSON {
		out := make([]tokenJSON, len(tokens))
		for i, token := range tokens {
			out[i] = tokenJSON{
				Type:   token.Type.String(),
				Value:  token.Value,
				Line:   token.Position.Line,
				Column: token.Position.Column,
				Offset: token.Position.Offset,
			}
		}

		encoder := json.NewEncoder(ctx.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(out)
	}

	for _, token := range tokens {
		kind := tokenColor(token.Type).Sprintf("%-18s", token.Type)
		fmt.Fprintf(ctx.Stdout, "%s %4d:%-3d %q\n", kind, token.Position.Line, token.Position.Column, token.Value)
	}

	return nil
}

func tokenColor(tokenType tokenizer.TokenType) *color.Color {
	switch tokenType {
	case tokenizer.WITH, tokenizer.RECURSIVE, tokenizer.AS, tokenizer.MATERIALIZED, tokenizer.NOT_MATERIALIZED:
		return color.New(color.FgBlue)
	case tokenizer.CTE_IDENTIFIER, tokenizer.CTE_COLUMN:
		return color.New(color.FgGreen)
	case tokenizer.CTE_SELECT, tokenizer.SELECT:
		return color.New(color.FgYellow)
	case tokenizer.WHITESPACE, tokenizer.COMMENT:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgWhite)
	}
}

// CTEsCmd represents the ctes command
type CTEsCmd struct {
	Source string `arg:"" help:"SQL file, query name, or - for stdin"`
}

// Run executes the ctes command
func (cmd *CTEsCmd) Run(ctx *Context) error {
	q, err := loadQuery(ctx, cmd.Source)
	if err != nil {
		return err
	}

	names, err := q.CTENames()
	if err != nil {
		return err
	}

	recursive, err := q.Recursive()
	if err != nil {
		return err
	}

	if len(names) > 0 {
		fmt.Fprintln(ctx.Stdout, strings.Join(names, "\n"))
	}

	if !ctx.Quiet {
		if recursive {
			color.Green("%d CTE(s), recursive", len(names))
		} else {
			color.Green("%d CTE(s)", len(names))
		}
	}

	return nil
}
