package main

import (
	"github.com/fatih/color"
	"github.com/shibukawa/ctepipe"
)

// EditFlags are shared by the commands that rewrite a query
type EditFlags struct {
	Source string `arg:"" help:"SQL file, query name, or - for stdin"`
	Output string `short:"o" name:"output" help:"Output file (defaults to stdout)" type:"path"`
}

// PrependCmd represents the prepend command
type PrependCmd struct {
	EditFlags `embed:""`

	Fragment string `arg:"" help:"CTE definitions without WITH, e.g. 'foo AS (SELECT 1)'"`
}

// Run executes the prepend command
func (cmd *PrependCmd) Run(ctx *Context) error {
	return edit(ctx, cmd.EditFlags, func(q ctepipe.Query) (ctepipe.Query, error) {
		return q.PrependCTE(cmd.Fragment)
	})
}

// AppendCmd represents the append command
type AppendCmd struct {
	EditFlags `embed:""`

	Fragment string `arg:"" help:"CTE definitions without WITH, e.g. 'foo AS (SELECT 1)'"`
}

// Run executes the append command
func (cmd *AppendCmd) Run(ctx *Context) error {
	return edit(ctx, cmd.EditFlags, func(q ctepipe.Query) (ctepipe.Query, error) {
		return q.AppendCTE(cmd.Fragment)
	})
}

// ReplaceCmd represents the replace command
type ReplaceCmd struct {
	EditFlags `embed:""`

	Fragment string `arg:"" help:"New definition; its name selects the CTE to replace"`
}

// Run executes the replace command
func (cmd *ReplaceCmd) Run(ctx *Context) error {
	return edit(ctx, cmd.EditFlags, func(q ctepipe.Query) (ctepipe.Query, error) {
		return q.ReplaceCTE(cmd.Fragment)
	})
}

// PipeCmd represents the pipe command
type PipeCmd struct {
	EditFlags `embed:""`

	Selects []string `arg:"" help:"Selects applied in order; :_ refers to the previous stage"`
}

// Run executes the pipe command
func (cmd *PipeCmd) Run(ctx *Context) error {
	return edit(ctx, cmd.EditFlags, func(q ctepipe.Query) (ctepipe.Query, error) {
		for _, selectText := range cmd.Selects {
			var err error

			q, err = q.WithSelect(selectText)
			if err != nil {
				return ctepipe.Query{}, err
			}

			if ctx.Verbose && q.Depth() > 0 {
				color.Blue("Added pipeline stage %s", ctepipe.StageName(q.Depth()-1))
			}
		}

		return q, nil
	})
}

// FocusCmd represents the focus command
type FocusCmd struct {
	EditFlags `embed:""`

	Name string `arg:"" help:"CTE to select from"`
}

// Run executes the focus command
func (cmd *FocusCmd) Run(ctx *Context) error {
	return edit(ctx, cmd.EditFlags, func(q ctepipe.Query) (ctepipe.Query, error) {
		return q.CTE(cmd.Name)
	})
}

func edit(ctx *Context, flags EditFlags, apply func(ctepipe.Query) (ctepipe.Query, error)) error {
	q, err := loadQuery(ctx, flags.Source)
	if err != nil {
		return err
	}

	result, err := apply(q)
	if err != nil {
		return err
	}

	return writeQuery(ctx, result, flags.Output)
}
