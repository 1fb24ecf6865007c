package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
)

// Context represents the global context for commands
type Context struct {
	Config  string
	Verbose bool
	Quiet   bool

	// Stdin and Stdout carry SQL in and results out; status messages go through fatih/color
	Stdin  io.Reader
	Stdout io.Writer
}

// CLI represents the command-line interface
type CLI struct {
	Config  string     `help:"Configuration file path" default:"ctepipe.yaml"`
	Verbose bool       `help:"Enable verbose output" short:"v"`
	Quiet   bool       `help:"Suppress output" short:"q"`
	Tokens  TokensCmd  `cmd:"" help:"Show the tokens of a query"`
	CTEs    CTEsCmd    `cmd:"" name:"ctes" help:"List the CTE names of a query"`
	Prepend PrependCmd `cmd:"" help:"Insert a CTE before the existing ones"`
	Append  AppendCmd  `cmd:"" help:"Insert a CTE after the existing ones"`
	Replace ReplaceCmd `cmd:"" help:"Replace a CTE definition by name"`
	Pipe    PipeCmd    `cmd:"" help:"Chain selects as pipeline stages"`
	Focus   FocusCmd   `cmd:"" help:"Select from a single CTE"`
	Query   QueryCmd   `cmd:"" help:"Execute a query"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run(ctx *Context) error {
	_, err := fmt.Fprintln(ctx.Stdout, "ctepipe v0.1.0")
	return err
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var cli CLI

	parser, err := kong.New(&cli,
		kong.Name("ctepipe"),
		kong.Description("Inspect and edit the WITH clause of SQL queries"),
		kong.Writers(stdout, os.Stderr),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return kctx.Run(&Context{
		Config:  cli.Config,
		Verbose: cli.Verbose,
		Quiet:   cli.Quiet,
		Stdin:   stdin,
		Stdout:  stdout,
	})
}

func main() {
	err := run(os.Args[1:], os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
