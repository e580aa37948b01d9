package main

import (
	"flag"
	"fmt"
	"os"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ConfigDir string
	GameID    string
	HomeID    string
	AwayID    string
	Preset    string
	Markdown  bool
	Serve     bool
	ServeMCP  bool
	Version   bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("foresight", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigDir, "config-dir", ".", "directory holding foresight.yml and .env")
	fs.StringVar(&flags.GameID, "game", "", "game id to forecast")
	fs.StringVar(&flags.HomeID, "home", "", "home team id")
	fs.StringVar(&flags.AwayID, "away", "", "away team id")
	fs.StringVar(&flags.Preset, "preset", "", "pipeline preset name")
	fs.BoolVar(&flags.Markdown, "markdown", false, "print the report as markdown instead of JSON")
	fs.BoolVar(&flags.Serve, "serve", false, "run the HTTP API server")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server on stdio")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	app, err := newApp(flags)
	if err != nil {
		return err
	}
	defer app.Close()

	switch {
	case flags.ServeMCP:
		return app.serveMCP()
	case flags.Serve:
		return app.serveHTTP()
	default:
		if flags.GameID == "" || flags.HomeID == "" || flags.AwayID == "" {
			return fmt.Errorf("-game, -home and -away are required (or use -serve / -serve-mcp)")
		}
		return app.runOnce(flags)
	}
}
