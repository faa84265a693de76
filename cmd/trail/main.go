package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/trail/internal/mcp"
	"github.com/hpungsan/trail/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// DataDirEnv overrides the default data directory (~/.trail).
const DataDirEnv = "TRAIL_HOME"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"ingest": true, "watch": true,
	"search": true, "date": true, "range": true, "app": true,
	"apps": true, "dates": true, "stats": true,
	"delete": true, "reindex": true, "clear": true,
	"export": true, "import": true, "report": true,
	"rules": true, "ui": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return cliCommands[arg] || isHelpOrVersion()
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	switch os.Args[1] {
	case "--help", "-h", "--version", "-v", "help":
		return true
	}
	return false
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// dataDir returns $TRAIL_HOME, or ~/.trail.
func dataDir() (string, error) {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".trail"), nil
}

func printBanner() {
	fmt.Println(`
   _            _ _
  | |_ _ __ __ _(_) |
  | __| '__/ _' | | |
  | |_| | | (_| | | |
   \__|_|  \__,_|_|_|

  Searchable memory of your screen activity

  Usage: trail <command> [options]
         trail --help

  MCP server mode requires piped input.`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Help and version need no data directory
	if isHelpOrVersion() {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	dir, err := dataDir()
	if err != nil {
		fail("%v", err)
	}
	rt, err := openEnv(dir)
	if err != nil {
		fail("%v", err)
	}
	defer rt.Close()

	if isCLIMode() {
		if err := newCLIApp(rt).Run(os.Args); err != nil {
			rt.Close()
			fail("%v", err)
		}
		return
	}

	if len(os.Args) >= 2 && isTerminal() {
		rt.Close()
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'trail --help' for usage.\n")
		os.Exit(1)
	}

	rt.log.Info("serving MCP on stdio", "data_dir", dir, "exports", ops.ExportsDir(dir))
	if err := mcp.Run(rt.mcpDeps(), Version); err != nil {
		rt.Close()
		fail("%v", err)
	}
}
