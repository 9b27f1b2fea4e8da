package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/aireach/internal/config"
	"github.com/hpungsan/aireach/internal/db"
	"github.com/hpungsan/aireach/internal/gemini"
	"github.com/hpungsan/aireach/internal/history"
	"github.com/hpungsan/aireach/internal/logging"
	"github.com/hpungsan/aireach/internal/mcp"
	"github.com/hpungsan/aireach/internal/pipeline"
	"github.com/hpungsan/aireach/internal/secrets"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"ocr": true, "identify": true, "analyze": true,
	"recommend": true, "shelf": true, "history": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
         _                     _
   __ _ (_)_ __ ___  __ _  ___| |__
  / _' || | '__/ _ \/ _' |/ __| '_ \
 | (_| || | | |  __/ (_| | (__| | | |
  \__,_||_|_|  \___|\__,_|\___|_| |_|

  Identify, analyze and recommend literary works

  Usage: aireach <command> [options]
         aireach --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".aireach")

	wd, err := os.Getwd()
	if err != nil {
		wd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, wd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logging.Warn().Strs("tools", unknown).Msg("unknown tools in disabled_tools")
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	store := history.New(database, history.Options{})
	client := gemini.New(secrets.NewFileProvider(baseDir), gemini.ConfigFrom(cfg))

	deps := &mcp.Deps{
		Orchestrator: pipeline.New(client, store),
		Store:        store,
		Config:       cfg,
		BaseDir:      baseDir,
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(deps)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'aireach --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	logging.Info().Str("version", Version).Str("model", cfg.Model).Msg("starting MCP server")
	if err := mcp.Run(*deps, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		database.Close()
		os.Exit(1)
	}
}
