package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/webinarsync/internal/cli"
	"github.com/mrlokans/webinarsync/internal/config"
	"github.com/mrlokans/webinarsync/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// command is a CLI subcommand.
type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "recover":
		cmd = cli.NewRecoverCommand()
	case "discover":
		cmd = cli.NewDiscoverCommand()
	case "resync":
		cmd = cli.NewResyncCommand()
	case "sweep":
		cmd = cli.NewSweepCommand()
	case "watch":
		cmd = cli.NewWatchCommand()
	case "version":
		fmt.Printf("webinarsync %s (%s)\n", Version, Commit)
		return
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the HTTP server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  discover  Import an organization's webinar list from the platform\n")
	fmt.Fprintf(os.Stderr, "  recover   Recover missing attendee or registration records\n")
	fmt.Fprintf(os.Stderr, "  resync    Run or resume a chunked mass resync\n")
	fmt.Fprintf(os.Stderr, "  sweep     Reset jobs stuck in running\n")
	fmt.Fprintf(os.Stderr, "  watch     Follow a job until it finishes\n")
	fmt.Fprintf(os.Stderr, "  version   Print version information\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
