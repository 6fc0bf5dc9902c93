package cli

import (
	"flag"
	"fmt"
	"os"
)

// SweepCommand resets jobs left running by a runner that died.
type SweepCommand struct {
	OrganizationID string
	DatabasePath   string
}

func NewSweepCommand() *SweepCommand {
	return &SweepCommand{}
}

func (cmd *SweepCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)

	fs.StringVar(&cmd.OrganizationID, "org", "", "Only sweep jobs of this organization (default: all)")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the database file (default: DATABASE_PATH)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sweep [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Reset jobs that have been running longer than SWEEP_STUCK_THRESHOLD back to pending.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *SweepCommand) Run() error {
	svc, cleanup, err := openServices(cmd.DatabasePath, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := svc.Orchestrator.Sweeper().Sweep(ctx, cmd.OrganizationID)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d stuck jobs, reset %d", report.Found, len(report.Reset))
	if report.Conflicts > 0 {
		fmt.Printf(", %d changed concurrently", report.Conflicts)
	}
	fmt.Println()
	for _, id := range report.Reset {
		fmt.Printf("  %s\n", id)
	}
	return nil
}
