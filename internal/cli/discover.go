package cli

import (
	"flag"
	"fmt"
	"os"
)

// DiscoverCommand imports the organization's webinar list from the platform.
type DiscoverCommand struct {
	OrganizationID string
	DatabasePath   string
	Verbose        bool
}

func NewDiscoverCommand() *DiscoverCommand {
	return &DiscoverCommand{}
}

func (cmd *DiscoverCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)

	fs.StringVar(&cmd.OrganizationID, "org", "", "Organization whose webinars to import (required)")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the database file (default: DATABASE_PATH)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s discover -org <id> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import the webinar list of an organization so its records can be recovered.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.OrganizationID == "" {
		return fmt.Errorf("required flag -org not provided")
	}
	return nil
}

func (cmd *DiscoverCommand) Run() error {
	svc, cleanup, err := openServices(cmd.DatabasePath, cmd.Verbose)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	out, err := svc.Discoverer.Discover(ctx, cmd.OrganizationID)
	if err != nil {
		return err
	}
	fmt.Printf("Discovered %d webinars (%d stored, %d pages)\n", out.Found, out.Stored, out.Pages)
	if out.Truncated {
		fmt.Println("Warning: the webinar list was longer than the page limit; run discover again to continue.")
	}
	return nil
}
