package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/recovery"
)

// RecoverCommand runs an attendee or registration recovery in the foreground.
type RecoverCommand struct {
	OrganizationID string
	UserID         string
	Kind           entities.JobKind
	WebinarIDs     []uint
	DatabasePath   string
	Verbose        bool
}

func NewRecoverCommand() *RecoverCommand {
	return &RecoverCommand{}
}

func (cmd *RecoverCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)

	var kind, webinars string
	fs.StringVar(&cmd.OrganizationID, "org", "", "Organization to recover (required)")
	fs.StringVar(&cmd.UserID, "user", "cli", "User recorded as the job owner")
	fs.StringVar(&kind, "kind", "attendees", "What to recover: attendees or registrations")
	fs.StringVar(&webinars, "webinars", "", "Comma separated webinar ids to restrict the run to (e.g. failures of a previous run)")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the database file (default: DATABASE_PATH)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s recover -org <id> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Recover missing attendee or registration records from the webinar platform.\n")
		fmt.Fprintf(os.Stderr, "Webinars with no stored records are processed first.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s recover -org acme\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s recover -org acme -kind registrations -webinars 12,15\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.OrganizationID == "" {
		return fmt.Errorf("required flag -org not provided")
	}
	switch kind {
	case "attendees":
		cmd.Kind = entities.JobKindAttendeeRecovery
	case "registrations":
		cmd.Kind = entities.JobKindRegistrationRecovery
	default:
		return fmt.Errorf("invalid -kind %q: use attendees or registrations", kind)
	}

	ids, err := parseIDs(webinars)
	if err != nil {
		return err
	}
	cmd.WebinarIDs = ids
	return nil
}

func (cmd *RecoverCommand) Run() error {
	svc, cleanup, err := openServices(cmd.DatabasePath, cmd.Verbose)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("Recovering %s for %s\n", cmd.Kind, cmd.OrganizationID)
	out, runErr := svc.Orchestrator.Run(ctx, recovery.RunRequest{
		OrganizationID: cmd.OrganizationID,
		UserID:         cmd.UserID,
		Kind:           cmd.Kind,
		OnlyWebinarIDs: cmd.WebinarIDs,
	})
	if out != nil {
		printRunOutput(out)
	}
	return runErr
}

func printRunOutput(out *recovery.RunOutput) {
	fmt.Printf("\nJob %s\n", out.JobID)
	for _, r := range out.Results {
		fmt.Printf("  %s\n", r.LogLine())
	}
	fmt.Printf("\n%s\n", out.Message)
	fmt.Printf("Data recovery rate: %d%%\n", out.Summary.DataRecoveryRate())
	for _, rec := range out.Diagnostics.Recommendations {
		fmt.Printf("  - %s\n", rec)
	}
	if len(out.Diagnostics.RetryWebinarIDs) > 0 {
		fmt.Printf("Retry failures with -webinars %s\n", joinIDs(out.Diagnostics.RetryWebinarIDs))
	}
}

func joinIDs(ids []uint) string {
	return strings.Join(lo.Map(ids, func(id uint, _ int) string {
		return strconv.FormatUint(uint64(id), 10)
	}), ",")
}
