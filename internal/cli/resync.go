package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/webinarsync/internal/chunked"
)

// ResyncCommand drives a chunked mass resync from the terminal, starting a
// new job or resuming an existing one.
type ResyncCommand struct {
	OrganizationID string
	UserID         string
	JobID          string
	DatabasePath   string
	Verbose        bool
}

func NewResyncCommand() *ResyncCommand {
	return &ResyncCommand{}
}

func (cmd *ResyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("resync", flag.ContinueOnError)

	fs.StringVar(&cmd.OrganizationID, "org", "", "Organization to resync (required)")
	fs.StringVar(&cmd.UserID, "user", "cli", "User recorded as the job owner")
	fs.StringVar(&cmd.JobID, "job", "", "Resume an existing resync job instead of starting a new one")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the database file (default: DATABASE_PATH)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s resync -org <id> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Resync attendance of every webinar in chunks, checkpointing after each chunk.\n")
		fmt.Fprintf(os.Stderr, "An interrupted resync can be resumed with -job.\n\n")
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

func (cmd *ResyncCommand) Run() error {
	svc, cleanup, err := openServices(cmd.DatabasePath, cmd.Verbose)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	start := chunked.Request{OrganizationID: cmd.OrganizationID, UserID: cmd.UserID, JobID: cmd.JobID}
	if cmd.JobID != "" {
		current, err := svc.Chunks.Progress(ctx, cmd.JobID)
		if err != nil {
			return err
		}
		start.ChunkIndex = current.Progress.CurrentChunk
	}

	svc.Driver.OnProgress(func(resp *chunked.Response) {
		p := resp.Progress
		fmt.Printf("[%3d%%] chunk %d/%d: %d of %d webinars (%d failed) %s\n",
			p.ProgressPercentage, p.CurrentChunk, p.TotalChunks, p.ProcessedWebinars, p.TotalWebinars, p.Failed, p.StageMessage)
	})

	resp, err := svc.Driver.Run(ctx, start)
	if resp != nil && resp.JobID != "" {
		fmt.Printf("Job %s\n", resp.JobID)
	}
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("resync failed: %s", resp.Error)
	}
	return nil
}
