package cli

import (
	"flag"
	"fmt"
	"os"
)

// WatchCommand follows a job until it completes or fails.
type WatchCommand struct {
	JobID        string
	DatabasePath string
}

func NewWatchCommand() *WatchCommand {
	return &WatchCommand{}
}

func (cmd *WatchCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)

	fs.StringVar(&cmd.JobID, "job", "", "Job id to follow (required)")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the database file (default: DATABASE_PATH)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s watch -job <id> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Print job progress until the job completes or fails.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.JobID == "" {
		return fmt.Errorf("required flag -job not provided")
	}
	return nil
}

func (cmd *WatchCommand) Run() error {
	svc, cleanup, err := openServices(cmd.DatabasePath, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	for u := range svc.Watcher.Watch(ctx, cmd.JobID) {
		if u.Err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", u.Err)
			continue
		}
		fmt.Printf("%s %s: %d%% (%d/%d items, %d errors)\n",
			u.Job.Kind, u.Job.Status, u.Job.Progress, u.Job.CurrentItem, u.Job.TotalItems, u.Job.ErrorCount)
	}

	job, err := svc.Jobs.Get(ctx, cmd.JobID)
	if err != nil {
		return err
	}
	if job.Error != "" {
		return fmt.Errorf("job %s: %s", job.Status, job.Error)
	}
	return nil
}
