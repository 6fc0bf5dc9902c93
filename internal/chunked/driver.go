package chunked

import (
	"context"
	"log"
	"time"

	"github.com/mrlokans/webinarsync/internal/pagination"
)

const (
	DefaultMinInterval = 2 * time.Second
	// MinimumInterval is the shortest pause allowed between chunk calls.
	MinimumInterval = time.Second
)

// ChunkProcessor is what a Driver calls for each chunk.
type ChunkProcessor interface {
	ProcessChunk(ctx context.Context, req Request) (*Response, error)
}

// Driver requests chunks one after another until the job completes, pausing
// between calls. It is the loop a client would otherwise run.
type Driver struct {
	processor  ChunkProcessor
	interval   time.Duration
	onProgress func(*Response)
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewDriver(processor ChunkProcessor, interval time.Duration) *Driver {
	if interval == 0 {
		interval = DefaultMinInterval
	}
	if interval < MinimumInterval {
		interval = MinimumInterval
	}
	return &Driver{processor: processor, interval: interval, sleep: pagination.Sleep}
}

// OnProgress registers a callback invoked after every chunk.
func (d *Driver) OnProgress(fn func(*Response)) {
	d.onProgress = fn
}

// Interval returns the enforced pause between chunk calls.
func (d *Driver) Interval() time.Duration {
	return d.interval
}

// Run drives the job described by start to completion. Cancelling ctx stops
// the loop before the next chunk; the job keeps its checkpoint.
func (d *Driver) Run(ctx context.Context, start Request) (*Response, error) {
	req := start
	var last *Response
	for {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		resp, err := d.processor.ProcessChunk(ctx, req)
		if err != nil {
			return resp, err
		}
		last = resp
		if d.onProgress != nil {
			d.onProgress(resp)
		}
		if resp.Completed || !resp.Success {
			return resp, nil
		}

		log.Printf("Resync: job %s at %d%% (chunk %d of %d)", resp.JobID,
			resp.Progress.ProgressPercentage, resp.Progress.CurrentChunk, resp.Progress.TotalChunks)
		req.JobID = resp.JobID
		req.ChunkIndex = resp.Progress.CurrentChunk

		if err := d.sleep(ctx, d.interval); err != nil {
			return last, err
		}
	}
}
