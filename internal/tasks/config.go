package tasks

import "time"

// Config holds configuration for the background queue. Attempts, timeouts and
// retention are set per queue by each task's Config method.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 2
	Workers int

	// ReleaseAfter is when a claimed task is released back to the queue. It
	// must exceed the longest queue timeout (2h). Default: 3h
	ReleaseAfter time.Duration

	// CleanupInterval is how often to clean up completed tasks. Default: 1h
	CleanupInterval time.Duration
}

// DefaultConfig returns the queue defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    3 * time.Hour,
		CleanupInterval: 1 * time.Hour,
	}
}
