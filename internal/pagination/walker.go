// Package pagination walks cursor-paginated upstream resources.
//
// A walk stops when the server returns no continuation token or when the page
// ceiling is reached. Hitting the ceiling does not drop data silently: the
// result carries the outstanding token and Truncated is set so the caller can
// resume the walk from where it stopped.
package pagination

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultPageSize = 300
	DefaultMaxPages = 10
	DefaultDelay    = 100 * time.Millisecond
)

// Page is what a single fetch returns.
type Page[T any] struct {
	Records   []T
	NextToken string
}

// FetchFunc fetches the page identified by token using the given page size.
type FetchFunc[T any] func(ctx context.Context, pageSize int, token string) (Page[T], error)

// Result is the accumulated outcome of a walk.
type Result[T any] struct {
	Records   []T
	Pages     int
	NextToken string
	Truncated bool
}

// Walker holds the walk limits. The zero value is usable and picks defaults.
type Walker struct {
	PageSize int
	MaxPages int
	// Delay is the pause between page requests. It keeps a walk under the
	// upstream rate limit and is never zero: non-positive values use DefaultDelay.
	Delay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a walker with explicit limits.
func New(pageSize, maxPages int, delay time.Duration) *Walker {
	return &Walker{PageSize: pageSize, MaxPages: maxPages, Delay: delay}
}

func (w *Walker) pageSize() int {
	if w == nil || w.PageSize <= 0 {
		return DefaultPageSize
	}
	return w.PageSize
}

func (w *Walker) maxPages() int {
	if w == nil || w.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return w.MaxPages
}

func (w *Walker) delay() time.Duration {
	if w == nil || w.Delay <= 0 {
		return DefaultDelay
	}
	return w.Delay
}

func (w *Walker) pause(ctx context.Context) error {
	if w != nil && w.sleep != nil {
		return w.sleep(ctx, w.delay())
	}
	return Sleep(ctx, w.delay())
}

// Walk fetches pages starting at startToken until exhaustion or the page ceiling.
// Any fetch error aborts the walk; records gathered so far are returned with it.
func Walk[T any](ctx context.Context, w *Walker, startToken string, fetch FetchFunc[T]) (Result[T], error) {
	var result Result[T]
	token := startToken

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := fetch(ctx, w.pageSize(), token)
		if err != nil {
			return result, fmt.Errorf("fetch page %d: %w", result.Pages+1, err)
		}

		result.Pages++
		result.Records = append(result.Records, page.Records...)
		token = page.NextToken

		if token == "" {
			return result, nil
		}
		if result.Pages >= w.maxPages() {
			result.NextToken = token
			result.Truncated = true
			return result, nil
		}

		if err := w.pause(ctx); err != nil {
			return result, err
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
