package pagination

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrMissingCursor is returned when a page claims more data but carries no cursor.
var ErrMissingCursor = errors.New("page has next but no end cursor")

// ErrRepeatedCursor is returned when a page points back to a cursor the walk
// has already visited, which would otherwise loop forever.
var ErrRepeatedCursor = errors.New("page repeats an earlier cursor")

// Config holds page walk configuration
type Config struct {
	// Timeout per page fetch (0 disables the per-page deadline)
	Timeout time.Duration
	// Prefetch fetches page N+1 while the caller is still processing page N
	Prefetch bool
}

// DefaultConfig returns a sequential walk with a per-page timeout
func DefaultConfig() Config {
	return Config{
		Timeout:  30 * time.Second,
		Prefetch: false,
	}
}

// Page is one page of a cursor-paginated listing.
type Page[T any] struct {
	// Number is the 1-based position of the page within the walk
	Number     int
	Items      []T
	NextCursor string
	HasNext    bool
}

// FetchFunc fetches the page starting after cursor. An empty cursor means the first page.
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

type pageResult[T any] struct {
	page Page[T]
	err  error
}

// Pages returns a lazy sequence of pages produced by fetch.
// Each range over the sequence restarts from the first page.
func Pages[T any](ctx context.Context, fetch FetchFunc[T], cfg Config) iter.Seq2[Page[T], error] {
	if cfg.Prefetch {
		return prefetchPages(ctx, fetch, cfg)
	}

	return func(yield func(Page[T], error) bool) {
		cursor := ""
		seen := make(map[string]struct{})
		for pageNum := 1; ; pageNum++ {
			page, err := fetchOne(ctx, fetch, cfg, cursor, pageNum, seen)
			if err != nil {
				yield(Page[T]{Number: pageNum}, err)
				return
			}
			if !yield(page, nil) || !page.HasNext {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// prefetchPages runs the page walk in a producer goroutine one page ahead of the consumer.
func prefetchPages[T any](ctx context.Context, fetch FetchFunc[T], cfg Config) iter.Seq2[Page[T], error] {
	return func(yield func(Page[T], error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		results := make(chan pageResult[T], 1)
		go func() {
			defer close(results)
			cursor := ""
			seen := make(map[string]struct{})
			for pageNum := 1; ; pageNum++ {
				page, err := fetchOne(ctx, fetch, cfg, cursor, pageNum, seen)
				if err != nil {
					page = Page[T]{Number: pageNum}
				}

				select {
				case results <- pageResult[T]{page: page, err: err}:
				case <-ctx.Done():
					log.Debug().
						Int("page", pageNum).
						Msg("Prefetch stopping (consumer done)")
					return
				}

				if err != nil || !page.HasNext {
					return
				}
				cursor = page.NextCursor
			}
		}()

		for result := range results {
			if !yield(result.page, result.err) || result.err != nil {
				return
			}
		}
	}
}

// fetchOne fetches one page and records its next cursor in seen.
func fetchOne[T any](ctx context.Context, fetch FetchFunc[T], cfg Config, cursor string, pageNum int, seen map[string]struct{}) (Page[T], error) {
	if err := ctx.Err(); err != nil {
		return Page[T]{}, fmt.Errorf("page %d: %w", pageNum, err)
	}

	pageCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		pageCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	page, err := fetch(pageCtx, cursor)
	if err != nil {
		return Page[T]{}, fmt.Errorf("page %d: %w", pageNum, err)
	}
	if page.HasNext && page.NextCursor == "" {
		return Page[T]{}, fmt.Errorf("page %d: %w", pageNum, ErrMissingCursor)
	}
	if page.HasNext {
		if _, ok := seen[page.NextCursor]; ok {
			return Page[T]{}, fmt.Errorf("page %d: %w %q", pageNum, ErrRepeatedCursor, page.NextCursor)
		}
		seen[page.NextCursor] = struct{}{}
	}
	page.Number = pageNum

	log.Debug().
		Int("page", pageNum).
		Int("items", len(page.Items)).
		Bool("has_next", page.HasNext).
		Dur("duration", time.Since(start)).
		Msg("Page fetched")

	return page, nil
}
