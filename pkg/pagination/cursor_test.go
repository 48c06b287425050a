package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeListing serves pages of ints in fixed-size chunks using "c<offset>" cursors.
type fakeListing struct {
	mu       sync.Mutex
	items    []int
	pageSize int
	failAt   string
	cursors  []string
}

func (f *fakeListing) fetch(ctx context.Context, cursor string) (Page[int], error) {
	f.mu.Lock()
	f.cursors = append(f.cursors, cursor)
	f.mu.Unlock()

	if cursor == f.failAt && f.failAt != "" {
		return Page[int]{}, errors.New("boom")
	}

	offset := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "c%d", &offset); err != nil {
			return Page[int]{}, err
		}
	}

	end := offset + f.pageSize
	if end > len(f.items) {
		end = len(f.items)
	}

	page := Page[int]{Items: f.items[offset:end]}
	if end < len(f.items) {
		page.HasNext = true
		page.NextCursor = fmt.Sprintf("c%d", end)
	}
	return page, nil
}

func (f *fakeListing) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cursors...)
}

func newListing(n, pageSize int) *fakeListing {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return &fakeListing{items: items, pageSize: pageSize}
}

func collect(t *testing.T, cfg Config, listing *fakeListing) ([]Page[int], error) {
	t.Helper()
	var pages []Page[int]
	for page, err := range Pages(context.Background(), listing.fetch, cfg) {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func TestPages_WalksAllPages(t *testing.T) {
	for _, prefetch := range []bool{false, true} {
		t.Run(fmt.Sprintf("prefetch=%v", prefetch), func(t *testing.T) {
			listing := newListing(7, 3)
			pages, err := collect(t, Config{Prefetch: prefetch}, listing)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(pages) != 3 {
				t.Fatalf("got %d pages, want 3", len(pages))
			}

			seen := 0
			for i, page := range pages {
				if page.Number != i+1 {
					t.Errorf("page %d has Number %d", i+1, page.Number)
				}
				for _, item := range page.Items {
					if item != seen {
						t.Errorf("item = %d, want %d", item, seen)
					}
					seen++
				}
			}
			if seen != 7 {
				t.Errorf("saw %d items, want 7", seen)
			}

			want := []string{"", "c3", "c6"}
			got := listing.calls()
			if fmt.Sprint(got) != fmt.Sprint(want) {
				t.Errorf("cursors = %v, want %v", got, want)
			}
		})
	}
}

func TestPages_EmptyListing(t *testing.T) {
	listing := newListing(0, 250)
	pages, err := collect(t, DefaultConfig(), listing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || len(pages[0].Items) != 0 || pages[0].HasNext {
		t.Errorf("expected a single empty final page, got %+v", pages)
	}
}

func TestPages_StopsOnError(t *testing.T) {
	for _, prefetch := range []bool{false, true} {
		t.Run(fmt.Sprintf("prefetch=%v", prefetch), func(t *testing.T) {
			listing := newListing(10, 2)
			listing.failAt = "c4"

			pages, err := collect(t, Config{Prefetch: prefetch}, listing)
			if err == nil {
				t.Fatal("expected error")
			}
			if len(pages) != 2 {
				t.Errorf("got %d pages before error, want 2", len(pages))
			}

			// The failing page is never retried or skipped past
			calls := listing.calls()
			if calls[len(calls)-1] != "c4" {
				t.Errorf("last cursor = %q, want c4", calls[len(calls)-1])
			}
		})
	}
}

func TestPages_MissingCursor(t *testing.T) {
	fetch := func(ctx context.Context, cursor string) (Page[int], error) {
		return Page[int]{Items: []int{1}, HasNext: true}, nil
	}

	var gotErr error
	for _, err := range Pages(context.Background(), fetch, DefaultConfig()) {
		gotErr = err
	}
	if !errors.Is(gotErr, ErrMissingCursor) {
		t.Errorf("err = %v, want ErrMissingCursor", gotErr)
	}
}

func TestPages_RepeatedCursor(t *testing.T) {
	// c1 -> c2 -> c1 cycles forever unless the walk stops it
	next := map[string]string{"": "c1", "c1": "c2", "c2": "c1"}
	fetch := func(ctx context.Context, cursor string) (Page[int], error) {
		return Page[int]{Items: []int{1}, HasNext: true, NextCursor: next[cursor]}, nil
	}

	for _, prefetch := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Prefetch = prefetch

		pages := 0
		var gotErr error
		for page, err := range Pages(context.Background(), fetch, cfg) {
			if err != nil {
				gotErr = err
				break
			}
			pages += len(page.Items)
		}
		if !errors.Is(gotErr, ErrRepeatedCursor) {
			t.Errorf("prefetch=%v: err = %v, want ErrRepeatedCursor", prefetch, gotErr)
		}
		if pages != 2 {
			t.Errorf("prefetch=%v: yielded %d pages before the repeat, want 2", prefetch, pages)
		}
	}
}

func TestPages_Restartable(t *testing.T) {
	listing := newListing(5, 2)
	seq := Pages(context.Background(), listing.fetch, DefaultConfig())

	count := func() int {
		n := 0
		for page, err := range seq {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			n += len(page.Items)
		}
		return n
	}

	if first, second := count(), count(); first != 5 || second != 5 {
		t.Errorf("item counts = %d, %d, want 5, 5", first, second)
	}
}

func TestPages_EarlyBreakStopsPrefetch(t *testing.T) {
	listing := newListing(100, 1)
	for page, err := range Pages(context.Background(), listing.fetch, Config{Prefetch: true}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Number == 2 {
			break
		}
	}

	// Give the producer a moment to observe cancellation
	time.Sleep(20 * time.Millisecond)
	if n := len(listing.calls()); n > 4 {
		t.Errorf("producer kept fetching after break: %d calls", n)
	}
}

func TestPages_PerPageTimeout(t *testing.T) {
	fetch := func(ctx context.Context, cursor string) (Page[int], error) {
		<-ctx.Done()
		return Page[int]{}, ctx.Err()
	}

	var gotErr error
	for _, err := range Pages(context.Background(), fetch, Config{Timeout: 10 * time.Millisecond}) {
		gotErr = err
	}
	if !errors.Is(gotErr, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", gotErr)
	}
}
