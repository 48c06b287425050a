package main

import (
	"context"
	"slices"
	"sync"

	"github.com/Sternrassler/gold-repricer/pkg/repricer"
	"github.com/Sternrassler/gold-repricer/pkg/runstore"
)

// runStore is the part of runstore.Manager the server uses.
type runStore interface {
	Save(ctx context.Context, summary *repricer.RunSummary) error
	Get(ctx context.Context, runID string) (*repricer.RunSummary, error)
	Latest(ctx context.Context) (*repricer.RunSummary, error)
	Recent(ctx context.Context, limit int) ([]*repricer.RunSummary, error)
}

// memoryRuns keeps run summaries for the lifetime of the process when no
// Redis is configured.
type memoryRuns struct {
	mu     sync.RWMutex
	runs   map[string]*repricer.RunSummary
	order  []string // newest first, capped at runstore.DefaultHistory
	latest string
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{runs: make(map[string]*repricer.RunSummary)}
}

func (m *memoryRuns) Save(_ context.Context, summary *repricer.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *summary
	m.runs[summary.RunID] = &stored
	m.latest = summary.RunID

	m.order = slices.DeleteFunc(m.order, func(id string) bool { return id == summary.RunID })
	m.order = slices.Insert(m.order, 0, summary.RunID)
	if len(m.order) > runstore.DefaultHistory {
		for _, id := range m.order[runstore.DefaultHistory:] {
			delete(m.runs, id)
		}
		m.order = m.order[:runstore.DefaultHistory]
	}
	return nil
}

func (m *memoryRuns) Get(_ context.Context, runID string) (*repricer.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary, ok := m.runs[runID]
	if !ok {
		return nil, runstore.ErrNotFound
	}
	out := *summary
	return &out, nil
}

func (m *memoryRuns) Latest(ctx context.Context) (*repricer.RunSummary, error) {
	m.mu.RLock()
	latest := m.latest
	m.mu.RUnlock()
	if latest == "" {
		return nil, runstore.ErrNotFound
	}
	return m.Get(ctx, latest)
}

func (m *memoryRuns) Recent(_ context.Context, limit int) ([]*repricer.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.order) {
		limit = len(m.order)
	}
	summaries := make([]*repricer.RunSummary, 0, limit)
	for _, id := range m.order[:limit] {
		out := *m.runs[id]
		summaries = append(summaries, &out)
	}
	return summaries, nil
}
