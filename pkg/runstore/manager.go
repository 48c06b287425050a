package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/gold-repricer/pkg/repricer"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound indicates the run is unknown or its summary expired
	ErrNotFound = errors.New("run not found")

	// ErrInvalidEntry indicates the stored summary is corrupted
	ErrInvalidEntry = errors.New("invalid run entry")

	// ErrInvalidRunID indicates a run id that cannot be stored
	ErrInvalidRunID = errors.New("invalid run id")
)

const (
	// DefaultTTL is how long summaries are kept.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultHistory is the number of run ids kept in the recent list.
	DefaultHistory = 50
)

// Manager stores run summaries in Redis.
type Manager struct {
	redis   *redis.Client
	ttl     time.Duration
	history int64
}

// NewManager creates a run store with Redis backend. ttl <= 0 uses DefaultTTL.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis:   redisClient,
		ttl:     ttl,
		history: DefaultHistory,
	}
}

// Save stores summary and marks it as the latest run.
func (m *Manager) Save(ctx context.Context, summary *repricer.RunSummary) error {
	if summary == nil {
		return fmt.Errorf("run summary cannot be nil")
	}
	if !validID(summary.RunID) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, summary.RunID)
	}

	data, err := json.Marshal(summary)
	if err != nil {
		StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal run summary: %w", err)
	}

	_, err = m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, RunKey(summary.RunID), data, m.ttl)
		pipe.Set(ctx, latestKey, summary.RunID, m.ttl)
		pipe.LRem(ctx, recentKey, 0, summary.RunID)
		pipe.LPush(ctx, recentKey, summary.RunID)
		pipe.LTrim(ctx, recentKey, 0, m.history-1)
		pipe.Expire(ctx, recentKey, m.ttl)
		return nil
	})
	if err != nil {
		StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis save: %w", err)
	}

	return nil
}

// Get returns the summary of runID.
// Returns ErrNotFound if the run is unknown or expired.
func (m *Manager) Get(ctx context.Context, runID string) (*repricer.RunSummary, error) {
	if !validID(runID) {
		StoreMisses.Inc()
		return nil, ErrNotFound
	}

	data, err := m.redis.Get(ctx, RunKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			StoreMisses.Inc()
			return nil, ErrNotFound
		}
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var summary repricer.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	StoreHits.Inc()
	return &summary, nil
}

// Latest returns the most recently saved summary.
func (m *Manager) Latest(ctx context.Context) (*repricer.RunSummary, error) {
	runID, err := m.redis.Get(ctx, latestKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			StoreMisses.Inc()
			return nil, ErrNotFound
		}
		StoreErrors.WithLabelValues("latest").Inc()
		return nil, fmt.Errorf("redis get latest: %w", err)
	}
	return m.Get(ctx, runID)
}

// Recent returns up to limit summaries, newest first. Expired runs are skipped.
func (m *Manager) Recent(ctx context.Context, limit int) ([]*repricer.RunSummary, error) {
	if limit <= 0 || int64(limit) > m.history {
		limit = int(m.history)
	}

	ids, err := m.redis.LRange(ctx, recentKey, 0, int64(limit)-1).Result()
	if err != nil {
		StoreErrors.WithLabelValues("recent").Inc()
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	summaries := make([]*repricer.RunSummary, 0, len(ids))
	for _, id := range ids {
		summary, err := m.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
