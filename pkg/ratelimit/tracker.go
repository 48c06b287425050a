package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	throttleAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopify_throttle_available_points",
		Help: "Query cost points available in the Admin API bucket at the last response",
	})

	throttleWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopify_throttle_waits_total",
		Help: "Total number of requests delayed to let the cost bucket refill",
	})

	throttleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopify_throttle_wait_seconds",
		Help:    "Time spent waiting for the cost bucket to refill",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
	})
)

// MaxWait caps a single throttle wait.
const MaxWait = 30 * time.Second

// Tracker monitors the Admin API cost bucket and delays requests that would exceed it.
// Redis is optional; without it the state is kept in process.
type Tracker struct {
	redis  *redis.Client
	key    string
	logger zerolog.Logger

	mu    sync.Mutex
	local *ThrottleState
}

// NewTracker creates a new throttle tracker for shop.
func NewTracker(redisClient *redis.Client, shop string, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		key:    RedisKeyPrefix + shop,
		logger: logger,
	}
}

// GetState returns the last observed bucket state, or nil when none is known yet.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		// matches the Redis TTL: an old observation says nothing about the bucket
		if t.local == nil || t.local.IsStale(StateTTL) {
			return nil, nil
		}
		state := *t.local
		return &state, nil
	}

	data, err := t.redis.Get(ctx, t.key).Bytes()
	if errors.Is(err, redis.Nil) {
		t.logger.Debug().Msg("No throttle state in Redis")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get throttle state: %w", err)
	}

	var state ThrottleState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse throttle state: %w", err)
	}
	return &state, nil
}

// UpdateFromCost records the bucket state reported with a response.
// A zero throttle status (no extensions in the response) is ignored.
func (t *Tracker) UpdateFromCost(ctx context.Context, cost Cost) error {
	status := cost.ThrottleStatus
	if status.MaximumAvailable <= 0 {
		return nil
	}

	state := &ThrottleState{
		MaximumAvailable:   status.MaximumAvailable,
		CurrentlyAvailable: status.CurrentlyAvailable,
		RestoreRate:        status.RestoreRate,
		LastUpdate:         time.Now(),
	}
	state.UpdateHealth()

	throttleAvailable.Set(state.CurrentlyAvailable)

	if t.redis == nil {
		t.mu.Lock()
		t.local = state
		t.mu.Unlock()
	} else {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshal throttle state: %w", err)
		}
		if err := t.redis.Set(ctx, t.key, data, StateTTL).Err(); err != nil {
			return fmt.Errorf("store throttle state in redis: %w", err)
		}
	}

	event := t.logger.Debug()
	if !state.IsHealthy {
		event = t.logger.Warn()
	}
	event.
		Float64("requested_cost", cost.RequestedQueryCost).
		Float64("available", state.CurrentlyAvailable).
		Float64("maximum", state.MaximumAvailable).
		Bool("is_healthy", state.IsHealthy).
		Msg("Throttle state updated")

	return nil
}

// Wait blocks until the bucket is projected to hold cost points.
// It returns immediately when no state is known yet.
func (t *Tracker) Wait(ctx context.Context, cost float64) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return fmt.Errorf("get throttle state: %w", err)
	}
	if state == nil {
		return nil
	}

	wait := state.WaitFor(cost, time.Now())
	if wait <= 0 {
		return nil
	}
	if wait > MaxWait {
		wait = MaxWait
	}

	t.logger.Warn().
		Float64("cost", cost).
		Float64("available", state.CurrentlyAvailable).
		Dur("wait", wait).
		Msg("Cost bucket low - throttling request")

	throttleWaitsTotal.Inc()
	throttleWaitSeconds.Observe(wait.Seconds())

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
