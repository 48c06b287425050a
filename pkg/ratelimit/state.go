// Package ratelimit tracks the Admin GraphQL API cost budget and gates requests.
// The API uses a leaky bucket: every query has a cost, the bucket holds
// maximumAvailable points and refills at restoreRate points per second. The
// current bucket state is returned in extensions.cost.throttleStatus.
package ratelimit

import (
	"math"
	"time"
)

// RedisKeyPrefix namespaces throttle state in Redis; the shop domain is appended.
const RedisKeyPrefix = "shopify:throttle:"

// StateTTL bounds how long shared state lives in Redis without an update.
// Past this age the bucket has certainly refilled.
const StateTTL = 5 * time.Minute

// HealthyFraction is the share of the bucket that must be available for the
// state to count as healthy.
const HealthyFraction = 0.5

// Cost mirrors the extensions.cost object of an Admin API response.
type Cost struct {
	RequestedQueryCost float64        `json:"requestedQueryCost"`
	ActualQueryCost    *float64       `json:"actualQueryCost"`
	ThrottleStatus     ThrottleStatus `json:"throttleStatus"`
}

// ThrottleStatus mirrors extensions.cost.throttleStatus.
type ThrottleStatus struct {
	MaximumAvailable   float64 `json:"maximumAvailable"`
	CurrentlyAvailable float64 `json:"currentlyAvailable"`
	RestoreRate        float64 `json:"restoreRate"`
}

// ThrottleState is the last observed bucket state.
// When Redis is configured it is shared by every process talking to the same shop.
type ThrottleState struct {
	MaximumAvailable   float64   `json:"maximum_available"`
	CurrentlyAvailable float64   `json:"currently_available"`
	RestoreRate        float64   `json:"restore_rate"`
	LastUpdate         time.Time `json:"last_update"`
	IsHealthy          bool      `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *ThrottleState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// Projected returns the points expected to be available at now, accounting
// for the restore rate since the last update.
func (s *ThrottleState) Projected(now time.Time) float64 {
	elapsed := now.Sub(s.LastUpdate).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Min(s.MaximumAvailable, s.CurrentlyAvailable+elapsed*s.RestoreRate)
}

// WaitFor returns how long to wait at now before a query of the given cost fits.
// Costs above the bucket size wait for a full bucket.
func (s *ThrottleState) WaitFor(cost float64, now time.Time) time.Duration {
	if s.RestoreRate <= 0 || cost <= 0 {
		return 0
	}
	if cost > s.MaximumAvailable {
		cost = s.MaximumAvailable
	}

	missing := cost - s.Projected(now)
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / s.RestoreRate * float64(time.Second))
}

// UpdateHealth updates the IsHealthy field based on current availability.
func (s *ThrottleState) UpdateHealth() {
	s.IsHealthy = s.MaximumAvailable > 0 && s.CurrentlyAvailable >= s.MaximumAvailable*HealthyFraction
}
