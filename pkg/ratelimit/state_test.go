package ratelimit

import (
	"testing"
	"time"
)

func TestThrottleState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *ThrottleState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &ThrottleState{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &ThrottleState{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
		{
			name:     "just under max age",
			state:    &ThrottleState{LastUpdate: time.Now().Add(-4 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.state.IsStale(tt.maxAge)
			if result != tt.expected {
				t.Errorf("IsStale() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestThrottleState_Projected(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	state := &ThrottleState{
		MaximumAvailable:   1000,
		CurrentlyAvailable: 100,
		RestoreRate:        50,
		LastUpdate:         base,
	}

	tests := []struct {
		name     string
		at       time.Time
		expected float64
	}{
		{name: "at update", at: base, expected: 100},
		{name: "two seconds later", at: base.Add(2 * time.Second), expected: 200},
		{name: "capped at maximum", at: base.Add(time.Minute), expected: 1000},
		{name: "clock skew", at: base.Add(-time.Second), expected: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := state.Projected(tt.at); got != tt.expected {
				t.Errorf("Projected() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestThrottleState_WaitFor(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	state := &ThrottleState{
		MaximumAvailable:   1000,
		CurrentlyAvailable: 100,
		RestoreRate:        50,
		LastUpdate:         base,
	}

	tests := []struct {
		name     string
		cost     float64
		expected time.Duration
	}{
		{name: "fits", cost: 80, expected: 0},
		{name: "exactly available", cost: 100, expected: 0},
		{name: "needs refill", cost: 200, expected: 2 * time.Second},
		{name: "above bucket size waits for full bucket", cost: 5000, expected: 18 * time.Second},
		{name: "zero cost", cost: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := state.WaitFor(tt.cost, base); got != tt.expected {
				t.Errorf("WaitFor(%v) = %v, want %v", tt.cost, got, tt.expected)
			}
		})
	}
}

func TestThrottleState_UpdateHealth(t *testing.T) {
	tests := []struct {
		name      string
		available float64
		maximum   float64
		expected  bool
	}{
		{name: "full bucket", available: 1000, maximum: 1000, expected: true},
		{name: "at healthy threshold", available: 500, maximum: 1000, expected: true},
		{name: "below threshold", available: 499, maximum: 1000, expected: false},
		{name: "unknown maximum", available: 0, maximum: 0, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &ThrottleState{CurrentlyAvailable: tt.available, MaximumAvailable: tt.maximum}
			state.UpdateHealth()
			if state.IsHealthy != tt.expected {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.expected)
			}
		})
	}
}
