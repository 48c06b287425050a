package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTracker_NoStateAllowsImmediately(t *testing.T) {
	tracker := NewTracker(nil, "test.myshopify.com", zerolog.Nop())

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state != nil {
		t.Errorf("GetState() = %+v, want nil before any response", state)
	}

	start := time.Now()
	if err := tracker.Wait(context.Background(), 1000); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Wait() took %v with no known state", elapsed)
	}
}

func TestTracker_UpdateFromCost(t *testing.T) {
	tracker := NewTracker(nil, "test.myshopify.com", zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name            string
		cost            Cost
		expectState     bool
		expectAvailable float64
		expectHealthy   bool
	}{
		{
			name:        "missing throttle status is ignored",
			cost:        Cost{RequestedQueryCost: 10},
			expectState: false,
		},
		{
			name: "healthy bucket",
			cost: Cost{
				RequestedQueryCost: 52,
				ThrottleStatus: ThrottleStatus{
					MaximumAvailable:   2000,
					CurrentlyAvailable: 1948,
					RestoreRate:        100,
				},
			},
			expectState:     true,
			expectAvailable: 1948,
			expectHealthy:   true,
		},
		{
			name: "drained bucket",
			cost: Cost{
				RequestedQueryCost: 752,
				ThrottleStatus: ThrottleStatus{
					MaximumAvailable:   2000,
					CurrentlyAvailable: 120,
					RestoreRate:        100,
				},
			},
			expectState:     true,
			expectAvailable: 120,
			expectHealthy:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tracker.UpdateFromCost(ctx, tt.cost); err != nil {
				t.Fatalf("UpdateFromCost() error = %v", err)
			}

			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if !tt.expectState {
				if state != nil {
					t.Errorf("GetState() = %+v, want nil", state)
				}
				return
			}
			if state == nil {
				t.Fatal("GetState() = nil, want state")
			}
			if state.CurrentlyAvailable != tt.expectAvailable {
				t.Errorf("CurrentlyAvailable = %v, want %v", state.CurrentlyAvailable, tt.expectAvailable)
			}
			if state.IsHealthy != tt.expectHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.expectHealthy)
			}
		})
	}
}

func TestTracker_WaitDelaysUntilRefilled(t *testing.T) {
	tracker := NewTracker(nil, "test.myshopify.com", zerolog.Nop())
	ctx := context.Background()

	// 10 points short at 200 points/s = 50ms
	err := tracker.UpdateFromCost(ctx, Cost{ThrottleStatus: ThrottleStatus{
		MaximumAvailable:   1000,
		CurrentlyAvailable: 90,
		RestoreRate:        200,
	}})
	if err != nil {
		t.Fatalf("UpdateFromCost() error = %v", err)
	}

	start := time.Now()
	if err := tracker.Wait(ctx, 100); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected a refill delay", elapsed)
	}
}

func TestTracker_WaitRespectsContext(t *testing.T) {
	tracker := NewTracker(nil, "test.myshopify.com", zerolog.Nop())

	err := tracker.UpdateFromCost(context.Background(), Cost{ThrottleStatus: ThrottleStatus{
		MaximumAvailable:   1000,
		CurrentlyAvailable: 0,
		RestoreRate:        1,
	}})
	if err != nil {
		t.Fatalf("UpdateFromCost() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tracker.Wait(ctx, 500); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestTracker_StaleLocalStateIsIgnored(t *testing.T) {
	tracker := NewTracker(nil, "test.myshopify.com", zerolog.Nop())
	tracker.local = &ThrottleState{
		MaximumAvailable:   2000,
		CurrentlyAvailable: 0,
		RestoreRate:        1,
		LastUpdate:         time.Now().Add(-2 * StateTTL),
	}

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state != nil {
		t.Errorf("GetState() = %+v, want nil for state older than %v", state, StateTTL)
	}

	start := time.Now()
	if err := tracker.Wait(context.Background(), 1000); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Wait() took %v on stale state", elapsed)
	}
}
