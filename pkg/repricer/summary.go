package repricer

import (
	"errors"
	"fmt"
	"time"
)

// State is the orchestrator state of one run.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateFetching   State = "fetching"
	StateProcessing State = "processing"
	StateFinished   State = "finished"
	StateAborted    State = "aborted"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateAborted
}

// ErrNoCurrentRate is wrapped by the ConfigurationError returned when a run
// starts without a rate record.
var ErrNoCurrentRate = errors.New("no current rate record")

// ConfigurationError stops a run before any remote call is made.
type ConfigurationError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ItemError records a failed write for one item.
type ItemError struct {
	ItemID    string `json:"item_id"`
	VariantID string `json:"variant_id,omitempty"`
	Message   string `json:"message"`
}

// RunSummary is the result of one re-pricing run.
//
// Complete is false when the run aborted on a page fetch; the counts then
// cover only the pages processed before the failure. Success additionally
// requires that no item failed.
type RunSummary struct {
	RunID        string      `json:"run_id"`
	State        State       `json:"state"`
	Success      bool        `json:"success"`
	Complete     bool        `json:"complete"`
	DryRun       bool        `json:"dry_run,omitempty"`
	UpdatedCount int         `json:"updated_count"`
	SkippedCount int         `json:"skipped_count"`
	PlannedCount int         `json:"planned_count"`
	Pages        int         `json:"pages"`
	Errors       []ItemError `json:"errors"`
	AbortReason  string      `json:"abort_reason,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
}

// Duration returns how long the run took, or 0 while it is still running.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
