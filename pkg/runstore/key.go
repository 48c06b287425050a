package runstore

import "strings"

const (
	keyPrefix   = "repricer:run:"
	latestKey   = keyPrefix + "latest"
	recentKey   = "repricer:runs"
	maxIDLength = 64
)

// RunKey returns the Redis key holding the summary of runID.
func RunKey(runID string) string {
	return keyPrefix + strings.TrimSpace(runID)
}

// validID rejects ids that could collide with the bookkeeping keys.
func validID(runID string) bool {
	id := strings.TrimSpace(runID)
	return id != "" && id != "latest" && len(id) <= maxIDLength && !strings.ContainsAny(id, ": \t\n")
}
