package domain

import "time"

// ExecutionContext carries the organization, environment and caller of a
// request. It is passed explicitly to every service call.
type ExecutionContext struct {
	OrganizationID string
	EnvironmentID  string
	// Principal is empty for anonymous callers.
	Principal string
}

// Anonymous reports whether the caller is unauthenticated.
func (ec ExecutionContext) Anonymous() bool {
	return ec.Principal == ""
}

// NextUpdatedAt returns the timestamp to record for a mutation of an entity
// last modified at prev. The result is truncated to milliseconds and always
// strictly after prev, so the derived concurrency token always changes.
func NextUpdatedAt(prev time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if !now.After(prev) {
		return prev.Add(time.Millisecond).UTC().Truncate(time.Millisecond)
	}
	return now
}

// Paging bounds a list query. A zero Limit means no limit.
type Paging struct {
	Limit  int
	Offset int
}
