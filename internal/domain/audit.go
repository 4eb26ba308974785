package domain

import "time"

// EventName identifies what happened to a managed entity.
type EventName string

const (
	EventCreated      EventName = "CREATED"
	EventUpdated      EventName = "UPDATED"
	EventDeleted      EventName = "DELETED"
	EventTransitioned EventName = "TRANSITIONED"
	EventMemberAdded  EventName = "MEMBER_ADDED"
	EventMemberRemove EventName = "MEMBER_REMOVED"
)

// Event describes a change published after a successful mutation.
type Event struct {
	Name          EventName
	EnvironmentID string
	Kind          Kind
	EntityID      string
	// APIID is set for entities that belong to an API, including the API itself.
	APIID  string
	Actor  string
	Action Action
	From   State
	To     State
	At     time.Time
}

// AuditEvent is a persisted Event.
type AuditEvent struct {
	ID int64
	Event
}

// AuditFilter holds optional criteria for reading the audit trail.
type AuditFilter struct {
	EnvironmentID string
	APIID         string
	Paging
}

// Count is one bucket of an aggregation.
type Count struct {
	Key   string
	Count int
}
