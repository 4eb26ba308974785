package domain

import (
	"context"
	"time"
)

// The Update methods below are compare-and-swap writes: they succeed only
// when the stored updated_at still equals expected, and return
// ErrPreconditionFailed otherwise.

// APIRepository defines the persistence contract for APIs.
type APIRepository interface {
	// Create stores the API and its primary owner atomically.
	Create(ctx context.Context, api API, owner Membership) error
	GetByID(ctx context.Context, environmentID, id string) (API, error)
	List(ctx context.Context, environmentID string, filter APIFilter) ([]API, error)
	Update(ctx context.Context, api API, expected time.Time) error
	CountBy(ctx context.Context, environmentID, field string) ([]Count, error)
}

// PlanRepository defines the persistence contract for plans.
type PlanRepository interface {
	Create(ctx context.Context, plan Plan) error
	GetByID(ctx context.Context, apiID, id string) (Plan, error)
	List(ctx context.Context, filter PlanFilter) ([]Plan, error)
	Update(ctx context.Context, plan Plan, expected time.Time) error
	Delete(ctx context.Context, apiID, id string) error
}

// SubscriptionRepository defines the persistence contract for subscriptions.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub Subscription) error
	GetByID(ctx context.Context, id string) (Subscription, error)
	List(ctx context.Context, filter SubscriptionFilter) ([]Subscription, error)
	Update(ctx context.Context, sub Subscription, expected time.Time) error
	CountBy(ctx context.Context, apiID, field string) ([]Count, error)
}

// ApplicationRepository defines the persistence contract for applications.
type ApplicationRepository interface {
	// Create stores the application and its primary owner atomically.
	Create(ctx context.Context, app Application, owner Membership) error
	GetByID(ctx context.Context, environmentID, id string) (Application, error)
	List(ctx context.Context, environmentID string, filter ApplicationFilter) ([]Application, error)
	Update(ctx context.Context, app Application, expected time.Time) error
}

// MembershipRepository defines the persistence contract for memberships.
type MembershipRepository interface {
	Save(ctx context.Context, m Membership) error
	// SaveAll saves every membership or none of them.
	SaveAll(ctx context.Context, ms ...Membership) error
	Get(ctx context.Context, ref Reference, memberID string) (Membership, error)
	ListByReference(ctx context.Context, ref Reference) ([]Membership, error)
	ListByMember(ctx context.Context, memberID string, refType ReferenceType) ([]Membership, error)
	Delete(ctx context.Context, ref Reference, memberID string) error
}

// PageRepository defines the persistence contract for documentation pages.
type PageRepository interface {
	Create(ctx context.Context, page Page) error
	GetByID(ctx context.Context, apiID, id string) (Page, error)
	List(ctx context.Context, filter PageFilter) ([]Page, error)
	Update(ctx context.Context, page Page, expected time.Time) error
	Delete(ctx context.Context, apiID, id string) error
}

// AlertRepository defines the persistence contract for alert triggers.
type AlertRepository interface {
	Create(ctx context.Context, alert AlertTrigger) error
	GetByID(ctx context.Context, apiID, id string) (AlertTrigger, error)
	List(ctx context.Context, apiID string) ([]AlertTrigger, error)
	Update(ctx context.Context, alert AlertTrigger, expected time.Time) error
	Delete(ctx context.Context, apiID, id string) error
}

// AuditRepository defines the persistence contract for the audit trail.
type AuditRepository interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// EventPublisher defines the contract for emitting domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// TransitionGuard vetoes a transition the table alone would allow. It
// returns a *TransitionError to refuse.
type TransitionGuard func(ctx context.Context, action Action, src, dst State) error

// TransitionValidator checks an action against a lifecycle table and returns
// the destination state.
type TransitionValidator interface {
	Apply(ctx context.Context, lc Lifecycle, current State, action Action, guards ...TransitionGuard) (State, error)
}

// PermissionOracle answers whether the caller may perform acts on a reference.
type PermissionOracle interface {
	Check(ctx context.Context, ec ExecutionContext, permission Permission, ref Reference, acts ...Act) (bool, error)
}

// PermissionCache drops cached permission answers for a principal after
// their memberships change.
type PermissionCache interface {
	Invalidate(principal string)
}

// MetricsRecorder observes lifecycle and concurrency outcomes.
type MetricsRecorder interface {
	TransitionApplied(kind Kind, action Action)
	TransitionRejected(kind Kind, action Action)
	PreconditionFailed(kind Kind)
}
