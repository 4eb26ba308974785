package domain

import "time"

// SubscriptionStatus is the state of an application's subscription to a plan.
type SubscriptionStatus string

const (
	SubscriptionPending  SubscriptionStatus = "PENDING"
	SubscriptionAccepted SubscriptionStatus = "ACCEPTED"
	SubscriptionPaused   SubscriptionStatus = "PAUSED"
	SubscriptionClosed   SubscriptionStatus = "CLOSED"
	SubscriptionRejected SubscriptionStatus = "REJECTED"
)

// Subscription binds an application to a plan of an API.
type Subscription struct {
	ID            string
	APIID         string
	PlanID        string
	ApplicationID string
	Status        SubscriptionStatus
	Request       string
	Reason        string
	Configuration map[string]string
	SubscribedBy  string
	ProcessedBy   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   *time.Time
	PausedAt      *time.Time
	ClosedAt      *time.Time
	StartingAt    *time.Time
	EndingAt      *time.Time
}

// NewSubscription creates a PENDING subscription.
func NewSubscription(id string, plan Plan, applicationID, subscribedBy string) Subscription {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return Subscription{
		ID:            id,
		APIID:         plan.APIID,
		PlanID:        plan.ID,
		ApplicationID: applicationID,
		Status:        SubscriptionPending,
		SubscribedBy:  subscribedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Active reports whether the subscription still grants or may grant access.
func (s Subscription) Active() bool {
	return !SubscriptionLifecycle.IsTerminal(State(s.Status))
}

// SubscriptionFilter holds optional criteria for listing subscriptions.
type SubscriptionFilter struct {
	APIID         string
	PlanID        string
	ApplicationID string
	Statuses      []SubscriptionStatus
	Paging
}

// SubscriptionStatusAction maps the status query values accepted by the
// status endpoint to lifecycle actions.
var SubscriptionStatusAction = map[string]Action{
	"PAUSED":  ActionPause,
	"RESUMED": ActionResume,
	"CLOSED":  ActionClose,
}
