package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// EventJobArgs is a domain event as it travels through the job queue. River
// serializes it as JSON, so the worker needs nothing but the args.
type EventJobArgs struct {
	Name          string    `json:"name"`
	EnvironmentID string    `json:"environment_id"`
	EntityKind    string    `json:"kind"`
	EntityID      string    `json:"entity_id"`
	APIID         string    `json:"api_id,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Action        string    `json:"action,omitempty"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to,omitempty"`
	At            time.Time `json:"at"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "event.published" }

func argsFromEvent(e domain.Event) EventJobArgs {
	return EventJobArgs{
		Name:          string(e.Name),
		EnvironmentID: e.EnvironmentID,
		EntityKind:    string(e.Kind),
		EntityID:      e.EntityID,
		APIID:         e.APIID,
		Actor:         e.Actor,
		Action:        string(e.Action),
		From:          string(e.From),
		To:            string(e.To),
		At:            e.At,
	}
}

// Event converts the args back into a domain event.
func (a EventJobArgs) Event() domain.Event {
	return domain.Event{
		Name:          domain.EventName(a.Name),
		EnvironmentID: a.EnvironmentID,
		Kind:          domain.Kind(a.EntityKind),
		EntityID:      a.EntityID,
		APIID:         a.APIID,
		Actor:         a.Actor,
		Action:        domain.Action(a.Action),
		From:          domain.State(a.From),
		To:            domain.State(a.To),
		At:            a.At,
	}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a domain event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	if _, err := p.client.Insert(ctx, argsFromEvent(event), nil); err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}
