package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// activeStatuses are the non-terminal subscription statuses.
var activeStatuses = []domain.SubscriptionStatus{
	domain.SubscriptionPending,
	domain.SubscriptionAccepted,
	domain.SubscriptionPaused,
}

// maxCloseAttempts bounds how often a cascade close is retried after losing
// a compare-and-swap race to a concurrent writer.
const maxCloseAttempts = 5

// errCascadeContended is returned when a child kept changing under a cascade.
// It is not a precondition failure: the parent was already moved.
var errCascadeContended = errors.New("entity kept changing concurrently")

// closer cascades closure from APIs, plans and applications down to their
// plans and subscriptions. Child closes are not bound to any client tag, so
// a lost race reloads the child and tries again.
type closer struct {
	*runner
	plans         domain.PlanRepository
	subscriptions domain.SubscriptionRepository
}

// closeOp describes how to close one child entity of type T.
type closeOp[T domain.Managed] struct {
	lifecycle domain.Lifecycle
	state     func(T) domain.State
	move      func(entity T, dst domain.State, now time.Time) T
	save      func(ctx context.Context, entity T, expected time.Time) error
	reload    func(ctx context.Context) (T, error)
}

// closeOne closes entity unless it is already terminal, retrying on lost
// compare-and-swap races.
func closeOne[T domain.Managed](ctx context.Context, c *closer, ec domain.ExecutionContext, entity T, op closeOp[T]) error {
	kind := op.lifecycle.Kind
	id := entity.EntityID()

	for attempt := 1; ; attempt++ {
		from := op.state(entity)
		if op.lifecycle.IsTerminal(from) {
			return nil
		}
		to, err := c.apply(ctx, op.lifecycle, from, domain.ActionClose)
		if err != nil {
			return err
		}

		expected := entity.LastModified()
		next := op.move(entity, to, domain.NextUpdatedAt(expected))
		err = op.save(ctx, next, expected)
		switch {
		case err == nil:
			c.metrics.TransitionApplied(kind, domain.ActionClose)
			e := c.event(ec, domain.EventTransitioned, kind, next)
			e.Action, e.From, e.To = domain.ActionClose, from, to
			c.publish(ctx, e)
			return nil
		case !errors.Is(err, domain.ErrPreconditionFailed):
			return fmt.Errorf("closing %s %s: %w", kind, id, err)
		case attempt == maxCloseAttempts:
			return fmt.Errorf("closing %s %s after %d attempts: %w", kind, id, attempt, errCascadeContended)
		}

		entity, err = op.reload(ctx)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reloading %s %s: %w", kind, id, err)
		}
	}
}

// closeSubscriptions closes every active subscription matching filter.
func (c *closer) closeSubscriptions(ctx context.Context, ec domain.ExecutionContext, filter domain.SubscriptionFilter) error {
	filter.Statuses = activeStatuses
	subs, err := c.subscriptions.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing subscriptions to close: %w", err)
	}

	for _, sub := range subs {
		err := closeOne(ctx, c, ec, sub, closeOp[domain.Subscription]{
			lifecycle: domain.SubscriptionLifecycle,
			state:     subscriptionState,
			move:      moveSubscription,
			save:      c.subscriptions.Update,
			reload: func(ctx context.Context) (domain.Subscription, error) {
				return c.subscriptions.GetByID(ctx, sub.ID)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// closePlans closes every plan of an API that is not closed yet.
func (c *closer) closePlans(ctx context.Context, ec domain.ExecutionContext, apiID string) error {
	plans, err := c.plans.List(ctx, domain.PlanFilter{APIID: apiID})
	if err != nil {
		return fmt.Errorf("listing plans to close: %w", err)
	}

	for _, plan := range plans {
		err := closeOne(ctx, c, ec, plan, closeOp[domain.Plan]{
			lifecycle: domain.PlanLifecycle,
			state:     func(p domain.Plan) domain.State { return domain.State(p.Status) },
			move:      movePlan,
			save:      c.plans.Update,
			reload: func(ctx context.Context) (domain.Plan, error) {
				return c.plans.GetByID(ctx, apiID, plan.ID)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// resume finishes the cascade of a parent refused because it is already in
// a terminal state of lc. A cascade cut short by an earlier failure thus
// completes when the client retries. The refusal is still returned.
func resume(err error, lc domain.Lifecycle, cascade func() error) error {
	var terr *domain.TransitionError
	if !errors.As(err, &terr) || terr.Kind != lc.Kind || !lc.IsTerminal(terr.Current) {
		return err
	}
	if cerr := cascade(); cerr != nil {
		return cerr
	}
	return err
}

// movePlan puts a plan in state dst and stamps the matching timestamp.
func movePlan(p domain.Plan, dst domain.State, now time.Time) domain.Plan {
	p.Status = domain.PlanStatus(dst)
	p.UpdatedAt = now
	switch p.Status {
	case domain.PlanPublished:
		p.PublishedAt = &now
	case domain.PlanDeprecated:
		p.DeprecatedAt = &now
	case domain.PlanClosed:
		p.ClosedAt = &now
	}
	return p
}

// moveSubscription puts a subscription in state dst and stamps the matching
// timestamps.
func moveSubscription(s domain.Subscription, dst domain.State, now time.Time) domain.Subscription {
	s.Status = domain.SubscriptionStatus(dst)
	s.UpdatedAt = now
	switch s.Status {
	case domain.SubscriptionAccepted:
		s.PausedAt = nil
		if s.StartingAt == nil {
			s.StartingAt = &now
		}
	case domain.SubscriptionPaused:
		s.PausedAt = &now
	case domain.SubscriptionClosed:
		s.ClosedAt = &now
		if s.EndingAt == nil {
			s.EndingAt = &now
		}
	}
	return s
}
