package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
	"github.com/neomorfeo/apiplane/internal/etag"
)

// runner holds the collaborators shared by every service and implements the
// orchestration common to all mutating operations.
type runner struct {
	oracle    domain.PermissionOracle
	validator domain.TransitionValidator
	publisher domain.EventPublisher
	metrics   domain.MetricsRecorder
	guard     etag.Guard
}

func environmentRef(ec domain.ExecutionContext) domain.Reference {
	return domain.Reference{Type: domain.ReferenceEnvironment, ID: ec.EnvironmentID}
}

func apiRef(id string) domain.Reference {
	return domain.Reference{Type: domain.ReferenceAPI, ID: id}
}

func applicationRef(id string) domain.Reference {
	return domain.Reference{Type: domain.ReferenceApplication, ID: id}
}

// can asks the oracle without turning a refusal into an error.
func (r *runner) can(ctx context.Context, ec domain.ExecutionContext, p domain.Permission, ref domain.Reference, acts ...domain.Act) (bool, error) {
	ok, err := r.oracle.Check(ctx, ec, p, ref, acts...)
	if err != nil {
		return false, fmt.Errorf("checking permission %s: %w", p, err)
	}
	return ok, nil
}

// require fails with a *domain.PermissionDeniedError unless the caller holds
// every act of the permission on ref.
func (r *runner) require(ctx context.Context, ec domain.ExecutionContext, p domain.Permission, ref domain.Reference, acts ...domain.Act) error {
	ok, err := r.can(ctx, ec, p, ref, acts...)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.PermissionDeniedError{Permission: p, Acts: acts}
	}
	return nil
}

// precondition evaluates an If-Match header against the snapshot's token.
func (r *runner) precondition(kind domain.Kind, ifMatch string, updatedAt time.Time) error {
	outcome, err := r.guard.Check(ifMatch, etag.Format(updatedAt))
	if err != nil {
		return &domain.MalformedPreconditionError{Header: ifMatch, Err: err}
	}
	if outcome == etag.PreconditionFailed {
		r.metrics.PreconditionFailed(kind)
		return domain.ErrPreconditionFailed
	}
	return nil
}

// apply runs the lifecycle validator and records rejections. Callers record
// the applied transition once it is persisted.
func (r *runner) apply(ctx context.Context, lc domain.Lifecycle, current domain.State, action domain.Action, guards ...domain.TransitionGuard) (domain.State, error) {
	dst, err := r.validator.Apply(ctx, lc, current, action, guards...)
	if err != nil {
		r.metrics.TransitionRejected(lc.Kind, action)
		return "", err
	}
	return dst, nil
}

// saved counts lost compare-and-swap races as precondition failures.
func (r *runner) saved(kind domain.Kind, err error) error {
	if errors.Is(err, domain.ErrPreconditionFailed) {
		r.metrics.PreconditionFailed(kind)
		return err
	}
	if err != nil {
		return fmt.Errorf("saving %s: %w", kind, err)
	}
	return nil
}

// publish emits an event. Failures are logged and never fail the request.
func (r *runner) publish(ctx context.Context, e domain.Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := r.publisher.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "publishing event failed",
			"event", e.Name,
			"kind", e.Kind,
			"entity_id", e.EntityID,
			"error", err,
		)
	}
}

func (r *runner) event(ec domain.ExecutionContext, name domain.EventName, kind domain.Kind, m domain.Managed) domain.Event {
	return domain.Event{
		Name:          name,
		EnvironmentID: ec.EnvironmentID,
		Kind:          kind,
		EntityID:      m.EntityID(),
		APIID:         m.OwnerAPI(),
		Actor:         ec.Principal,
		At:            m.LastModified(),
	}
}

// transitionOp describes one lifecycle move on an entity of type T.
type transitionOp[T domain.Managed] struct {
	permission domain.Permission
	ref        domain.Reference
	acts       []domain.Act
	ifMatch    string
	lifecycle  domain.Lifecycle
	action     domain.Action

	load  func(ctx context.Context) (T, error)
	state func(T) domain.State
	// guards may inspect the loaded snapshot.
	guards func(T) []domain.TransitionGuard
	// mutate returns the entity in state dst, stamped with now.
	mutate func(entity T, dst domain.State, now time.Time) T
	save   func(ctx context.Context, entity T, expected time.Time) error
}

// runTransition performs permission check, fetch, concurrency guard,
// lifecycle validation, compare-and-swap persist and event publication.
func runTransition[T domain.Managed](ctx context.Context, r *runner, ec domain.ExecutionContext, op transitionOp[T]) (T, error) {
	var zero T
	kind := op.lifecycle.Kind

	if err := r.require(ctx, ec, op.permission, op.ref, op.acts...); err != nil {
		return zero, err
	}

	current, err := op.load(ctx)
	if err != nil {
		return zero, err
	}

	expected := current.LastModified()
	if err := r.precondition(kind, op.ifMatch, expected); err != nil {
		return zero, err
	}

	var guards []domain.TransitionGuard
	if op.guards != nil {
		guards = op.guards(current)
	}
	from := op.state(current)
	to, err := r.apply(ctx, op.lifecycle, from, op.action, guards...)
	if err != nil {
		return zero, err
	}

	next := op.mutate(current, to, domain.NextUpdatedAt(expected))
	if err := r.saved(kind, op.save(ctx, next, expected)); err != nil {
		return zero, err
	}
	r.metrics.TransitionApplied(kind, op.action)

	e := r.event(ec, domain.EventTransitioned, kind, next)
	e.Action, e.From, e.To = op.action, from, to
	r.publish(ctx, e)

	return next, nil
}

// updateOp describes a field update on an entity of type T.
type updateOp[T domain.Managed] struct {
	kind       domain.Kind
	permission domain.Permission
	ref        domain.Reference
	ifMatch    string

	load func(ctx context.Context) (T, error)
	// check rejects updates, typically of entities in a terminal state.
	check func(T) error
	merge func(ctx context.Context, entity T, now time.Time) (T, error)
	save  func(ctx context.Context, entity T, expected time.Time) error
}

// runUpdate performs permission check, fetch, concurrency guard, merge,
// compare-and-swap persist and event publication.
func runUpdate[T domain.Managed](ctx context.Context, r *runner, ec domain.ExecutionContext, op updateOp[T]) (T, error) {
	var zero T

	if err := r.require(ctx, ec, op.permission, op.ref, domain.Update); err != nil {
		return zero, err
	}

	current, err := op.load(ctx)
	if err != nil {
		return zero, err
	}

	expected := current.LastModified()
	if err := r.precondition(op.kind, op.ifMatch, expected); err != nil {
		return zero, err
	}

	if op.check != nil {
		if err := op.check(current); err != nil {
			return zero, err
		}
	}

	next, err := op.merge(ctx, current, domain.NextUpdatedAt(expected))
	if err != nil {
		return zero, err
	}
	if err := r.saved(op.kind, op.save(ctx, next, expected)); err != nil {
		return zero, err
	}

	r.publish(ctx, r.event(ec, domain.EventUpdated, op.kind, next))
	return next, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// terminalCheck refuses updates to an entity whose state is terminal in lc.
func terminalCheck(lc domain.Lifecycle, state domain.State, reason string) error {
	if lc.IsTerminal(state) {
		return &domain.TransitionError{Kind: lc.Kind, Current: state, Reason: reason}
	}
	return nil
}

type noopMetrics struct{}

func (noopMetrics) TransitionApplied(domain.Kind, domain.Action)  {}
func (noopMetrics) TransitionRejected(domain.Kind, domain.Action) {}
func (noopMetrics) PreconditionFailed(domain.Kind)                {}
