package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/apiplane/internal/domain"
)

const tracerName = "github.com/neomorfeo/apiplane/internal/adapter/otel"

// finish records err on span, if any, and ends it.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func pagingAttributes(p domain.Paging) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("filter.limit", p.Limit),
		attribute.Int("filter.offset", p.Offset),
	}
}

// TracingAPIRepository wraps a domain.APIRepository with OpenTelemetry tracing.
type TracingAPIRepository struct {
	next   domain.APIRepository
	tracer trace.Tracer
}

var _ domain.APIRepository = (*TracingAPIRepository)(nil)

// NewTracingAPIRepository creates a tracing decorator around next.
func NewTracingAPIRepository(next domain.APIRepository) *TracingAPIRepository {
	return &TracingAPIRepository{next: next, tracer: otel.Tracer(tracerName)}
}

func (r *TracingAPIRepository) Create(ctx context.Context, api domain.API, owner domain.Membership) (err error) {
	ctx, span := r.tracer.Start(ctx, "APIRepository.Create",
		trace.WithAttributes(
			attribute.String("api.id", api.ID),
			attribute.String("api.context_path", api.Proxy.ContextPath),
			attribute.String("owner.member_id", owner.MemberID),
		),
	)
	defer func() { finish(span, err) }()

	return r.next.Create(ctx, api, owner)
}

func (r *TracingAPIRepository) GetByID(ctx context.Context, environmentID, id string) (api domain.API, err error) {
	ctx, span := r.tracer.Start(ctx, "APIRepository.GetByID",
		trace.WithAttributes(
			attribute.String("environment.id", environmentID),
			attribute.String("api.id", id),
		),
	)
	defer func() { finish(span, err) }()

	return r.next.GetByID(ctx, environmentID, id)
}

func (r *TracingAPIRepository) List(ctx context.Context, environmentID string, filter domain.APIFilter) (apis []domain.API, err error) {
	ctx, span := r.tracer.Start(ctx, "APIRepository.List",
		trace.WithAttributes(pagingAttributes(filter.Paging)...),
	)
	defer func() { finish(span, err) }()

	span.SetAttributes(
		attribute.String("environment.id", environmentID),
		attribute.Bool("filter.all", filter.All),
		attribute.Int("filter.ids", len(filter.IDs)),
	)

	apis, err = r.next.List(ctx, environmentID, filter)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(apis)))
	}
	return apis, err
}

func (r *TracingAPIRepository) Update(ctx context.Context, api domain.API, expected time.Time) (err error) {
	ctx, span := r.tracer.Start(ctx, "APIRepository.Update",
		trace.WithAttributes(
			attribute.String("api.id", api.ID),
			attribute.String("api.state", string(api.State)),
			attribute.Int64("expected.updated_at", expected.UnixMilli()),
		),
	)
	defer func() { finish(span, err) }()

	return r.next.Update(ctx, api, expected)
}

func (r *TracingAPIRepository) CountBy(ctx context.Context, environmentID, field string) (counts []domain.Count, err error) {
	ctx, span := r.tracer.Start(ctx, "APIRepository.CountBy",
		trace.WithAttributes(attribute.String("count.field", field)),
	)
	defer func() { finish(span, err) }()

	return r.next.CountBy(ctx, environmentID, field)
}

// TracingSubscriptionRepository wraps a domain.SubscriptionRepository with
// OpenTelemetry tracing.
type TracingSubscriptionRepository struct {
	next   domain.SubscriptionRepository
	tracer trace.Tracer
}

var _ domain.SubscriptionRepository = (*TracingSubscriptionRepository)(nil)

// NewTracingSubscriptionRepository creates a tracing decorator around next.
func NewTracingSubscriptionRepository(next domain.SubscriptionRepository) *TracingSubscriptionRepository {
	return &TracingSubscriptionRepository{next: next, tracer: otel.Tracer(tracerName)}
}

func (r *TracingSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (err error) {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.Create",
		trace.WithAttributes(
			attribute.String("subscription.id", sub.ID),
			attribute.String("plan.id", sub.PlanID),
			attribute.String("application.id", sub.ApplicationID),
		),
	)
	defer func() { finish(span, err) }()

	return r.next.Create(ctx, sub)
}

func (r *TracingSubscriptionRepository) GetByID(ctx context.Context, id string) (sub domain.Subscription, err error) {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.GetByID",
		trace.WithAttributes(attribute.String("subscription.id", id)),
	)
	defer func() { finish(span, err) }()

	return r.next.GetByID(ctx, id)
}

func (r *TracingSubscriptionRepository) List(ctx context.Context, filter domain.SubscriptionFilter) (subs []domain.Subscription, err error) {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.List",
		trace.WithAttributes(pagingAttributes(filter.Paging)...),
	)
	defer func() { finish(span, err) }()

	if filter.APIID != "" {
		span.SetAttributes(attribute.String("filter.api_id", filter.APIID))
	}
	if filter.ApplicationID != "" {
		span.SetAttributes(attribute.String("filter.application_id", filter.ApplicationID))
	}

	subs, err = r.next.List(ctx, filter)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(subs)))
	}
	return subs, err
}

func (r *TracingSubscriptionRepository) Update(ctx context.Context, sub domain.Subscription, expected time.Time) (err error) {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.Update",
		trace.WithAttributes(
			attribute.String("subscription.id", sub.ID),
			attribute.String("subscription.status", string(sub.Status)),
		),
	)
	defer func() { finish(span, err) }()

	return r.next.Update(ctx, sub, expected)
}

func (r *TracingSubscriptionRepository) CountBy(ctx context.Context, apiID, field string) (counts []domain.Count, err error) {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.CountBy",
		trace.WithAttributes(
			attribute.String("api.id", apiID),
			attribute.String("count.field", field),
		),
	)
	defer func() { finish(span, err) }()

	return r.next.CountBy(ctx, apiID, field)
}
