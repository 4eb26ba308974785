package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/neomorfeo/apiplane/internal/adapter/otel"
	"github.com/neomorfeo/apiplane/internal/domain"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock repositories ---

type mockAPIRepo struct {
	apis map[string]domain.API
}

func newMockAPIRepo() *mockAPIRepo {
	return &mockAPIRepo{apis: make(map[string]domain.API)}
}

func (m *mockAPIRepo) Create(_ context.Context, a domain.API, _ domain.Membership) error {
	m.apis[a.ID] = a
	return nil
}

func (m *mockAPIRepo) GetByID(_ context.Context, _, id string) (domain.API, error) {
	a, ok := m.apis[id]
	if !ok {
		return domain.API{}, &domain.NotFoundError{Kind: domain.KindAPI, ID: id}
	}
	return a, nil
}

func (m *mockAPIRepo) List(context.Context, string, domain.APIFilter) ([]domain.API, error) {
	out := make([]domain.API, 0, len(m.apis))
	for _, a := range m.apis {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAPIRepo) Update(_ context.Context, a domain.API, expected time.Time) error {
	cur, ok := m.apis[a.ID]
	if !ok {
		return &domain.NotFoundError{Kind: domain.KindAPI, ID: a.ID}
	}
	if !cur.UpdatedAt.Equal(expected) {
		return domain.ErrPreconditionFailed
	}
	m.apis[a.ID] = a
	return nil
}

func (m *mockAPIRepo) CountBy(context.Context, string, string) ([]domain.Count, error) {
	return []domain.Count{{Key: "STARTED", Count: len(m.apis)}}, nil
}

type mockSubscriptionRepo struct {
	subs map[string]domain.Subscription
}

func (m *mockSubscriptionRepo) Create(_ context.Context, s domain.Subscription) error {
	m.subs[s.ID] = s
	return nil
}

func (m *mockSubscriptionRepo) GetByID(_ context.Context, id string) (domain.Subscription, error) {
	s, ok := m.subs[id]
	if !ok {
		return domain.Subscription{}, &domain.NotFoundError{Kind: domain.KindSubscription, ID: id}
	}
	return s, nil
}

func (m *mockSubscriptionRepo) List(context.Context, domain.SubscriptionFilter) ([]domain.Subscription, error) {
	out := make([]domain.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSubscriptionRepo) Update(_ context.Context, s domain.Subscription, _ time.Time) error {
	m.subs[s.ID] = s
	return nil
}

func (m *mockSubscriptionRepo) CountBy(context.Context, string, string) ([]domain.Count, error) {
	return nil, nil
}

// --- Tests ---

func TestTracingAPIRepository_Create_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingAPIRepository(newMockAPIRepo())

	api := domain.NewAPI("api-1", "env", "Payments", "1.0")
	api.Proxy.ContextPath = "/payments"
	owner := domain.NewMembership("m-1", "alice", domain.Reference{Type: domain.ReferenceAPI, ID: "api-1"}, domain.RolePrimaryOwner)
	if err := repo.Create(context.Background(), api, owner); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "APIRepository.Create" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "APIRepository.Create")
	}

	assertAttribute(t, spans[0], "api.id", "api-1")
	assertAttribute(t, spans[0], "api.context_path", "/payments")
	assertAttribute(t, spans[0], "owner.member_id", "alice")
}

func TestTracingAPIRepository_GetByID_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingAPIRepository(newMockAPIRepo())

	_, err := repo.GetByID(context.Background(), "env", "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingAPIRepository_List_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockAPIRepo()
	repo := adapter.NewTracingAPIRepository(inner)

	inner.apis["a"] = domain.NewAPI("a", "env", "A", "1")
	inner.apis["b"] = domain.NewAPI("b", "env", "B", "1")

	apis, err := repo.List(context.Background(), "env", domain.APIFilter{All: true, Paging: domain.Paging{Limit: 10}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apis) != 2 {
		t.Errorf("got %d apis, want 2", len(apis))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "result.count", "2")
	assertAttribute(t, spans[0], "filter.limit", "10")
	assertAttribute(t, spans[0], "filter.all", "true")
}

func TestTracingAPIRepository_Update_StaleSnapshot(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockAPIRepo()
	repo := adapter.NewTracingAPIRepository(inner)

	api := domain.NewAPI("api-1", "env", "Payments", "1.0")
	inner.apis[api.ID] = api

	next := api
	next.State = domain.APIStateStarted
	err := repo.Update(context.Background(), next, api.UpdatedAt.Add(-time.Second))
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "api.state", "STARTED")
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

func TestTracingSubscriptionRepository_RecordsSpans(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingSubscriptionRepository(&mockSubscriptionRepo{subs: make(map[string]domain.Subscription)})
	ctx := context.Background()

	plan := domain.NewPlan("plan-1", "api-1", "Gold", domain.SecurityAPIKey, domain.ValidationAuto)
	sub := domain.NewSubscription("sub-1", plan, "app-1", "bob")
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.List(ctx, domain.SubscriptionFilter{APIID: "api-1"}); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name != "SubscriptionRepository.Create" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "SubscriptionRepository.Create")
	}
	assertAttribute(t, spans[0], "plan.id", "plan-1")
	assertAttribute(t, spans[0], "application.id", "app-1")
	assertAttribute(t, spans[1], "filter.api_id", "api-1")
	assertAttribute(t, spans[1], "result.count", "1")
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
