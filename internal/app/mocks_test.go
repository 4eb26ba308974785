package app_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/neomorfeo/apiplane/internal/adapter/fsm"
	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/domain"
)

// --- Mocks ---

// store is an in-memory stand-in for every repository. Updates are
// compare-and-swap on UpdatedAt like the real store.
type store struct {
	mu            sync.Mutex
	apis          map[string]domain.API
	plans         map[string]domain.Plan
	subscriptions map[string]domain.Subscription
	applications  map[string]domain.Application
	memberships   map[domain.Reference]map[string]domain.Membership
	pages         map[string]domain.Page
	alerts        map[string]domain.AlertTrigger
	audit         []domain.AuditEvent

	// rejectMember makes membership writes for this principal fail.
	rejectMember string
	// races counts the next writes to an entity that lose to a concurrent
	// writer.
	races map[string]int
}

func newStore() *store {
	return &store{
		races:         make(map[string]int),
		apis:          make(map[string]domain.API),
		plans:         make(map[string]domain.Plan),
		subscriptions: make(map[string]domain.Subscription),
		applications:  make(map[string]domain.Application),
		memberships:   make(map[domain.Reference]map[string]domain.Membership),
		pages:         make(map[string]domain.Page),
		alerts:        make(map[string]domain.AlertTrigger),
	}
}

func cas[T domain.Managed](s *store, m map[string]T, kind domain.Kind, next T, expected time.Time) error {
	cur, ok := m[next.EntityID()]
	if !ok {
		return &domain.NotFoundError{Kind: kind, ID: next.EntityID()}
	}
	if s.races[next.EntityID()] > 0 {
		s.races[next.EntityID()]--
		return domain.ErrPreconditionFailed
	}
	if !cur.LastModified().Equal(expected) {
		return domain.ErrPreconditionFailed
	}
	m[next.EntityID()] = next
	return nil
}

type apiRepo struct{ *store }

func (r apiRepo) Create(_ context.Context, a domain.API, owner domain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.apis {
		if other.EnvironmentID == a.EnvironmentID && other.Proxy.ContextPath == a.Proxy.ContextPath && other.State != domain.APIStateArchived {
			return &domain.ConflictError{Kind: domain.KindAPI, Message: "context path already used"}
		}
	}
	if err := r.saveMembers(owner); err != nil {
		return err
	}
	r.apis[a.ID] = a
	return nil
}

func (r apiRepo) GetByID(_ context.Context, env, id string) (domain.API, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apis[id]
	if !ok || a.EnvironmentID != env {
		return domain.API{}, &domain.NotFoundError{Kind: domain.KindAPI, ID: id}
	}
	return a, nil
}

func (r apiRepo) List(_ context.Context, env string, f domain.APIFilter) ([]domain.API, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.API{}
	for _, a := range r.apis {
		if a.EnvironmentID != env || (f.State != nil && a.State != *f.State) {
			continue
		}
		visible := f.All || (f.PublicOnly && a.Visibility == domain.VisibilityPublic) || slices.Contains(f.IDs, a.ID)
		if visible {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(x, y domain.API) int { return strings.Compare(x.ID, y.ID) })
	return out, nil
}

func (r apiRepo) Update(_ context.Context, a domain.API, expected time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cas(r.store, r.apis, domain.KindAPI, a, expected)
}

func (r apiRepo) CountBy(_ context.Context, env, field string) ([]domain.Count, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, a := range r.apis {
		if a.EnvironmentID == env {
			counts[string(a.State)]++
		}
	}
	out := []domain.Count{}
	for k, v := range counts {
		out = append(out, domain.Count{Key: k, Count: v})
	}
	return out, nil
}

type planRepo struct{ *store }

func (r planRepo) Create(_ context.Context, p domain.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = p
	return nil
}

func (r planRepo) GetByID(_ context.Context, apiID, id string) (domain.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok || p.APIID != apiID {
		return domain.Plan{}, &domain.NotFoundError{Kind: domain.KindPlan, ID: id}
	}
	return p, nil
}

func (r planRepo) List(_ context.Context, f domain.PlanFilter) ([]domain.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Plan{}
	for _, p := range r.plans {
		if p.APIID == f.APIID && (f.Status == nil || p.Status == *f.Status) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r planRepo) Update(_ context.Context, p domain.Plan, expected time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cas(r.store, r.plans, domain.KindPlan, p, expected)
}

func (r planRepo) Delete(_ context.Context, apiID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.plans[id]; !ok || p.APIID != apiID {
		return &domain.NotFoundError{Kind: domain.KindPlan, ID: id}
	}
	delete(r.plans, id)
	return nil
}

type subscriptionRepo struct{ *store }

func (r subscriptionRepo) Create(_ context.Context, s domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions[s.ID] = s
	return nil
}

func (r subscriptionRepo) GetByID(_ context.Context, id string) (domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subscriptions[id]
	if !ok {
		return domain.Subscription{}, &domain.NotFoundError{Kind: domain.KindSubscription, ID: id}
	}
	return s, nil
}

func (r subscriptionRepo) List(_ context.Context, f domain.SubscriptionFilter) ([]domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Subscription{}
	for _, s := range r.subscriptions {
		switch {
		case f.APIID != "" && s.APIID != f.APIID:
		case f.PlanID != "" && s.PlanID != f.PlanID:
		case f.ApplicationID != "" && s.ApplicationID != f.ApplicationID:
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, s.Status):
		default:
			out = append(out, s)
		}
	}
	return out, nil
}

func (r subscriptionRepo) Update(_ context.Context, s domain.Subscription, expected time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cas(r.store, r.subscriptions, domain.KindSubscription, s, expected)
}

func (r subscriptionRepo) CountBy(_ context.Context, apiID, field string) ([]domain.Count, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, s := range r.subscriptions {
		if s.APIID == apiID {
			counts[string(s.Status)]++
		}
	}
	out := []domain.Count{}
	for k, v := range counts {
		out = append(out, domain.Count{Key: k, Count: v})
	}
	return out, nil
}

type applicationRepo struct{ *store }

func (r applicationRepo) Create(_ context.Context, a domain.Application, owner domain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.saveMembers(owner); err != nil {
		return err
	}
	r.applications[a.ID] = a
	return nil
}

func (r applicationRepo) GetByID(_ context.Context, env, id string) (domain.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.applications[id]
	if !ok || a.EnvironmentID != env {
		return domain.Application{}, &domain.NotFoundError{Kind: domain.KindApplication, ID: id}
	}
	return a, nil
}

func (r applicationRepo) List(_ context.Context, env string, f domain.ApplicationFilter) ([]domain.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Application{}
	for _, a := range r.applications {
		if a.EnvironmentID == env && (f.All || slices.Contains(f.IDs, a.ID)) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r applicationRepo) Update(_ context.Context, a domain.Application, expected time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cas(r.store, r.applications, domain.KindApplication, a, expected)
}

type membershipRepo struct{ *store }

func (r membershipRepo) Save(_ context.Context, m domain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveMembers(m)
}

func (r membershipRepo) SaveAll(_ context.Context, ms ...domain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveMembers(ms...)
}

// saveMembers writes all memberships or, when one is rejected, none.
// Callers hold mu.
func (s *store) saveMembers(ms ...domain.Membership) error {
	for _, m := range ms {
		if s.rejectMember != "" && m.MemberID == s.rejectMember {
			return errors.New("membership write rejected")
		}
	}
	for _, m := range ms {
		if s.memberships[m.Reference] == nil {
			s.memberships[m.Reference] = make(map[string]domain.Membership)
		}
		s.memberships[m.Reference][m.MemberID] = m
	}
	return nil
}

func (r membershipRepo) Get(_ context.Context, ref domain.Reference, memberID string) (domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[ref][memberID]
	if !ok {
		return domain.Membership{}, &domain.NotFoundError{Kind: domain.KindMembership, ID: memberID}
	}
	return m, nil
}

func (r membershipRepo) ListByReference(_ context.Context, ref domain.Reference) ([]domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Membership{}
	for _, m := range r.memberships[ref] {
		out = append(out, m)
	}
	return out, nil
}

func (r membershipRepo) ListByMember(_ context.Context, memberID string, refType domain.ReferenceType) ([]domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Membership{}
	for ref, members := range r.memberships {
		if m, ok := members[memberID]; ok && ref.Type == refType {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r membershipRepo) Delete(_ context.Context, ref domain.Reference, memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memberships[ref][memberID]; !ok {
		return &domain.NotFoundError{Kind: domain.KindMembership, ID: memberID}
	}
	delete(r.memberships[ref], memberID)
	return nil
}

type pageRepo struct{ *store }

func (r pageRepo) Create(_ context.Context, p domain.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[p.ID] = p
	return nil
}

func (r pageRepo) GetByID(_ context.Context, apiID, id string) (domain.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pages[id]
	if !ok || p.APIID != apiID {
		return domain.Page{}, &domain.NotFoundError{Kind: domain.KindPage, ID: id}
	}
	return p, nil
}

func (r pageRepo) List(_ context.Context, f domain.PageFilter) ([]domain.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Page{}
	for _, p := range r.pages {
		if p.APIID == f.APIID && (!f.PublishedOnly || p.Published) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r pageRepo) Update(_ context.Context, p domain.Page, expected time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cas(r.store, r.pages, domain.KindPage, p, expected)
}

func (r pageRepo) Delete(_ context.Context, _, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pages, id)
	return nil
}

type alertRepo struct{ *store }

func (r alertRepo) Create(_ context.Context, a domain.AlertTrigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[a.ID] = a
	return nil
}

func (r alertRepo) GetByID(_ context.Context, apiID, id string) (domain.AlertTrigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok || a.APIID != apiID {
		return domain.AlertTrigger{}, &domain.NotFoundError{Kind: domain.KindAlert, ID: id}
	}
	return a, nil
}

func (r alertRepo) List(_ context.Context, apiID string) ([]domain.AlertTrigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.AlertTrigger{}
	for _, a := range r.alerts {
		if a.APIID == apiID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r alertRepo) Update(_ context.Context, a domain.AlertTrigger, expected time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cas(r.store, r.alerts, domain.KindAlert, a, expected)
}

func (r alertRepo) Delete(_ context.Context, _, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.alerts, id)
	return nil
}

type auditRepo struct{ *store }

func (r auditRepo) Append(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, domain.AuditEvent{ID: int64(len(r.audit) + 1), Event: e})
	return nil
}

func (r auditRepo) List(_ context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.AuditEvent{}
	for _, e := range r.audit {
		if f.APIID == "" || e.APIID == f.APIID {
			out = append(out, e)
		}
	}
	return out, nil
}

// mockOracle grants everything to admins and otherwise the roles found in
// the membership store.
type mockOracle struct {
	store  *store
	admins []string
	calls  int
}

func (o *mockOracle) Check(_ context.Context, ec domain.ExecutionContext, p domain.Permission, ref domain.Reference, acts ...domain.Act) (bool, error) {
	o.calls++
	if ec.Anonymous() {
		return false, nil
	}
	if slices.Contains(o.admins, ec.Principal) {
		return true, nil
	}
	if ref.Type == domain.ReferenceEnvironment {
		role, _ := domain.FindRole(domain.ReferenceEnvironment, domain.RoleUser)
		return role.Grants(p, acts...), nil
	}

	o.store.mu.Lock()
	m, ok := o.store.memberships[ref][ec.Principal]
	o.store.mu.Unlock()
	if !ok {
		return false, nil
	}
	role, ok := domain.FindRole(ref.Type, m.Role)
	return ok && role.Grants(p, acts...), nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *mockPublisher) names() []domain.EventName {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EventName, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Name)
	}
	return out
}

type mockCache struct {
	invalidated []string
}

func (m *mockCache) Invalidate(principal string) {
	m.invalidated = append(m.invalidated, principal)
}

type mockMetrics struct {
	applied, rejected, preconditions int
}

func (m *mockMetrics) TransitionApplied(domain.Kind, domain.Action)  { m.applied++ }
func (m *mockMetrics) TransitionRejected(domain.Kind, domain.Action) { m.rejected++ }
func (m *mockMetrics) PreconditionFailed(domain.Kind)                { m.preconditions++ }

var errPublish = errors.New("broker unavailable")

// --- Fixture ---

const (
	admin = "admin"
	alice = "alice"
	bob   = "bob"
)

type fixture struct {
	store     *store
	oracle    *mockOracle
	publisher *mockPublisher
	cache     *mockCache
	metrics   *mockMetrics
	svc       *app.Services
}

func newFixture(opts app.Options) *fixture {
	st := newStore()
	f := &fixture{
		store:     st,
		oracle:    &mockOracle{store: st, admins: []string{admin}},
		publisher: &mockPublisher{},
		cache:     &mockCache{},
		metrics:   &mockMetrics{},
	}
	f.svc = app.New(app.Deps{
		APIs:          apiRepo{st},
		Plans:         planRepo{st},
		Subscriptions: subscriptionRepo{st},
		Applications:  applicationRepo{st},
		Memberships:   membershipRepo{st},
		Pages:         pageRepo{st},
		Alerts:        alertRepo{st},
		Audit:         auditRepo{st},
		Oracle:        f.oracle,
		Validator:     fsm.New(),
		Publisher:     f.publisher,
		Metrics:       f.metrics,
		Cache:         f.cache,
	}, opts)
	return f
}

func ec(principal string) domain.ExecutionContext {
	return domain.ExecutionContext{OrganizationID: "org", EnvironmentID: "env", Principal: principal}
}
