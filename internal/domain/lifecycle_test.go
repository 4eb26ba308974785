package domain_test

import (
	"testing"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

func TestNewAPI(t *testing.T) {
	api := domain.NewAPI("a-1", "env-1", "Echo", "1.0")

	if api.State != domain.APIStateInitialized {
		t.Errorf("State = %q, want %q", api.State, domain.APIStateInitialized)
	}
	if api.Review != domain.ReviewDraft {
		t.Errorf("Review = %q, want %q", api.Review, domain.ReviewDraft)
	}
	if api.Visibility != domain.VisibilityPrivate {
		t.Errorf("Visibility = %q, want %q", api.Visibility, domain.VisibilityPrivate)
	}
	if api.UpdatedAt != api.CreatedAt {
		t.Errorf("UpdatedAt should equal CreatedAt on new API")
	}
}

func TestLifecycles_TerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	for kind, lc := range domain.Lifecycles {
		for _, terminal := range lc.Terminal {
			for _, tr := range lc.Transitions {
				if tr.Src == terminal {
					t.Errorf("%s: terminal state %q has transition %q", kind, terminal, tr.Action)
				}
			}
		}
	}
}

func TestLifecycles_DestinationsAreKnown(t *testing.T) {
	// Every destination must either be terminal or the source of another transition.
	for kind, lc := range domain.Lifecycles {
		for _, tr := range lc.Transitions {
			if lc.IsTerminal(tr.Dst) {
				continue
			}
			found := false
			for _, other := range lc.Transitions {
				if other.Src == tr.Dst {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("%s: destination %q of %q is a dead end", kind, tr.Dst, tr.Action)
			}
		}
	}
}

func TestSubscriptionLifecycle_ValidPaths(t *testing.T) {
	cases := []struct {
		action domain.Action
		src    domain.SubscriptionStatus
		dst    domain.SubscriptionStatus
	}{
		{domain.ActionAccept, domain.SubscriptionPending, domain.SubscriptionAccepted},
		{domain.ActionReject, domain.SubscriptionPending, domain.SubscriptionRejected},
		{domain.ActionPause, domain.SubscriptionAccepted, domain.SubscriptionPaused},
		{domain.ActionResume, domain.SubscriptionPaused, domain.SubscriptionAccepted},
		{domain.ActionClose, domain.SubscriptionPending, domain.SubscriptionClosed},
		{domain.ActionClose, domain.SubscriptionAccepted, domain.SubscriptionClosed},
		{domain.ActionClose, domain.SubscriptionPaused, domain.SubscriptionClosed},
	}

	for _, tc := range cases {
		dst, ok := domain.SubscriptionLifecycle.Lookup(tc.action, domain.State(tc.src))
		if !ok || dst != domain.State(tc.dst) {
			t.Errorf("Lookup(%q, %q) = %q, %v; want %q", tc.action, tc.src, dst, ok, tc.dst)
		}
	}
}

func TestPlanLifecycle_InvalidPaths(t *testing.T) {
	invalid := []struct {
		action domain.Action
		src    domain.PlanStatus
	}{
		{domain.ActionDeprecate, domain.PlanStaging},
		{domain.ActionPublish, domain.PlanDeprecated},
		{domain.ActionPublish, domain.PlanClosed},
		{domain.ActionClose, domain.PlanClosed},
	}

	for _, tc := range invalid {
		if _, ok := domain.PlanLifecycle.Lookup(tc.action, domain.State(tc.src)); ok {
			t.Errorf("unexpected transition: %q from %q should not exist", tc.action, tc.src)
		}
	}
}

func TestLifecycle_Reason(t *testing.T) {
	got := domain.APILifecycle.Reason(domain.ActionStop, domain.State(domain.APIStateStopped))
	if got != "API is already stopped" {
		t.Errorf("Reason = %q", got)
	}
	if got := domain.ApplicationLifecycle.Reason(domain.ActionArchive, "ACTIVE"); got != "" {
		t.Errorf("Reason = %q, want empty", got)
	}
}

func TestNextUpdatedAt_AlwaysAdvances(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)

	next := domain.NextUpdatedAt(future)
	if !next.After(future) {
		t.Errorf("NextUpdatedAt(%v) = %v, want strictly after", future, next)
	}
	if next.Sub(future) != time.Millisecond {
		t.Errorf("NextUpdatedAt advanced by %v, want 1ms", next.Sub(future))
	}

	past := time.Now().UTC().Add(-time.Hour)
	if next := domain.NextUpdatedAt(past); next.Nanosecond()%int(time.Millisecond) != 0 {
		t.Errorf("NextUpdatedAt should truncate to milliseconds, got %v", next)
	}
}

func TestAPI_WithoutSensitiveFields(t *testing.T) {
	api := domain.NewAPI("a-1", "env-1", "Echo", "1.0")
	api.Proxy = domain.Proxy{
		ContextPath: "/echo",
		Endpoints:   []domain.Endpoint{{Name: "default", Target: "http://10.0.0.1:8080"}},
	}
	api.Properties = map[string]string{"secret": "s3cr3t"}
	api.Resources = []domain.Resource{{Name: "cache", Type: "cache"}}
	api.Paths = []string{"/internal/**"}

	filtered := api.WithoutSensitiveFields()

	if filtered.Proxy.ContextPath != "/echo" {
		t.Errorf("ContextPath = %q, want %q", filtered.Proxy.ContextPath, "/echo")
	}
	if filtered.Proxy.Endpoints != nil || filtered.Properties != nil || filtered.Resources != nil || filtered.Paths != nil {
		t.Errorf("sensitive fields survived filtering: %+v", filtered)
	}
	if len(api.Proxy.Endpoints) != 1 {
		t.Error("filtering must not mutate the original")
	}
}

func TestRole_Grants(t *testing.T) {
	owner, ok := domain.FindRole(domain.ReferenceAPI, domain.RoleOwner)
	if !ok {
		t.Fatal("OWNER role missing")
	}
	if !owner.Grants(domain.PermAPIDefinition, domain.Read, domain.Update) {
		t.Error("OWNER should read and update the definition")
	}
	if owner.Grants(domain.PermAPIDefinition, domain.Delete) {
		t.Error("OWNER should not delete the API")
	}
	if _, ok := domain.FindRole(domain.ReferenceApplication, domain.RoleReviewer); ok {
		t.Error("REVIEWER is not an application role")
	}
}
