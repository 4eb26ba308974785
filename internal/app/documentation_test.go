package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/domain"
)

func TestPages(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	api := mustCreateAPI(t, f, alice, "/payments")

	folder, err := f.svc.Pages.Create(ctx, ec(alice), api.ID, app.PageInput{Name: "Guides", Type: domain.PageFolder, Published: true})
	if err != nil {
		t.Fatalf("Create folder failed: %v", err)
	}
	page, err := f.svc.Pages.Create(ctx, ec(alice), api.ID, app.PageInput{Name: "Quickstart", Type: domain.PageMarkdown, ParentID: folder.ID})
	if err != nil {
		t.Fatalf("Create page failed: %v", err)
	}

	_, err = f.svc.Pages.Create(ctx, ec(alice), api.ID, app.PageInput{Name: "Nested", Type: domain.PageMarkdown, ParentID: page.ID})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("markdown parent: expected ValidationError, got %v", err)
	}

	if _, err := f.svc.APIs.Update(ctx, ec(alice), api.ID, "", app.APIUpdate{
		Name: api.Name, Version: api.Version, Visibility: domain.VisibilityPublic, Proxy: api.Proxy,
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	visible, err := f.svc.Pages.List(ctx, ec(bob), api.ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != folder.ID {
		t.Errorf("public reader sees %v, want the published folder only", visible)
	}
	if _, err := f.svc.Pages.Get(ctx, ec(bob), api.ID, page.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unpublished page: expected ErrNotFound, got %v", err)
	}

	if _, err := f.svc.Pages.Update(ctx, ec(alice), api.ID, page.ID, `"0"`, app.PageInput{Name: "x", Type: domain.PageMarkdown}); !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Errorf("stale update: expected ErrPreconditionFailed, got %v", err)
	}
	if err := f.svc.Pages.Delete(ctx, ec(alice), api.ID, page.ID, ""); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
}

func TestAlerts(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	api := mustCreateAPI(t, f, alice, "/payments")

	in := app.AlertInput{Name: "5xx", Severity: domain.SeverityCritical, Condition: "status >= 500", Enabled: true}
	if _, err := f.svc.Alerts.Create(ctx, ec(bob), api.ID, in); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("non member: expected ErrPermissionDenied, got %v", err)
	}

	alert, err := f.svc.Alerts.Create(ctx, ec(alice), api.ID, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	in.Enabled = false
	updated, err := f.svc.Alerts.Update(ctx, ec(alice), api.ID, alert.ID, "", in)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Enabled {
		t.Error("alert should be disabled")
	}

	alerts, err := f.svc.Alerts.List(ctx, ec(alice), api.ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Errorf("got %d alerts, want 1", len(alerts))
	}

	in.Severity = "FATAL"
	_, err = f.svc.Alerts.Update(ctx, ec(alice), api.ID, alert.ID, "", in)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("bad severity: expected ValidationError, got %v", err)
	}
}

func TestAnalytics(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	api := mustCreateAPI(t, f, alice, "/payments")
	application := mustCreateApplication(t, f, bob)
	mustSubscribe(t, f, bob, application.ID, mustPublishedPlan(t, f, api.ID, domain.ValidationAuto))

	counts, err := f.svc.Analytics.SubscriptionCounts(ctx, ec(alice), api.ID, "status")
	if err != nil {
		t.Fatalf("SubscriptionCounts failed: %v", err)
	}
	if len(counts) != 1 || counts[0].Key != string(domain.SubscriptionAccepted) || counts[0].Count != 1 {
		t.Errorf("counts = %v", counts)
	}

	_, err = f.svc.Analytics.SubscriptionCounts(ctx, ec(alice), api.ID, "api_key")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("unknown field: expected ValidationError, got %v", err)
	}

	if _, err := f.svc.Analytics.APICounts(ctx, ec(alice), "state"); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("environment counts as user: expected ErrPermissionDenied, got %v", err)
	}
	if _, err := f.svc.Analytics.APICounts(ctx, ec(admin), "state"); err != nil {
		t.Errorf("APICounts as admin failed: %v", err)
	}
}
