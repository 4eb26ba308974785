package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/domain"
)

func TestApplicationList(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	mine := mustCreateApplication(t, f, alice)
	mustCreateApplication(t, f, bob)

	got, err := f.svc.Applications.List(ctx, ec(alice), app.ApplicationListQuery{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Errorf("alice sees %v, want only her application", got)
	}

	all, err := f.svc.Applications.List(ctx, ec(admin), app.ApplicationListQuery{})
	if err != nil {
		t.Fatalf("List as admin failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("admin sees %d applications, want 2", len(all))
	}

	none, err := f.svc.Applications.List(ctx, ec(""), app.ApplicationListQuery{})
	if err != nil {
		t.Fatalf("List as anonymous failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("anonymous sees %d applications, want 0", len(none))
	}
}

func TestApplicationDelete_ClosesSubscriptions(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	api := mustCreateAPI(t, f, alice, "/payments")
	plan := mustPublishedPlan(t, f, api.ID, domain.ValidationManual)
	application := mustCreateApplication(t, f, bob)
	sub := mustSubscribe(t, f, bob, application.ID, plan)

	archived, err := f.svc.Applications.Delete(ctx, ec(bob), application.ID, "")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if archived.Status != domain.ApplicationArchived {
		t.Errorf("Status = %q, want %q", archived.Status, domain.ApplicationArchived)
	}

	got, _ := subscriptionRepo{f.store}.GetByID(ctx, sub.ID)
	if got.Status != domain.SubscriptionClosed {
		t.Errorf("subscription Status = %q, want %q", got.Status, domain.SubscriptionClosed)
	}

	other := mustPublishedPlan(t, f, api.ID, domain.ValidationAuto)
	_, err = f.svc.Subscriptions.Subscribe(ctx, ec(bob), application.ID, app.SubscribeInput{APIID: api.ID, PlanID: other.ID})
	var terr *domain.TransitionError
	if !errors.As(err, &terr) {
		t.Errorf("archived application subscribing: expected TransitionError, got %v", err)
	}

	_, err = f.svc.Applications.Update(ctx, ec(bob), application.ID, "", app.ApplicationUpdate{Name: "Renamed"})
	if !errors.As(err, &terr) {
		t.Errorf("updating archived application: expected TransitionError, got %v", err)
	}
}

func TestApplicationUpdate_StaleIfMatch(t *testing.T) {
	f := newFixture(app.Options{})
	application := mustCreateApplication(t, f, alice)

	_, err := f.svc.Applications.Update(context.Background(), ec(alice), application.ID, `"1", "2"`, app.ApplicationUpdate{Name: "Renamed"})
	if !errors.Is(err, domain.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
}
