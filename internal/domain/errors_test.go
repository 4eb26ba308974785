package domain_test

import (
	"errors"
	"testing"

	"github.com/neomorfeo/apiplane/internal/domain"
)

func TestNotFoundError_Error(t *testing.T) {
	err := &domain.NotFoundError{Kind: domain.KindAPI, ID: "a-1"}
	want := `api "a-1" not found`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
}

func TestPermissionDeniedError_Error(t *testing.T) {
	err := &domain.PermissionDeniedError{
		Permission: domain.PermAPIDefinition,
		Acts:       []domain.Act{domain.Read, domain.Update},
	}
	want := "permission API_DEFINITION[RU] required"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Error("PermissionDeniedError should match ErrPermissionDenied")
	}
}

func TestTransitionError_Error(t *testing.T) {
	err := &domain.TransitionError{
		Kind:    domain.KindPlan,
		Action:  domain.ActionPublish,
		Current: domain.State(domain.PlanClosed),
	}
	want := `action "PUBLISH" is not valid for plan in state "CLOSED"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err.Reason = "Closed plan can not be published"
	if got := err.Error(); got != err.Reason {
		t.Errorf("Error() = %q, want reason %q", got, err.Reason)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &domain.ValidationError{Field: "role", Reason: "unknown role"}
	if got := err.Error(); got != "role: unknown role" {
		t.Errorf("Error() = %q", got)
	}
}
