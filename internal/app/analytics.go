package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// AnalyticsService answers aggregate queries over subscriptions, APIs and
// the audit trail.
type AnalyticsService struct {
	*runner
	apis          domain.APIRepository
	subscriptions domain.SubscriptionRepository
	audit         domain.AuditRepository
}

// subscriptionFields maps query names to subscription columns.
var subscriptionFields = map[string]string{
	"status":      "status",
	"plan":        "plan_id",
	"application": "application_id",
}

// SubscriptionCounts groups an API's subscriptions by status, plan or
// application.
func (s *AnalyticsService) SubscriptionCounts(ctx context.Context, ec domain.ExecutionContext, apiID, field string) ([]domain.Count, error) {
	if err := s.require(ctx, ec, domain.PermAPIAnalytics, apiRef(apiID), domain.Read); err != nil {
		return nil, err
	}
	column, ok := subscriptionFields[field]
	if !ok {
		return nil, &domain.ValidationError{Field: "field", Reason: fmt.Sprintf("unknown field %q, expected status, plan or application", field)}
	}
	if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID); err != nil {
		return nil, err
	}
	return s.subscriptions.CountBy(ctx, apiID, column)
}

// APICounts groups the environment's APIs by state, visibility or review.
func (s *AnalyticsService) APICounts(ctx context.Context, ec domain.ExecutionContext, field string) ([]domain.Count, error) {
	if err := s.require(ctx, ec, domain.PermEnvironmentAnalytics, environmentRef(ec), domain.Read); err != nil {
		return nil, err
	}
	switch field {
	case "state", "visibility", "review":
	default:
		return nil, &domain.ValidationError{Field: "field", Reason: fmt.Sprintf("unknown field %q, expected state, visibility or review", field)}
	}
	return s.apis.CountBy(ctx, ec.EnvironmentID, field)
}

// Audit returns an API's audit trail, newest first.
func (s *AnalyticsService) Audit(ctx context.Context, ec domain.ExecutionContext, apiID string, paging domain.Paging) ([]domain.AuditEvent, error) {
	if err := s.require(ctx, ec, domain.PermAPIAudit, apiRef(apiID), domain.Read); err != nil {
		return nil, err
	}
	if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID); err != nil {
		return nil, err
	}

	events, err := s.audit.List(ctx, domain.AuditFilter{EnvironmentID: ec.EnvironmentID, APIID: apiID, Paging: paging})
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	return events, nil
}
