package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// AlertService manages the alert triggers of an API.
type AlertService struct {
	*runner
	apis   domain.APIRepository
	alerts domain.AlertRepository
}

// AlertInput is the payload of an alert trigger creation or update.
type AlertInput struct {
	Name        string          `json:"name" validate:"required,max=128"`
	Description string          `json:"description,omitempty" validate:"max=1024"`
	Severity    domain.Severity `json:"severity" validate:"oneof=INFO WARNING CRITICAL"`
	Condition   string          `json:"condition" validate:"required"`
	Enabled     bool            `json:"enabled"`
}

// List returns the alert triggers of an API.
func (s *AlertService) List(ctx context.Context, ec domain.ExecutionContext, apiID string) ([]domain.AlertTrigger, error) {
	if err := s.require(ctx, ec, domain.PermAPIAlert, apiRef(apiID), domain.Read); err != nil {
		return nil, err
	}
	if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID); err != nil {
		return nil, err
	}

	alerts, err := s.alerts.List(ctx, apiID)
	if err != nil {
		return nil, fmt.Errorf("listing alert triggers: %w", err)
	}
	return alerts, nil
}

// Get returns one alert trigger.
func (s *AlertService) Get(ctx context.Context, ec domain.ExecutionContext, apiID, alertID string) (domain.AlertTrigger, error) {
	if err := s.require(ctx, ec, domain.PermAPIAlert, apiRef(apiID), domain.Read); err != nil {
		return domain.AlertTrigger{}, err
	}
	return s.loader(ec, apiID, alertID)(ctx)
}

// Create adds an alert trigger to an API.
func (s *AlertService) Create(ctx context.Context, ec domain.ExecutionContext, apiID string, in AlertInput) (domain.AlertTrigger, error) {
	if err := s.require(ctx, ec, domain.PermAPIAlert, apiRef(apiID), domain.Create); err != nil {
		return domain.AlertTrigger{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.AlertTrigger{}, err
	}
	if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID); err != nil {
		return domain.AlertTrigger{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.AlertTrigger{}, fmt.Errorf("generating alert id: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	alert := domain.AlertTrigger{
		ID:          id,
		APIID:       apiID,
		Name:        in.Name,
		Description: in.Description,
		Severity:    in.Severity,
		Condition:   in.Condition,
		Enabled:     in.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return domain.AlertTrigger{}, err
	}

	s.publish(ctx, s.event(ec, domain.EventCreated, domain.KindAlert, alert))
	return alert, nil
}

// Update replaces an alert trigger.
func (s *AlertService) Update(ctx context.Context, ec domain.ExecutionContext, apiID, alertID, ifMatch string, in AlertInput) (domain.AlertTrigger, error) {
	return runUpdate(ctx, s.runner, ec, updateOp[domain.AlertTrigger]{
		kind:       domain.KindAlert,
		permission: domain.PermAPIAlert,
		ref:        apiRef(apiID),
		ifMatch:    ifMatch,
		load:       s.loader(ec, apiID, alertID),
		merge: func(_ context.Context, alert domain.AlertTrigger, now time.Time) (domain.AlertTrigger, error) {
			if err := validateInput(in); err != nil {
				return domain.AlertTrigger{}, err
			}
			alert.Name = in.Name
			alert.Description = in.Description
			alert.Severity = in.Severity
			alert.Condition = in.Condition
			alert.Enabled = in.Enabled
			alert.UpdatedAt = now
			return alert, nil
		},
		save: s.alerts.Update,
	})
}

// Delete removes an alert trigger.
func (s *AlertService) Delete(ctx context.Context, ec domain.ExecutionContext, apiID, alertID, ifMatch string) error {
	if err := s.require(ctx, ec, domain.PermAPIAlert, apiRef(apiID), domain.Delete); err != nil {
		return err
	}
	alert, err := s.loader(ec, apiID, alertID)(ctx)
	if err != nil {
		return err
	}
	if err := s.precondition(domain.KindAlert, ifMatch, alert.UpdatedAt); err != nil {
		return err
	}
	if err := s.alerts.Delete(ctx, apiID, alertID); err != nil {
		return err
	}

	e := s.event(ec, domain.EventDeleted, domain.KindAlert, alert)
	e.At = time.Now().UTC()
	s.publish(ctx, e)
	return nil
}

func (s *AlertService) loader(ec domain.ExecutionContext, apiID, alertID string) func(context.Context) (domain.AlertTrigger, error) {
	return func(ctx context.Context) (domain.AlertTrigger, error) {
		if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID); err != nil {
			return domain.AlertTrigger{}, err
		}
		return s.alerts.GetByID(ctx, apiID, alertID)
	}
}
