package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// PlanService orchestrates plan definition and publication.
type PlanService struct {
	*runner
	apis   domain.APIRepository
	plans  domain.PlanRepository
	closer *closer
}

// NewPlanInput is the payload of a plan creation.
type NewPlanInput struct {
	Name            string                `json:"name" validate:"required,max=64"`
	Description     string                `json:"description,omitempty" validate:"max=1024"`
	Security        domain.PlanSecurity   `json:"security" validate:"oneof=KEY_LESS API_KEY JWT OAUTH2"`
	Validation      domain.PlanValidation `json:"validation" validate:"oneof=AUTO MANUAL"`
	Order           int                   `json:"order,omitempty" validate:"gte=0"`
	Characteristics []string              `json:"characteristics,omitempty"`
}

// PlanUpdate is the full replacement of a plan's editable fields. The
// security type of a plan cannot change.
type PlanUpdate struct {
	Name            string                `json:"name" validate:"required,max=64"`
	Description     string                `json:"description,omitempty" validate:"max=1024"`
	Validation      domain.PlanValidation `json:"validation" validate:"oneof=AUTO MANUAL"`
	Order           int                   `json:"order,omitempty" validate:"gte=0"`
	Characteristics []string              `json:"characteristics,omitempty"`
}

// List returns the plans of an API. Callers without API_PLAN[R] only see
// the published plans of a PUBLIC API.
func (s *PlanService) List(ctx context.Context, ec domain.ExecutionContext, apiID string, status *domain.PlanStatus) ([]domain.Plan, error) {
	publicOnly, err := s.readAccess(ctx, ec, apiID)
	if err != nil {
		return nil, err
	}

	filter := domain.PlanFilter{APIID: apiID, Status: status}
	if publicOnly {
		if status != nil && *status != domain.PlanPublished {
			return []domain.Plan{}, nil
		}
		published := domain.PlanPublished
		filter.Status = &published
	}

	plans, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	return plans, nil
}

// Get returns one plan of an API.
func (s *PlanService) Get(ctx context.Context, ec domain.ExecutionContext, apiID, planID string) (domain.Plan, error) {
	publicOnly, err := s.readAccess(ctx, ec, apiID)
	if err != nil {
		return domain.Plan{}, err
	}

	plan, err := s.plans.GetByID(ctx, apiID, planID)
	if err != nil {
		return domain.Plan{}, err
	}
	if publicOnly && plan.Status != domain.PlanPublished {
		return domain.Plan{}, &domain.NotFoundError{Kind: domain.KindPlan, ID: planID}
	}
	return plan, nil
}

// readAccess reports whether the caller is limited to published plans.
func (s *PlanService) readAccess(ctx context.Context, ec domain.ExecutionContext, apiID string) (bool, error) {
	api, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID)
	if err != nil {
		return false, err
	}
	canRead, err := s.can(ctx, ec, domain.PermAPIPlan, apiRef(apiID), domain.Read)
	if err != nil {
		return false, err
	}
	if canRead {
		return false, nil
	}
	if api.Visibility == domain.VisibilityPublic {
		return true, nil
	}
	return false, &domain.PermissionDeniedError{Permission: domain.PermAPIPlan, Acts: []domain.Act{domain.Read}}
}

// Create adds a STAGING plan to an API.
func (s *PlanService) Create(ctx context.Context, ec domain.ExecutionContext, apiID string, in NewPlanInput) (domain.Plan, error) {
	if err := s.require(ctx, ec, domain.PermAPIPlan, apiRef(apiID), domain.Create); err != nil {
		return domain.Plan{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.Plan{}, err
	}

	api, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID)
	if err != nil {
		return domain.Plan{}, err
	}
	if err := terminalCheck(domain.APILifecycle, domain.State(api.State), "Deleted API can not receive new plans"); err != nil {
		return domain.Plan{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Plan{}, fmt.Errorf("generating plan id: %w", err)
	}

	plan := domain.NewPlan(id, apiID, in.Name, in.Security, in.Validation)
	plan.Description = in.Description
	plan.Order = in.Order
	plan.Characteristics = in.Characteristics

	if err := s.plans.Create(ctx, plan); err != nil {
		return domain.Plan{}, err
	}

	s.publish(ctx, s.event(ec, domain.EventCreated, domain.KindPlan, plan))
	return plan, nil
}

// Update replaces a plan's editable fields. Closed plans are read-only.
func (s *PlanService) Update(ctx context.Context, ec domain.ExecutionContext, apiID, planID, ifMatch string, in PlanUpdate) (domain.Plan, error) {
	return runUpdate(ctx, s.runner, ec, updateOp[domain.Plan]{
		kind:       domain.KindPlan,
		permission: domain.PermAPIPlan,
		ref:        apiRef(apiID),
		ifMatch:    ifMatch,
		load:       s.loader(ec, apiID, planID),
		check: func(plan domain.Plan) error {
			return terminalCheck(domain.PlanLifecycle, domain.State(plan.Status), "Closed plan can not be updated")
		},
		merge: func(_ context.Context, plan domain.Plan, now time.Time) (domain.Plan, error) {
			if err := validateInput(in); err != nil {
				return domain.Plan{}, err
			}
			plan.Name = in.Name
			plan.Description = in.Description
			plan.Validation = in.Validation
			plan.Order = in.Order
			plan.Characteristics = in.Characteristics
			plan.UpdatedAt = now
			return plan, nil
		},
		save: s.plans.Update,
	})
}

// Publish makes a STAGING plan available for subscription.
func (s *PlanService) Publish(ctx context.Context, ec domain.ExecutionContext, apiID, planID, ifMatch string) (domain.Plan, error) {
	return s.transition(ctx, ec, apiID, planID, ifMatch, domain.ActionPublish)
}

// Deprecate stops new subscriptions to a published plan.
func (s *PlanService) Deprecate(ctx context.Context, ec domain.ExecutionContext, apiID, planID, ifMatch string) (domain.Plan, error) {
	return s.transition(ctx, ec, apiID, planID, ifMatch, domain.ActionDeprecate)
}

// Close closes a plan and every active subscription to it. Closing an
// already closed plan closes whatever the first attempt left open.
func (s *PlanService) Close(ctx context.Context, ec domain.ExecutionContext, apiID, planID, ifMatch string) (domain.Plan, error) {
	cascade := func() error {
		return s.closer.closeSubscriptions(ctx, ec, domain.SubscriptionFilter{APIID: apiID, PlanID: planID})
	}

	plan, err := s.transition(ctx, ec, apiID, planID, ifMatch, domain.ActionClose)
	if err != nil {
		return domain.Plan{}, resume(err, domain.PlanLifecycle, cascade)
	}
	if err := cascade(); err != nil {
		return domain.Plan{}, err
	}
	return plan, nil
}

func (s *PlanService) transition(ctx context.Context, ec domain.ExecutionContext, apiID, planID, ifMatch string, action domain.Action) (domain.Plan, error) {
	return runTransition(ctx, s.runner, ec, transitionOp[domain.Plan]{
		permission: domain.PermAPIPlan,
		ref:        apiRef(apiID),
		acts:       []domain.Act{domain.Update},
		ifMatch:    ifMatch,
		lifecycle:  domain.PlanLifecycle,
		action:     action,
		load:       s.loader(ec, apiID, planID),
		state:      func(p domain.Plan) domain.State { return domain.State(p.Status) },
		mutate:     movePlan,
		save:       s.plans.Update,
	})
}

// Delete removes a plan. Only STAGING plans, which never had subscribers,
// and CLOSED plans can be removed.
func (s *PlanService) Delete(ctx context.Context, ec domain.ExecutionContext, apiID, planID, ifMatch string) error {
	if err := s.require(ctx, ec, domain.PermAPIPlan, apiRef(apiID), domain.Delete); err != nil {
		return err
	}

	plan, err := s.loader(ec, apiID, planID)(ctx)
	if err != nil {
		return err
	}
	if err := s.precondition(domain.KindPlan, ifMatch, plan.UpdatedAt); err != nil {
		return err
	}
	if plan.Status != domain.PlanStaging && plan.Status != domain.PlanClosed {
		return &domain.TransitionError{
			Kind:    domain.KindPlan,
			Current: domain.State(plan.Status),
			Reason:  "Plan must be closed before being deleted",
		}
	}

	if err := s.plans.Delete(ctx, apiID, planID); err != nil {
		return err
	}

	e := s.event(ec, domain.EventDeleted, domain.KindPlan, plan)
	e.At = time.Now().UTC()
	s.publish(ctx, e)
	return nil
}

// loader fetches a plan of an API of the caller's environment.
func (s *PlanService) loader(ec domain.ExecutionContext, apiID, planID string) func(context.Context) (domain.Plan, error) {
	return func(ctx context.Context) (domain.Plan, error) {
		if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID); err != nil {
			return domain.Plan{}, err
		}
		return s.plans.GetByID(ctx, apiID, planID)
	}
}
