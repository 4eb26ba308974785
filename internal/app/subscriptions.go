package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// SubscriptionService orchestrates subscriptions from both the API side
// (validation and status changes) and the application side (subscribe and
// unsubscribe).
type SubscriptionService struct {
	*runner
	apis          domain.APIRepository
	plans         domain.PlanRepository
	applications  domain.ApplicationRepository
	subscriptions domain.SubscriptionRepository
}

// SubscribeInput is the payload of a subscription request.
type SubscribeInput struct {
	APIID   string `json:"api" validate:"required"`
	PlanID  string `json:"plan" validate:"required"`
	Request string `json:"request,omitempty" validate:"max=1024"`
}

// SubscriptionUpdate replaces a subscription's configuration and validity.
type SubscriptionUpdate struct {
	Configuration map[string]string `json:"configuration,omitempty"`
	StartingAt    *time.Time        `json:"starting_at,omitempty"`
	EndingAt      *time.Time        `json:"ending_at,omitempty"`
}

// ProcessInput accepts or rejects a pending subscription.
type ProcessInput struct {
	Accepted   bool       `json:"accepted"`
	Reason     string     `json:"reason,omitempty" validate:"max=1024"`
	StartingAt *time.Time `json:"starting_at,omitempty"`
	EndingAt   *time.Time `json:"ending_at,omitempty"`
}

// SubscriptionListQuery narrows a subscription listing.
type SubscriptionListQuery struct {
	Statuses []domain.SubscriptionStatus
	domain.Paging
}

// ListForAPI returns the subscriptions of an API.
func (s *SubscriptionService) ListForAPI(ctx context.Context, ec domain.ExecutionContext, apiID string, q SubscriptionListQuery) ([]domain.Subscription, error) {
	if err := s.require(ctx, ec, domain.PermAPISubscription, apiRef(apiID), domain.Read); err != nil {
		return nil, err
	}
	if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID); err != nil {
		return nil, err
	}

	subs, err := s.subscriptions.List(ctx, domain.SubscriptionFilter{APIID: apiID, Statuses: q.Statuses, Paging: q.Paging})
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return subs, nil
}

// GetForAPI returns one subscription of an API.
func (s *SubscriptionService) GetForAPI(ctx context.Context, ec domain.ExecutionContext, apiID, subID string) (domain.Subscription, error) {
	if err := s.require(ctx, ec, domain.PermAPISubscription, apiRef(apiID), domain.Read); err != nil {
		return domain.Subscription{}, err
	}
	return s.apiLoader(ec, apiID, subID)(ctx)
}

// UpdateConfiguration replaces the configuration of a subscription that is
// neither closed nor rejected.
func (s *SubscriptionService) UpdateConfiguration(ctx context.Context, ec domain.ExecutionContext, apiID, subID, ifMatch string, in SubscriptionUpdate) (domain.Subscription, error) {
	return runUpdate(ctx, s.runner, ec, updateOp[domain.Subscription]{
		kind:       domain.KindSubscription,
		permission: domain.PermAPISubscription,
		ref:        apiRef(apiID),
		ifMatch:    ifMatch,
		load:       s.apiLoader(ec, apiID, subID),
		check: func(sub domain.Subscription) error {
			return terminalCheck(domain.SubscriptionLifecycle, domain.State(sub.Status),
				fmt.Sprintf("Subscription is %s and can not be updated", sub.Status))
		},
		merge: func(_ context.Context, sub domain.Subscription, now time.Time) (domain.Subscription, error) {
			if err := validateInput(in); err != nil {
				return domain.Subscription{}, err
			}
			sub.Configuration = in.Configuration
			if in.StartingAt != nil {
				sub.StartingAt = in.StartingAt
			}
			if in.EndingAt != nil {
				sub.EndingAt = in.EndingAt
			}
			if sub.StartingAt != nil && sub.EndingAt != nil && !sub.EndingAt.After(*sub.StartingAt) {
				return domain.Subscription{}, &domain.ValidationError{Field: "ending_at", Reason: "must be after starting_at"}
			}
			sub.UpdatedAt = now
			return sub, nil
		},
		save: s.subscriptions.Update,
	})
}

// Process accepts or rejects a PENDING subscription.
func (s *SubscriptionService) Process(ctx context.Context, ec domain.ExecutionContext, apiID, subID, ifMatch string, in ProcessInput) (domain.Subscription, error) {
	if err := validateInput(in); err != nil {
		return domain.Subscription{}, err
	}

	action := domain.ActionReject
	if in.Accepted {
		action = domain.ActionAccept
	}

	return runTransition(ctx, s.runner, ec, transitionOp[domain.Subscription]{
		permission: domain.PermAPISubscription,
		ref:        apiRef(apiID),
		acts:       []domain.Act{domain.Update},
		ifMatch:    ifMatch,
		lifecycle:  domain.SubscriptionLifecycle,
		action:     action,
		load:       s.apiLoader(ec, apiID, subID),
		state:      subscriptionState,
		mutate: func(sub domain.Subscription, dst domain.State, now time.Time) domain.Subscription {
			if in.StartingAt != nil {
				sub.StartingAt = in.StartingAt
			}
			if in.EndingAt != nil {
				sub.EndingAt = in.EndingAt
			}
			sub = moveSubscription(sub, dst, now)
			sub.Reason = in.Reason
			sub.ProcessedBy = ec.Principal
			sub.ProcessedAt = &now
			return sub
		},
		save: s.subscriptions.Update,
	})
}

// ChangeStatus pauses, resumes or closes a subscription. status is one of
// PAUSED, RESUMED or CLOSED.
func (s *SubscriptionService) ChangeStatus(ctx context.Context, ec domain.ExecutionContext, apiID, subID, ifMatch, status string) (domain.Subscription, error) {
	action, ok := domain.SubscriptionStatusAction[status]
	if !ok {
		return domain.Subscription{}, &domain.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("unknown status %q, expected PAUSED, RESUMED or CLOSED", status),
		}
	}

	return runTransition(ctx, s.runner, ec, transitionOp[domain.Subscription]{
		permission: domain.PermAPISubscription,
		ref:        apiRef(apiID),
		acts:       []domain.Act{domain.Update},
		ifMatch:    ifMatch,
		lifecycle:  domain.SubscriptionLifecycle,
		action:     action,
		load:       s.apiLoader(ec, apiID, subID),
		state:      subscriptionState,
		mutate:     moveSubscription,
		save:       s.subscriptions.Update,
	})
}

// Subscribe subscribes an application to a published plan. Plans with AUTO
// validation accept the subscription immediately.
func (s *SubscriptionService) Subscribe(ctx context.Context, ec domain.ExecutionContext, appID string, in SubscribeInput) (domain.Subscription, error) {
	if err := s.require(ctx, ec, domain.PermApplicationSubscription, applicationRef(appID), domain.Create); err != nil {
		return domain.Subscription{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.Subscription{}, err
	}

	app, err := s.applications.GetByID(ctx, ec.EnvironmentID, appID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if err := terminalCheck(domain.ApplicationLifecycle, domain.State(app.Status), "Archived application can not subscribe"); err != nil {
		return domain.Subscription{}, err
	}

	if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, in.APIID); err != nil {
		return domain.Subscription{}, err
	}
	plan, err := s.plans.GetByID(ctx, in.APIID, in.PlanID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if plan.Security == domain.SecurityKeyless {
		return domain.Subscription{}, &domain.ValidationError{Field: "plan", Reason: "key-less plans do not accept subscriptions"}
	}
	if plan.Status != domain.PlanPublished {
		return domain.Subscription{}, &domain.ValidationError{Field: "plan", Reason: fmt.Sprintf("plan is %s, only published plans accept subscriptions", plan.Status)}
	}

	existing, err := s.subscriptions.List(ctx, domain.SubscriptionFilter{
		PlanID:        plan.ID,
		ApplicationID: appID,
		Statuses:      activeStatuses,
	})
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("checking existing subscriptions: %w", err)
	}
	if len(existing) > 0 {
		return domain.Subscription{}, &domain.ConflictError{
			Kind:    domain.KindSubscription,
			Message: fmt.Sprintf("application %s already has an active subscription to plan %s", appID, plan.ID),
		}
	}

	id, err := generateID()
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("generating subscription id: %w", err)
	}
	sub := domain.NewSubscription(id, plan, appID, ec.Principal)
	sub.Request = in.Request

	if plan.Validation == domain.ValidationAuto {
		dst, err := s.apply(ctx, domain.SubscriptionLifecycle, subscriptionState(sub), domain.ActionAccept)
		if err != nil {
			return domain.Subscription{}, err
		}
		processedAt := sub.UpdatedAt
		sub = moveSubscription(sub, dst, processedAt)
		sub.ProcessedAt = &processedAt
	}

	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return domain.Subscription{}, err
	}

	s.publish(ctx, s.event(ec, domain.EventCreated, domain.KindSubscription, sub))
	return sub, nil
}

// ListForApplication returns the subscriptions of an application.
func (s *SubscriptionService) ListForApplication(ctx context.Context, ec domain.ExecutionContext, appID string, q SubscriptionListQuery) ([]domain.Subscription, error) {
	if err := s.require(ctx, ec, domain.PermApplicationSubscription, applicationRef(appID), domain.Read); err != nil {
		return nil, err
	}
	if _, err := s.applications.GetByID(ctx, ec.EnvironmentID, appID); err != nil {
		return nil, err
	}

	subs, err := s.subscriptions.List(ctx, domain.SubscriptionFilter{ApplicationID: appID, Statuses: q.Statuses, Paging: q.Paging})
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return subs, nil
}

// GetForApplication returns one subscription of an application.
func (s *SubscriptionService) GetForApplication(ctx context.Context, ec domain.ExecutionContext, appID, subID string) (domain.Subscription, error) {
	if err := s.require(ctx, ec, domain.PermApplicationSubscription, applicationRef(appID), domain.Read); err != nil {
		return domain.Subscription{}, err
	}
	return s.applicationLoader(ec, appID, subID)(ctx)
}

// Unsubscribe closes a subscription on behalf of its application.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, ec domain.ExecutionContext, appID, subID, ifMatch string) (domain.Subscription, error) {
	return runTransition(ctx, s.runner, ec, transitionOp[domain.Subscription]{
		permission: domain.PermApplicationSubscription,
		ref:        applicationRef(appID),
		acts:       []domain.Act{domain.Delete},
		ifMatch:    ifMatch,
		lifecycle:  domain.SubscriptionLifecycle,
		action:     domain.ActionClose,
		load:       s.applicationLoader(ec, appID, subID),
		state:      subscriptionState,
		mutate:     moveSubscription,
		save:       s.subscriptions.Update,
	})
}

func subscriptionState(sub domain.Subscription) domain.State {
	return domain.State(sub.Status)
}

// apiLoader fetches a subscription and checks it belongs to an API of the
// caller's environment.
func (s *SubscriptionService) apiLoader(ec domain.ExecutionContext, apiID, subID string) func(context.Context) (domain.Subscription, error) {
	return func(ctx context.Context) (domain.Subscription, error) {
		if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID); err != nil {
			return domain.Subscription{}, err
		}
		sub, err := s.subscriptions.GetByID(ctx, subID)
		if err != nil {
			return domain.Subscription{}, err
		}
		if sub.APIID != apiID {
			return domain.Subscription{}, &domain.NotFoundError{Kind: domain.KindSubscription, ID: subID}
		}
		return sub, nil
	}
}

// applicationLoader fetches a subscription and checks it belongs to an
// application of the caller's environment.
func (s *SubscriptionService) applicationLoader(ec domain.ExecutionContext, appID, subID string) func(context.Context) (domain.Subscription, error) {
	return func(ctx context.Context) (domain.Subscription, error) {
		if _, err := s.applications.GetByID(ctx, ec.EnvironmentID, appID); err != nil {
			return domain.Subscription{}, err
		}
		sub, err := s.subscriptions.GetByID(ctx, subID)
		if err != nil {
			return domain.Subscription{}, err
		}
		if sub.ApplicationID != appID {
			return domain.Subscription{}, &domain.NotFoundError{Kind: domain.KindSubscription, ID: subID}
		}
		return sub, nil
	}
}
