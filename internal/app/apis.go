package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// APIService orchestrates API definition, lifecycle and review operations.
type APIService struct {
	*runner
	apis          domain.APIRepository
	memberships   domain.MembershipRepository
	closer        *closer
	reviewEnabled bool
}

// NewAPIInput is the payload of an API creation.
type NewAPIInput struct {
	Name        string            `json:"name" validate:"required,max=128"`
	Version     string            `json:"version" validate:"required,max=32"`
	Description string            `json:"description,omitempty" validate:"max=1024"`
	ContextPath string            `json:"context_path" validate:"required,startswith=/,excludesall= "`
	Endpoints   []domain.Endpoint `json:"endpoints,omitempty" validate:"dive"`
}

// APIUpdate is the full replacement of an API's editable fields.
type APIUpdate struct {
	Name        string            `json:"name" validate:"required,max=128"`
	Version     string            `json:"version" validate:"required,max=32"`
	Description string            `json:"description,omitempty" validate:"max=1024"`
	Visibility  domain.Visibility `json:"visibility" validate:"oneof=PUBLIC PRIVATE"`
	Proxy       domain.Proxy      `json:"proxy"`
	Properties  map[string]string `json:"properties,omitempty"`
	Resources   []domain.Resource `json:"resources,omitempty"`
	Paths       []string          `json:"paths,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
}

// APIListQuery narrows an API listing.
type APIListQuery struct {
	State *domain.APIState
	domain.Paging
}

// Create registers an API. The caller becomes its primary owner.
func (s *APIService) Create(ctx context.Context, ec domain.ExecutionContext, in NewAPIInput) (domain.API, error) {
	if err := s.require(ctx, ec, domain.PermEnvironmentAPI, environmentRef(ec), domain.Create); err != nil {
		return domain.API{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.API{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.API{}, fmt.Errorf("generating api id: %w", err)
	}

	api := domain.NewAPI(id, ec.EnvironmentID, in.Name, in.Version)
	api.Description = in.Description
	api.Proxy = domain.Proxy{ContextPath: in.ContextPath, Endpoints: in.Endpoints}

	owner, err := primaryOwnership(ec, apiRef(api.ID))
	if err != nil {
		return domain.API{}, err
	}
	if err := s.apis.Create(ctx, api, owner); err != nil {
		return domain.API{}, err
	}

	s.publish(ctx, s.event(ec, domain.EventCreated, domain.KindAPI, api))
	return api, nil
}

// Get returns an API. Callers without API_DEFINITION[R] can only read
// PUBLIC APIs and receive them without sensitive fields.
func (s *APIService) Get(ctx context.Context, ec domain.ExecutionContext, id string) (domain.API, error) {
	api, err := s.apis.GetByID(ctx, ec.EnvironmentID, id)
	if err != nil {
		return domain.API{}, err
	}

	canRead, err := s.can(ctx, ec, domain.PermAPIDefinition, apiRef(id), domain.Read)
	if err != nil {
		return domain.API{}, err
	}
	if canRead {
		return api, nil
	}
	if api.Visibility != domain.VisibilityPublic {
		return domain.API{}, &domain.PermissionDeniedError{Permission: domain.PermAPIDefinition, Acts: []domain.Act{domain.Read}}
	}
	return api.WithoutSensitiveFields(), nil
}

// List returns the APIs visible to the caller: every API for environment
// readers, otherwise PUBLIC APIs plus those the caller is a member of.
func (s *APIService) List(ctx context.Context, ec domain.ExecutionContext, q APIListQuery) ([]domain.API, error) {
	filter := domain.APIFilter{State: q.State, Paging: q.Paging}

	all, err := s.can(ctx, ec, domain.PermEnvironmentAPI, environmentRef(ec), domain.Read)
	if err != nil {
		return nil, err
	}
	if all {
		filter.All = true
	} else {
		filter.PublicOnly = true
		if !ec.Anonymous() {
			ids, err := memberReferences(ctx, s.memberships, ec.Principal, domain.ReferenceAPI)
			if err != nil {
				return nil, err
			}
			filter.IDs = ids
		}
	}

	apis, err := s.apis.List(ctx, ec.EnvironmentID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing apis: %w", err)
	}
	if all {
		return apis, nil
	}

	for i, api := range apis {
		canRead, err := s.can(ctx, ec, domain.PermAPIDefinition, apiRef(api.ID), domain.Read)
		if err != nil {
			return nil, err
		}
		if !canRead {
			apis[i] = api.WithoutSensitiveFields()
		}
	}
	return apis, nil
}

// Update replaces an API's editable fields. When reviews are mandated, an
// accepted review is reset to DRAFT.
func (s *APIService) Update(ctx context.Context, ec domain.ExecutionContext, id, ifMatch string, in APIUpdate) (domain.API, error) {
	reset := false
	api, err := runUpdate(ctx, s.runner, ec, updateOp[domain.API]{
		kind:       domain.KindAPI,
		permission: domain.PermAPIDefinition,
		ref:        apiRef(id),
		ifMatch:    ifMatch,
		load:       s.loader(ec, id),
		check: func(api domain.API) error {
			return terminalCheck(domain.APILifecycle, domain.State(api.State), "Deleted API can not be updated")
		},
		merge: func(ctx context.Context, api domain.API, now time.Time) (domain.API, error) {
			if err := validateInput(in); err != nil {
				return domain.API{}, err
			}
			api.Name = in.Name
			api.Version = in.Version
			api.Description = in.Description
			api.Visibility = in.Visibility
			api.Proxy = in.Proxy
			api.Properties = in.Properties
			api.Resources = in.Resources
			api.Paths = in.Paths
			api.Labels = in.Labels
			api.Tags = in.Tags
			api.UpdatedAt = now

			if s.reviewEnabled && api.Review == domain.ReviewOK {
				review, err := s.apply(ctx, domain.ReviewLifecycle, domain.State(api.Review), domain.ActionResetReview)
				if err != nil {
					return domain.API{}, err
				}
				api.Review = domain.ReviewState(review)
				reset = true
			}
			return api, nil
		},
		save: s.apis.Update,
	})
	if err != nil {
		return domain.API{}, err
	}
	if reset {
		s.metrics.TransitionApplied(domain.KindReview, domain.ActionResetReview)
	}
	return api, nil
}

// Lifecycle starts or stops an API.
func (s *APIService) Lifecycle(ctx context.Context, ec domain.ExecutionContext, id, ifMatch string, action domain.Action) (domain.API, error) {
	if action != domain.ActionStart && action != domain.ActionStop {
		return domain.API{}, &domain.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", action)}
	}

	return runTransition(ctx, s.runner, ec, transitionOp[domain.API]{
		permission: domain.PermAPIDefinition,
		ref:        apiRef(id),
		acts:       []domain.Act{domain.Update},
		ifMatch:    ifMatch,
		lifecycle:  domain.APILifecycle,
		action:     action,
		load:       s.loader(ec, id),
		state:      func(api domain.API) domain.State { return domain.State(api.State) },
		guards: func(api domain.API) []domain.TransitionGuard {
			if !s.reviewEnabled {
				return nil
			}
			return []domain.TransitionGuard{reviewGuard(api)}
		},
		mutate: func(api domain.API, dst domain.State, now time.Time) domain.API {
			api.State = domain.APIState(dst)
			api.UpdatedAt = now
			return api
		},
		save: s.apis.Update,
	})
}

// reviewGuard refuses to start an API, whether new or stopped, whose review
// has not been accepted.
func reviewGuard(api domain.API) domain.TransitionGuard {
	return func(_ context.Context, action domain.Action, src, _ domain.State) error {
		if action == domain.ActionStart && api.Review != domain.ReviewOK {
			return &domain.TransitionError{
				Kind:    domain.KindAPI,
				Action:  action,
				Current: src,
				Reason:  "API can not be started without being reviewed",
			}
		}
		return nil
	}
}

// Review moves an API through the review workflow. Asking for a review needs
// API_DEFINITION[U]; accepting or rejecting needs API_REVIEWS[U].
func (s *APIService) Review(ctx context.Context, ec domain.ExecutionContext, id, ifMatch string, action domain.Action) (domain.API, error) {
	if !s.reviewEnabled {
		return domain.API{}, &domain.ValidationError{Reason: "API review workflow is not enabled"}
	}

	permission := domain.PermAPIReviews
	switch action {
	case domain.ActionAskForReview:
		permission = domain.PermAPIDefinition
	case domain.ActionAcceptReview, domain.ActionRejectReview:
	default:
		return domain.API{}, &domain.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown review action %q", action)}
	}

	return runTransition(ctx, s.runner, ec, transitionOp[domain.API]{
		permission: permission,
		ref:        apiRef(id),
		acts:       []domain.Act{domain.Update},
		ifMatch:    ifMatch,
		lifecycle:  domain.ReviewLifecycle,
		action:     action,
		load: func(ctx context.Context) (domain.API, error) {
			api, err := s.apis.GetByID(ctx, ec.EnvironmentID, id)
			if err != nil {
				return domain.API{}, err
			}
			if err := terminalCheck(domain.APILifecycle, domain.State(api.State), "Deleted API can not be reviewed"); err != nil {
				return domain.API{}, err
			}
			return api, nil
		},
		state: func(api domain.API) domain.State { return domain.State(api.Review) },
		mutate: func(api domain.API, dst domain.State, now time.Time) domain.API {
			api.Review = domain.ReviewState(dst)
			api.UpdatedAt = now
			return api
		},
		save: s.apis.Update,
	})
}

// Delete archives an API and closes its plans and subscriptions. Deleting an
// already archived API closes whatever the first attempt left open.
func (s *APIService) Delete(ctx context.Context, ec domain.ExecutionContext, id, ifMatch string) (domain.API, error) {
	cascade := func() error {
		if err := s.closer.closePlans(ctx, ec, id); err != nil {
			return err
		}
		return s.closer.closeSubscriptions(ctx, ec, domain.SubscriptionFilter{APIID: id})
	}

	api, err := runTransition(ctx, s.runner, ec, transitionOp[domain.API]{
		permission: domain.PermAPIDefinition,
		ref:        apiRef(id),
		acts:       []domain.Act{domain.Delete},
		ifMatch:    ifMatch,
		lifecycle:  domain.APILifecycle,
		action:     domain.ActionArchive,
		load:       s.loader(ec, id),
		state:      func(api domain.API) domain.State { return domain.State(api.State) },
		mutate: func(api domain.API, dst domain.State, now time.Time) domain.API {
			api.State = domain.APIState(dst)
			api.UpdatedAt = now
			return api
		},
		save: s.apis.Update,
	})
	if err != nil {
		return domain.API{}, resume(err, domain.APILifecycle, cascade)
	}
	if err := cascade(); err != nil {
		return domain.API{}, err
	}
	return api, nil
}

func (s *APIService) loader(ec domain.ExecutionContext, id string) func(context.Context) (domain.API, error) {
	return func(ctx context.Context) (domain.API, error) {
		return s.apis.GetByID(ctx, ec.EnvironmentID, id)
	}
}

// primaryOwnership makes the caller primary owner of ref.
func primaryOwnership(ec domain.ExecutionContext, ref domain.Reference) (domain.Membership, error) {
	id, err := generateID()
	if err != nil {
		return domain.Membership{}, fmt.Errorf("generating membership id: %w", err)
	}
	return domain.NewMembership(id, ec.Principal, ref, domain.RolePrimaryOwner), nil
}

// memberReferences returns the ids of the references of refType the
// principal is a member of.
func memberReferences(ctx context.Context, memberships domain.MembershipRepository, principal string, refType domain.ReferenceType) ([]string, error) {
	ms, err := memberships.ListByMember(ctx, principal, refType)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.Reference.ID)
	}
	return ids, nil
}
