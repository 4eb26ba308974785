package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// ApplicationService orchestrates consumer applications.
type ApplicationService struct {
	*runner
	applications domain.ApplicationRepository
	memberships  domain.MembershipRepository
	closer       *closer
}

// NewApplicationInput is the payload of an application creation.
type NewApplicationInput struct {
	Name        string                 `json:"name" validate:"required,max=128"`
	Description string                 `json:"description,omitempty" validate:"max=1024"`
	Type        domain.ApplicationType `json:"type" validate:"oneof=SIMPLE BACKEND_TO_BACKEND WEB NATIVE"`
	ClientID    string                 `json:"client_id,omitempty" validate:"max=128"`
}

// ApplicationUpdate is the full replacement of an application's editable
// fields. The type of an application cannot change.
type ApplicationUpdate struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description,omitempty" validate:"max=1024"`
	ClientID    string `json:"client_id,omitempty" validate:"max=128"`
}

// ApplicationListQuery narrows an application listing.
type ApplicationListQuery struct {
	Status *domain.ApplicationStatus
	domain.Paging
}

// List returns every application for environment readers, otherwise the
// applications the caller is a member of.
func (s *ApplicationService) List(ctx context.Context, ec domain.ExecutionContext, q ApplicationListQuery) ([]domain.Application, error) {
	filter := domain.ApplicationFilter{Status: q.Status, Paging: q.Paging}

	all, err := s.can(ctx, ec, domain.PermEnvironmentApplication, environmentRef(ec), domain.Read)
	if err != nil {
		return nil, err
	}
	switch {
	case all:
		filter.All = true
	case ec.Anonymous():
		return []domain.Application{}, nil
	default:
		ids, err := memberReferences(ctx, s.memberships, ec.Principal, domain.ReferenceApplication)
		if err != nil {
			return nil, err
		}
		filter.IDs = ids
	}

	apps, err := s.applications.List(ctx, ec.EnvironmentID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	return apps, nil
}

// Create registers an application. The caller becomes its primary owner.
func (s *ApplicationService) Create(ctx context.Context, ec domain.ExecutionContext, in NewApplicationInput) (domain.Application, error) {
	if err := s.require(ctx, ec, domain.PermEnvironmentApplication, environmentRef(ec), domain.Create); err != nil {
		return domain.Application{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.Application{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Application{}, fmt.Errorf("generating application id: %w", err)
	}

	app := domain.NewApplication(id, ec.EnvironmentID, in.Name, in.Type)
	app.Description = in.Description
	app.ClientID = in.ClientID

	owner, err := primaryOwnership(ec, applicationRef(app.ID))
	if err != nil {
		return domain.Application{}, err
	}
	if err := s.applications.Create(ctx, app, owner); err != nil {
		return domain.Application{}, err
	}

	s.publish(ctx, s.event(ec, domain.EventCreated, domain.KindApplication, app))
	return app, nil
}

// Get returns an application.
func (s *ApplicationService) Get(ctx context.Context, ec domain.ExecutionContext, id string) (domain.Application, error) {
	if err := s.require(ctx, ec, domain.PermApplicationDefinition, applicationRef(id), domain.Read); err != nil {
		return domain.Application{}, err
	}
	return s.applications.GetByID(ctx, ec.EnvironmentID, id)
}

// Update replaces an application's editable fields.
func (s *ApplicationService) Update(ctx context.Context, ec domain.ExecutionContext, id, ifMatch string, in ApplicationUpdate) (domain.Application, error) {
	return runUpdate(ctx, s.runner, ec, updateOp[domain.Application]{
		kind:       domain.KindApplication,
		permission: domain.PermApplicationDefinition,
		ref:        applicationRef(id),
		ifMatch:    ifMatch,
		load:       s.loader(ec, id),
		check: func(app domain.Application) error {
			return terminalCheck(domain.ApplicationLifecycle, domain.State(app.Status), "Archived application can not be updated")
		},
		merge: func(_ context.Context, app domain.Application, now time.Time) (domain.Application, error) {
			if err := validateInput(in); err != nil {
				return domain.Application{}, err
			}
			app.Name = in.Name
			app.Description = in.Description
			app.ClientID = in.ClientID
			app.UpdatedAt = now
			return app, nil
		},
		save: s.applications.Update,
	})
}

// Delete archives an application and closes its subscriptions. Deleting an
// already archived application closes whatever the first attempt left open.
func (s *ApplicationService) Delete(ctx context.Context, ec domain.ExecutionContext, id, ifMatch string) (domain.Application, error) {
	cascade := func() error {
		return s.closer.closeSubscriptions(ctx, ec, domain.SubscriptionFilter{ApplicationID: id})
	}

	app, err := runTransition(ctx, s.runner, ec, transitionOp[domain.Application]{
		permission: domain.PermApplicationDefinition,
		ref:        applicationRef(id),
		acts:       []domain.Act{domain.Delete},
		ifMatch:    ifMatch,
		lifecycle:  domain.ApplicationLifecycle,
		action:     domain.ActionArchive,
		load:       s.loader(ec, id),
		state:      func(app domain.Application) domain.State { return domain.State(app.Status) },
		mutate: func(app domain.Application, dst domain.State, now time.Time) domain.Application {
			app.Status = domain.ApplicationStatus(dst)
			app.UpdatedAt = now
			return app
		},
		save: s.applications.Update,
	})
	if err != nil {
		return domain.Application{}, resume(err, domain.ApplicationLifecycle, cascade)
	}
	if err := cascade(); err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

func (s *ApplicationService) loader(ec domain.ExecutionContext, id string) func(context.Context) (domain.Application, error) {
	return func(ctx context.Context) (domain.Application, error) {
		return s.applications.GetByID(ctx, ec.EnvironmentID, id)
	}
}
