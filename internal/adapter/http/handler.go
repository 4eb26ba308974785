// Package http exposes the application services as a huma REST API scoped
// to an organization and environment.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/conditional"

	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/domain"
	"github.com/neomorfeo/apiplane/internal/etag"
)

// Prefix scopes every resource route.
const Prefix = "/organizations/{orgId}/environments/{envId}"

// EnvScope carries the path scope and the caller of a request.
type EnvScope struct {
	OrgID     string `path:"orgId" doc:"Organization ID"`
	EnvID     string `path:"envId" doc:"Environment ID"`
	Principal string `header:"X-Principal" doc:"Authenticated principal, absent for anonymous callers"`
}

func (s *EnvScope) ec() domain.ExecutionContext {
	return domain.ExecutionContext{
		OrganizationID: s.OrgID,
		EnvironmentID:  s.EnvID,
		Principal:      s.Principal,
	}
}

// Precondition carries the optimistic concurrency token of a write.
type Precondition struct {
	IfMatch string `header:"If-Match" doc:"ETag the entity must still carry"`
}

// Versioned are the response headers of a single entity.
type Versioned struct {
	ETag         string    `header:"ETag"`
	LastModified time.Time `header:"Last-Modified"`
}

func versioned(m domain.Managed) Versioned {
	return Versioned{
		ETag:         etag.Quote(etag.Format(m.LastModified())),
		LastModified: m.LastModified(),
	}
}

// notModified answers conditional reads: 304 when If-None-Match matches,
// 412 when If-Match does not.
func notModified(p *conditional.Params, m domain.Managed) error {
	if !p.HasConditionalParams() {
		return nil
	}
	if err := p.PreconditionFailed(etag.Format(m.LastModified()), m.LastModified()); err != nil {
		return err
	}
	return nil
}

// Register adds every resource route to the Huma API.
func Register(api huma.API, svc *app.Services) {
	registerAPIs(api, svc.APIs)
	registerPlans(api, svc.Plans)
	registerSubscriptions(api, svc.Subscriptions)
	registerApplications(api, svc.Applications)
	registerMembers(api, svc.Members)
	registerPages(api, svc.Pages)
	registerAlerts(api, svc.Alerts)
	registerAnalytics(api, svc.Analytics)
}

// HealthOutput is the body of the liveness check.
type HealthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}

// RegisterHealth adds GET /healthz. ping reports whether the store is reachable.
func RegisterHealth(api huma.API, ping func(context.Context) error) {
	huma.Register(api, huma.Operation{
		OperationID: "healthz",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Liveness check",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
		if err := ping(ctx); err != nil {
			slog.ErrorContext(ctx, "health check failed", "error", err)
			return nil, huma.Error503ServiceUnavailable("database unavailable")
		}
		out := &HealthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	if errors.Is(err, domain.ErrPermissionDenied) {
		return huma.Error403Forbidden(err.Error())
	}
	if errors.Is(err, domain.ErrPreconditionFailed) {
		return huma.Error412PreconditionFailed("entity was modified since the supplied ETag")
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error400BadRequest(trErr.Error())
	}

	var malformed *domain.MalformedPreconditionError
	if errors.As(err, &malformed) {
		return huma.Error400BadRequest(malformed.Error())
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return huma.Error409Conflict(conflict.Error())
	}

	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		return huma.Error400BadRequest(invalid.Error(), &huma.ErrorDetail{
			Location: invalid.Field,
			Message:  invalid.Reason,
		})
	}

	slog.ErrorContext(ctx, "request failed", "error", err)
	return huma.Error500InternalServerError("internal server error")
}

func paging(limit, offset int) domain.Paging {
	return domain.Paging{Limit: limit, Offset: offset}
}
