package app

import (
	"github.com/neomorfeo/apiplane/internal/domain"
	"github.com/neomorfeo/apiplane/internal/etag"
)

// Options tune service behavior.
type Options struct {
	// ReviewEnabled mandates an accepted review before an API can start.
	ReviewEnabled bool
	// StrictIfMatch rejects unparsable If-Match headers instead of ignoring them.
	StrictIfMatch bool
}

// Deps are the adapters the services orchestrate.
type Deps struct {
	APIs          domain.APIRepository
	Plans         domain.PlanRepository
	Subscriptions domain.SubscriptionRepository
	Applications  domain.ApplicationRepository
	Memberships   domain.MembershipRepository
	Pages         domain.PageRepository
	Alerts        domain.AlertRepository
	Audit         domain.AuditRepository

	Oracle    domain.PermissionOracle
	Validator domain.TransitionValidator
	Publisher domain.EventPublisher

	// Optional.
	Metrics domain.MetricsRecorder
	Cache   domain.PermissionCache
}

// Services groups every resource service.
type Services struct {
	APIs          *APIService
	Plans         *PlanService
	Subscriptions *SubscriptionService
	Applications  *ApplicationService
	Members       *MemberService
	Pages         *PageService
	Alerts        *AlertService
	Analytics     *AnalyticsService
}

// New wires the services around shared adapters.
func New(deps Deps, opts Options) *Services {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	r := &runner{
		oracle:    deps.Oracle,
		validator: deps.Validator,
		publisher: deps.Publisher,
		metrics:   metrics,
		guard:     etag.Guard{Strict: opts.StrictIfMatch},
	}

	closer := &closer{
		runner:        r,
		plans:         deps.Plans,
		subscriptions: deps.Subscriptions,
	}

	return &Services{
		APIs: &APIService{
			runner:        r,
			apis:          deps.APIs,
			memberships:   deps.Memberships,
			closer:        closer,
			reviewEnabled: opts.ReviewEnabled,
		},
		Plans: &PlanService{
			runner: r,
			apis:   deps.APIs,
			plans:  deps.Plans,
			closer: closer,
		},
		Subscriptions: &SubscriptionService{
			runner:        r,
			apis:          deps.APIs,
			plans:         deps.Plans,
			applications:  deps.Applications,
			subscriptions: deps.Subscriptions,
		},
		Applications: &ApplicationService{
			runner:       r,
			applications: deps.Applications,
			memberships:  deps.Memberships,
			closer:       closer,
		},
		Members: &MemberService{
			runner:       r,
			apis:         deps.APIs,
			applications: deps.Applications,
			memberships:  deps.Memberships,
			cache:        deps.Cache,
		},
		Pages: &PageService{
			runner: r,
			apis:   deps.APIs,
			pages:  deps.Pages,
		},
		Alerts: &AlertService{
			runner: r,
			apis:   deps.APIs,
			alerts: deps.Alerts,
		},
		Analytics: &AnalyticsService{
			runner:        r,
			apis:          deps.APIs,
			subscriptions: deps.Subscriptions,
			audit:         deps.Audit,
		},
	}
}
