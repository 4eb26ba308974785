package domain

import "time"

// PlanStatus is the publication state of a plan.
type PlanStatus string

const (
	PlanStaging    PlanStatus = "STAGING"
	PlanPublished  PlanStatus = "PUBLISHED"
	PlanDeprecated PlanStatus = "DEPRECATED"
	PlanClosed     PlanStatus = "CLOSED"
)

// PlanSecurity is the authentication a plan enforces on consumers.
type PlanSecurity string

const (
	SecurityKeyless PlanSecurity = "KEY_LESS"
	SecurityAPIKey  PlanSecurity = "API_KEY"
	SecurityJWT     PlanSecurity = "JWT"
	SecurityOAuth2  PlanSecurity = "OAUTH2"
)

// PlanValidation tells whether subscriptions need a manual approval.
type PlanValidation string

const (
	ValidationAuto   PlanValidation = "AUTO"
	ValidationManual PlanValidation = "MANUAL"
)

// Plan is a consumption offer attached to an API.
type Plan struct {
	ID              string
	APIID           string
	Name            string
	Description     string
	Security        PlanSecurity
	Validation      PlanValidation
	Status          PlanStatus
	Order           int
	Characteristics []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PublishedAt     *time.Time
	DeprecatedAt    *time.Time
	ClosedAt        *time.Time
}

// NewPlan creates a plan in the STAGING state.
func NewPlan(id, apiID, name string, security PlanSecurity, validation PlanValidation) Plan {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return Plan{
		ID:         id,
		APIID:      apiID,
		Name:       name,
		Security:   security,
		Validation: validation,
		Status:     PlanStaging,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Subscribable reports whether applications may subscribe to the plan.
func (p Plan) Subscribable() bool {
	return p.Status == PlanPublished && p.Security != SecurityKeyless
}

// PlanFilter holds optional criteria for listing plans.
type PlanFilter struct {
	APIID  string
	Status *PlanStatus
}
