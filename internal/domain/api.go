package domain

import "time"

// APIState is the runtime state of an API.
type APIState string

const (
	APIStateInitialized APIState = "INITIALIZED"
	APIStateStarted     APIState = "STARTED"
	APIStateStopped     APIState = "STOPPED"
	APIStateArchived    APIState = "ARCHIVED"
)

// ReviewState is the review workflow state of an API.
type ReviewState string

const (
	ReviewDraft          ReviewState = "DRAFT"
	ReviewInReview       ReviewState = "IN_REVIEW"
	ReviewRequestChanges ReviewState = "REQUEST_CHANGES"
	ReviewOK             ReviewState = "REVIEW_OK"
)

// Visibility controls whether non-members may read an API.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// Endpoint is a backend target the gateway proxies to.
type Endpoint struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Weight int    `json:"weight,omitempty"`
}

// Proxy describes how the gateway exposes an API.
type Proxy struct {
	ContextPath string     `json:"context_path" validate:"required,startswith=/,excludesall= "`
	StripPath   bool       `json:"strip_path,omitempty"`
	Endpoints   []Endpoint `json:"endpoints,omitempty" validate:"dive"`
}

// Resource is a named gateway resource (cache, auth server, ...) attached to an API.
type Resource struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Enabled       bool              `json:"enabled"`
	Configuration map[string]string `json:"configuration,omitempty"`
}

// API is a managed API definition.
type API struct {
	ID            string
	EnvironmentID string
	Name          string
	Version       string
	Description   string
	Visibility    Visibility
	State         APIState
	Review        ReviewState
	Proxy         Proxy
	Properties    map[string]string
	Resources     []Resource
	Paths         []string
	Labels        []string
	Tags          []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAPI creates an API in the INITIALIZED state with a draft review.
func NewAPI(id, environmentID, name, version string) API {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return API{
		ID:            id,
		EnvironmentID: environmentID,
		Name:          name,
		Version:       version,
		Visibility:    VisibilityPrivate,
		State:         APIStateInitialized,
		Review:        ReviewDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// WithoutSensitiveFields returns a copy of the API stripped of the details
// reserved to callers allowed to read the full definition.
func (a API) WithoutSensitiveFields() API {
	a.Proxy = Proxy{ContextPath: a.Proxy.ContextPath}
	a.Properties = nil
	a.Resources = nil
	a.Paths = nil
	return a
}

// APIFilter holds optional criteria for listing APIs.
type APIFilter struct {
	State *APIState
	// IDs restricts the result to the given APIs, combined with PublicOnly by OR.
	IDs        []string
	PublicOnly bool
	// All disables the visibility restriction (admins).
	All bool
	Paging
}
