package http

import (
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// APIResponse is the representation of an API. Proxy endpoints, properties,
// resources and paths are omitted for callers who may not read the full
// definition.
type APIResponse struct {
	ID            string            `json:"id" doc:"Unique identifier"`
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Description   string            `json:"description,omitempty"`
	Visibility    string            `json:"visibility" enum:"PUBLIC,PRIVATE"`
	State         string            `json:"state" enum:"INITIALIZED,STARTED,STOPPED,ARCHIVED"`
	WorkflowState string            `json:"workflow_state" enum:"DRAFT,IN_REVIEW,REQUEST_CHANGES,REVIEW_OK"`
	Proxy         domain.Proxy      `json:"proxy"`
	Properties    map[string]string `json:"properties,omitempty"`
	Resources     []domain.Resource `json:"resources,omitempty"`
	Paths         []string          `json:"paths,omitempty"`
	Labels        []string          `json:"labels,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toAPIResponse(a domain.API) APIResponse {
	return APIResponse{
		ID:            a.ID,
		Name:          a.Name,
		Version:       a.Version,
		Description:   a.Description,
		Visibility:    string(a.Visibility),
		State:         string(a.State),
		WorkflowState: string(a.Review),
		Proxy:         a.Proxy,
		Properties:    a.Properties,
		Resources:     a.Resources,
		Paths:         a.Paths,
		Labels:        a.Labels,
		Tags:          a.Tags,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// PlanResponse is the representation of a plan.
type PlanResponse struct {
	ID              string     `json:"id"`
	API             string     `json:"api"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Security        string     `json:"security"`
	Validation      string     `json:"validation"`
	Status          string     `json:"status"`
	Order           int        `json:"order"`
	Characteristics []string   `json:"characteristics,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	DeprecatedAt    *time.Time `json:"deprecated_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

func toPlanResponse(p domain.Plan) PlanResponse {
	return PlanResponse{
		ID:              p.ID,
		API:             p.APIID,
		Name:            p.Name,
		Description:     p.Description,
		Security:        string(p.Security),
		Validation:      string(p.Validation),
		Status:          string(p.Status),
		Order:           p.Order,
		Characteristics: p.Characteristics,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		PublishedAt:     p.PublishedAt,
		DeprecatedAt:    p.DeprecatedAt,
		ClosedAt:        p.ClosedAt,
	}
}

// SubscriptionResponse is the representation of a subscription.
type SubscriptionResponse struct {
	ID            string            `json:"id"`
	API           string            `json:"api"`
	Plan          string            `json:"plan"`
	Application   string            `json:"application"`
	Status        string            `json:"status"`
	Request       string            `json:"request,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Configuration map[string]string `json:"configuration,omitempty"`
	SubscribedBy  string            `json:"subscribed_by"`
	ProcessedBy   string            `json:"processed_by,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	ProcessedAt   *time.Time        `json:"processed_at,omitempty"`
	PausedAt      *time.Time        `json:"paused_at,omitempty"`
	ClosedAt      *time.Time        `json:"closed_at,omitempty"`
	StartingAt    *time.Time        `json:"starting_at,omitempty"`
	EndingAt      *time.Time        `json:"ending_at,omitempty"`
}

func toSubscriptionResponse(s domain.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:            s.ID,
		API:           s.APIID,
		Plan:          s.PlanID,
		Application:   s.ApplicationID,
		Status:        string(s.Status),
		Request:       s.Request,
		Reason:        s.Reason,
		Configuration: s.Configuration,
		SubscribedBy:  s.SubscribedBy,
		ProcessedBy:   s.ProcessedBy,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		ProcessedAt:   s.ProcessedAt,
		PausedAt:      s.PausedAt,
		ClosedAt:      s.ClosedAt,
		StartingAt:    s.StartingAt,
		EndingAt:      s.EndingAt,
	}
}

// ApplicationResponse is the representation of an application.
type ApplicationResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	ClientID    string    `json:"client_id,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toApplicationResponse(a domain.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Type:        string(a.Type),
		ClientID:    a.ClientID,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// MemberResponse is the representation of a membership.
type MemberResponse struct {
	ID        string    `json:"id"`
	Member    string    `json:"member"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toMemberResponse(m domain.Membership) MemberResponse {
	return MemberResponse{
		ID:        m.ID,
		Member:    m.MemberID,
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// PageResponse is the representation of a documentation page.
type PageResponse struct {
	ID        string    `json:"id"`
	API       string    `json:"api"`
	Parent    string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	Order     int       `json:"order"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPageResponse(p domain.Page) PageResponse {
	return PageResponse{
		ID:        p.ID,
		API:       p.APIID,
		Parent:    p.ParentID,
		Name:      p.Name,
		Type:      string(p.Type),
		Content:   p.Content,
		Order:     p.Order,
		Published: p.Published,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// AlertResponse is the representation of an alert trigger.
type AlertResponse struct {
	ID          string    `json:"id"`
	API         string    `json:"api"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Severity    string    `json:"severity"`
	Condition   string    `json:"condition"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAlertResponse(a domain.AlertTrigger) AlertResponse {
	return AlertResponse{
		ID:          a.ID,
		API:         a.APIID,
		Name:        a.Name,
		Description: a.Description,
		Severity:    string(a.Severity),
		Condition:   a.Condition,
		Enabled:     a.Enabled,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// CountResponse is one bucket of an aggregation.
type CountResponse struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func toCountResponse(c domain.Count) CountResponse {
	return CountResponse{Key: c.Key, Count: c.Count}
}

// AuditResponse is one entry of the audit trail.
type AuditResponse struct {
	ID       int64     `json:"id"`
	Event    string    `json:"event"`
	Kind     string    `json:"kind"`
	EntityID string    `json:"entity_id"`
	Actor    string    `json:"actor,omitempty"`
	Action   string    `json:"action,omitempty"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	At       time.Time `json:"at"`
}

func toAuditResponse(e domain.AuditEvent) AuditResponse {
	return AuditResponse{
		ID:       e.ID,
		Event:    string(e.Name),
		Kind:     string(e.Kind),
		EntityID: e.EntityID,
		Actor:    e.Actor,
		Action:   string(e.Action),
		From:     string(e.From),
		To:       string(e.To),
		At:       e.At,
	}
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}
