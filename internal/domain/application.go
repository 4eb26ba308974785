package domain

import "time"

// ApplicationStatus is the state of a consumer application.
type ApplicationStatus string

const (
	ApplicationActive   ApplicationStatus = "ACTIVE"
	ApplicationArchived ApplicationStatus = "ARCHIVED"
)

// ApplicationType describes how the application authenticates.
type ApplicationType string

const (
	ApplicationSimple           ApplicationType = "SIMPLE"
	ApplicationBackendToBackend ApplicationType = "BACKEND_TO_BACKEND"
	ApplicationWeb              ApplicationType = "WEB"
	ApplicationNative           ApplicationType = "NATIVE"
)

// Application is an API consumer.
type Application struct {
	ID            string
	EnvironmentID string
	Name          string
	Description   string
	Type          ApplicationType
	ClientID      string
	Status        ApplicationStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewApplication creates an ACTIVE application.
func NewApplication(id, environmentID, name string, typ ApplicationType) Application {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return Application{
		ID:            id,
		EnvironmentID: environmentID,
		Name:          name,
		Type:          typ,
		Status:        ApplicationActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ApplicationFilter holds optional criteria for listing applications.
type ApplicationFilter struct {
	Status *ApplicationStatus
	IDs    []string
	All    bool
	Paging
}
