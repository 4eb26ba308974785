package domain

import "time"

// Severity ranks alert triggers.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// AlertTrigger is an alert rule evaluated by the gateway for an API.
type AlertTrigger struct {
	ID          string
	APIID       string
	Name        string
	Description string
	Severity    Severity
	Condition   string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
