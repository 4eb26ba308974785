package domain

import "time"

// Managed is implemented by every entity carrying a concurrency token.
type Managed interface {
	EntityID() string
	// OwnerAPI is the API the entity belongs to, or "" for environment
	// level entities.
	OwnerAPI() string
	LastModified() time.Time
}

func (a API) EntityID() string        { return a.ID }
func (a API) OwnerAPI() string        { return a.ID }
func (a API) LastModified() time.Time { return a.UpdatedAt }

func (p Plan) EntityID() string        { return p.ID }
func (p Plan) OwnerAPI() string        { return p.APIID }
func (p Plan) LastModified() time.Time { return p.UpdatedAt }

func (s Subscription) EntityID() string        { return s.ID }
func (s Subscription) OwnerAPI() string        { return s.APIID }
func (s Subscription) LastModified() time.Time { return s.UpdatedAt }

func (a Application) EntityID() string        { return a.ID }
func (a Application) OwnerAPI() string        { return "" }
func (a Application) LastModified() time.Time { return a.UpdatedAt }

func (p Page) EntityID() string        { return p.ID }
func (p Page) OwnerAPI() string        { return p.APIID }
func (p Page) LastModified() time.Time { return p.UpdatedAt }

func (a AlertTrigger) EntityID() string        { return a.ID }
func (a AlertTrigger) OwnerAPI() string        { return a.APIID }
func (a AlertTrigger) LastModified() time.Time { return a.UpdatedAt }
