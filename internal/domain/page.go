package domain

import "time"

// PageType is the content format of a documentation page.
type PageType string

const (
	PageMarkdown PageType = "MARKDOWN"
	PageSwagger  PageType = "SWAGGER"
	PageFolder   PageType = "FOLDER"
)

// Page is a documentation page of an API.
type Page struct {
	ID        string
	APIID     string
	ParentID  string
	Name      string
	Type      PageType
	Content   string
	Order     int
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PageFilter holds optional criteria for listing pages.
type PageFilter struct {
	APIID         string
	PublishedOnly bool
}
