package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// PageService manages the documentation pages of an API.
type PageService struct {
	*runner
	apis  domain.APIRepository
	pages domain.PageRepository
}

// PageInput is the payload of a page creation or update.
type PageInput struct {
	Name      string          `json:"name" validate:"required,max=128"`
	Type      domain.PageType `json:"type" validate:"oneof=MARKDOWN SWAGGER FOLDER"`
	Content   string          `json:"content,omitempty"`
	ParentID  string          `json:"parent_id,omitempty"`
	Order     int             `json:"order,omitempty" validate:"gte=0"`
	Published bool            `json:"published,omitempty"`
}

// List returns the pages of an API. Callers without API_DOCUMENTATION[R]
// only see the published pages of a PUBLIC API.
func (s *PageService) List(ctx context.Context, ec domain.ExecutionContext, apiID string) ([]domain.Page, error) {
	publishedOnly, err := s.readAccess(ctx, ec, apiID)
	if err != nil {
		return nil, err
	}

	pages, err := s.pages.List(ctx, domain.PageFilter{APIID: apiID, PublishedOnly: publishedOnly})
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	return pages, nil
}

// Get returns one page of an API.
func (s *PageService) Get(ctx context.Context, ec domain.ExecutionContext, apiID, pageID string) (domain.Page, error) {
	publishedOnly, err := s.readAccess(ctx, ec, apiID)
	if err != nil {
		return domain.Page{}, err
	}

	page, err := s.pages.GetByID(ctx, apiID, pageID)
	if err != nil {
		return domain.Page{}, err
	}
	if publishedOnly && !page.Published {
		return domain.Page{}, &domain.NotFoundError{Kind: domain.KindPage, ID: pageID}
	}
	return page, nil
}

func (s *PageService) readAccess(ctx context.Context, ec domain.ExecutionContext, apiID string) (bool, error) {
	api, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID)
	if err != nil {
		return false, err
	}
	canRead, err := s.can(ctx, ec, domain.PermAPIDocumentation, apiRef(apiID), domain.Read)
	if err != nil {
		return false, err
	}
	if canRead {
		return false, nil
	}
	if api.Visibility == domain.VisibilityPublic {
		return true, nil
	}
	return false, &domain.PermissionDeniedError{Permission: domain.PermAPIDocumentation, Acts: []domain.Act{domain.Read}}
}

// Create adds a page to an API.
func (s *PageService) Create(ctx context.Context, ec domain.ExecutionContext, apiID string, in PageInput) (domain.Page, error) {
	if err := s.require(ctx, ec, domain.PermAPIDocumentation, apiRef(apiID), domain.Create); err != nil {
		return domain.Page{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.Page{}, err
	}
	if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID); err != nil {
		return domain.Page{}, err
	}
	if err := s.checkParent(ctx, apiID, "", in.ParentID); err != nil {
		return domain.Page{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Page{}, fmt.Errorf("generating page id: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	page := domain.Page{
		ID:        id,
		APIID:     apiID,
		ParentID:  in.ParentID,
		Name:      in.Name,
		Type:      in.Type,
		Content:   in.Content,
		Order:     in.Order,
		Published: in.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.pages.Create(ctx, page); err != nil {
		return domain.Page{}, err
	}

	s.publish(ctx, s.event(ec, domain.EventCreated, domain.KindPage, page))
	return page, nil
}

// Update replaces a page.
func (s *PageService) Update(ctx context.Context, ec domain.ExecutionContext, apiID, pageID, ifMatch string, in PageInput) (domain.Page, error) {
	return runUpdate(ctx, s.runner, ec, updateOp[domain.Page]{
		kind:       domain.KindPage,
		permission: domain.PermAPIDocumentation,
		ref:        apiRef(apiID),
		ifMatch:    ifMatch,
		load:       s.loader(ec, apiID, pageID),
		merge: func(ctx context.Context, page domain.Page, now time.Time) (domain.Page, error) {
			if err := validateInput(in); err != nil {
				return domain.Page{}, err
			}
			if err := s.checkParent(ctx, apiID, page.ID, in.ParentID); err != nil {
				return domain.Page{}, err
			}
			page.Name = in.Name
			page.Type = in.Type
			page.Content = in.Content
			page.ParentID = in.ParentID
			page.Order = in.Order
			page.Published = in.Published
			page.UpdatedAt = now
			return page, nil
		},
		save: s.pages.Update,
	})
}

// Delete removes a page.
func (s *PageService) Delete(ctx context.Context, ec domain.ExecutionContext, apiID, pageID, ifMatch string) error {
	if err := s.require(ctx, ec, domain.PermAPIDocumentation, apiRef(apiID), domain.Delete); err != nil {
		return err
	}
	page, err := s.loader(ec, apiID, pageID)(ctx)
	if err != nil {
		return err
	}
	if err := s.precondition(domain.KindPage, ifMatch, page.UpdatedAt); err != nil {
		return err
	}
	if err := s.pages.Delete(ctx, apiID, pageID); err != nil {
		return err
	}

	e := s.event(ec, domain.EventDeleted, domain.KindPage, page)
	e.At = time.Now().UTC()
	s.publish(ctx, e)
	return nil
}

// checkParent requires the parent, when set, to be a folder of the same API.
func (s *PageService) checkParent(ctx context.Context, apiID, pageID, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == pageID {
		return &domain.ValidationError{Field: "parent_id", Reason: "a page can not be its own parent"}
	}
	parent, err := s.pages.GetByID(ctx, apiID, parentID)
	if isNotFound(err) {
		return &domain.ValidationError{Field: "parent_id", Reason: "parent page does not exist"}
	}
	if err != nil {
		return fmt.Errorf("loading parent page: %w", err)
	}
	if parent.Type != domain.PageFolder {
		return &domain.ValidationError{Field: "parent_id", Reason: "parent page must be a folder"}
	}
	return nil
}

func (s *PageService) loader(ec domain.ExecutionContext, apiID, pageID string) func(context.Context) (domain.Page, error) {
	return func(ctx context.Context) (domain.Page, error) {
		if _, err := s.apis.GetByID(ctx, ec.EnvironmentID, apiID); err != nil {
			return domain.Page{}, err
		}
		return s.pages.GetByID(ctx, apiID, pageID)
	}
}
