package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// PageRepository implements domain.PageRepository using SQLite.
type PageRepository struct {
	db *sql.DB
}

const pageColumns = `id, api_id, parent_id, name, type, content, sort_order, published, created_at, updated_at`

func (r *PageRepository) Create(ctx context.Context, p domain.Page) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pages (`+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.APIID, p.ParentID, p.Name, string(p.Type), p.Content, p.Order, p.Published,
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting page: %w", err)
	}
	return nil
}

func (r *PageRepository) GetByID(ctx context.Context, apiID, id string) (domain.Page, error) {
	p, err := scanPage(r.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE api_id = ? AND id = ?`, apiID, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Page{}, &domain.NotFoundError{Kind: domain.KindPage, ID: id}
	}
	return p, err
}

func (r *PageRepository) List(ctx context.Context, filter domain.PageFilter) ([]domain.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE api_id = ?`
	if filter.PublishedOnly {
		query += ` AND published = 1`
	}
	query += ` ORDER BY sort_order, name`

	rows, err := r.db.QueryContext(ctx, query, filter.APIID)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	defer rows.Close()

	pages := []domain.Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (r *PageRepository) Update(ctx context.Context, p domain.Page, expected time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE pages SET parent_id = ?, name = ?, type = ?, content = ?, sort_order = ?, published = ?, updated_at = ?
		 WHERE api_id = ? AND id = ? AND updated_at = ?`,
		p.ParentID, p.Name, string(p.Type), p.Content, p.Order, p.Published, toMillis(p.UpdatedAt),
		p.APIID, p.ID, toMillis(expected),
	)
	if err != nil {
		return fmt.Errorf("updating page: %w", err)
	}
	return casResult(ctx, r.db, result, "pages", domain.KindPage, p.ID)
}

func (r *PageRepository) Delete(ctx context.Context, apiID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pages WHERE api_id = ? AND id = ?`, apiID, id)
	if err != nil {
		return fmt.Errorf("deleting page: %w", err)
	}
	return deleteResult(result, domain.KindPage, id)
}

func scanPage(s scanner) (domain.Page, error) {
	var (
		p                    domain.Page
		typ                  string
		createdAt, updatedAt int64
	)

	err := s.Scan(&p.ID, &p.APIID, &p.ParentID, &p.Name, &typ, &p.Content, &p.Order, &p.Published,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Page{}, err
		}
		return domain.Page{}, fmt.Errorf("scanning page: %w", err)
	}

	p.Type = domain.PageType(typ)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}
