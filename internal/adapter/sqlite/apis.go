package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// APIRepository implements domain.APIRepository using SQLite.
type APIRepository struct {
	db *sql.DB
}

const apiColumns = `id, environment_id, name, version, description, visibility, state, review,
	proxy, properties, resources, paths, labels, tags, created_at, updated_at`

type apiColumnsJSON struct {
	proxy, properties, resources, paths, labels, tags string
}

func encodeAPI(a domain.API) (apiColumnsJSON, error) {
	var (
		c   apiColumnsJSON
		err error
	)
	if c.proxy, err = encodeJSON(a.Proxy); err != nil {
		return c, err
	}
	if c.properties, err = encodeJSON(a.Properties); err != nil {
		return c, err
	}
	if c.resources, err = encodeJSON(a.Resources); err != nil {
		return c, err
	}
	if c.paths, err = encodeJSON(a.Paths); err != nil {
		return c, err
	}
	if c.labels, err = encodeJSON(a.Labels); err != nil {
		return c, err
	}
	c.tags, err = encodeJSON(a.Tags)
	return c, err
}

// Create inserts the API together with its primary owner membership.
func (r *APIRepository) Create(ctx context.Context, a domain.API, owner domain.Membership) error {
	c, err := encodeAPI(a)
	if err != nil {
		return err
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertAPI(ctx, tx, a, c); err != nil {
			return err
		}
		return saveMembership(ctx, tx, owner)
	})
}

func insertAPI(ctx context.Context, ex execer, a domain.API, c apiColumnsJSON) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO apis (`+apiColumns+`, context_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EnvironmentID, a.Name, a.Version, a.Description,
		string(a.Visibility), string(a.State), string(a.Review),
		c.proxy, c.properties, c.resources, c.paths, c.labels, c.tags,
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt), a.Proxy.ContextPath,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return contextPathConflict(a)
		}
		return fmt.Errorf("inserting api: %w", err)
	}
	return nil
}

func (r *APIRepository) GetByID(ctx context.Context, environmentID, id string) (domain.API, error) {
	a, err := scanAPI(r.db.QueryRowContext(ctx,
		`SELECT `+apiColumns+` FROM apis WHERE environment_id = ? AND id = ?`,
		environmentID, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.API{}, &domain.NotFoundError{Kind: domain.KindAPI, ID: id}
	}
	return a, err
}

func (r *APIRepository) List(ctx context.Context, environmentID string, filter domain.APIFilter) ([]domain.API, error) {
	query := `SELECT ` + apiColumns + ` FROM apis WHERE environment_id = ?`
	args := []any{environmentID}

	if filter.State != nil {
		query += ` AND state = ?`
		args = append(args, string(*filter.State))
	}

	if !filter.All {
		// Visible set: public APIs (when requested) plus the explicit ids.
		var clauses []string
		if filter.PublicOnly {
			clauses = append(clauses, `visibility = ?`)
			args = append(args, string(domain.VisibilityPublic))
		}
		if len(filter.IDs) > 0 {
			clauses = append(clauses, `id IN (`+placeholders(len(filter.IDs))+`)`)
			for _, id := range filter.IDs {
				args = append(args, id)
			}
		}
		switch len(clauses) {
		case 0:
			return []domain.API{}, nil
		case 1:
			query += ` AND ` + clauses[0]
		default:
			query += ` AND (` + clauses[0] + ` OR ` + clauses[1] + `)`
		}
	}

	query += ` ORDER BY name, id`
	query, args = appendPaging(query, args, filter.Paging)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing apis: %w", err)
	}
	defer rows.Close()

	apis := []domain.API{}
	for rows.Next() {
		a, err := scanAPI(rows)
		if err != nil {
			return nil, err
		}
		apis = append(apis, a)
	}
	return apis, rows.Err()
}

func (r *APIRepository) Update(ctx context.Context, a domain.API, expected time.Time) error {
	c, err := encodeAPI(a)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE apis SET name = ?, version = ?, description = ?, visibility = ?, state = ?, review = ?,
		 context_path = ?, proxy = ?, properties = ?, resources = ?, paths = ?, labels = ?, tags = ?,
		 updated_at = ?
		 WHERE environment_id = ? AND id = ? AND updated_at = ?`,
		a.Name, a.Version, a.Description, string(a.Visibility), string(a.State), string(a.Review),
		a.Proxy.ContextPath, c.proxy, c.properties, c.resources, c.paths, c.labels, c.tags,
		toMillis(a.UpdatedAt),
		a.EnvironmentID, a.ID, toMillis(expected),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return contextPathConflict(a)
		}
		return fmt.Errorf("updating api: %w", err)
	}
	return casResult(ctx, r.db, result, "apis", domain.KindAPI, a.ID)
}

// CountBy groups the environment's APIs by state, visibility or review.
func (r *APIRepository) CountBy(ctx context.Context, environmentID, field string) ([]domain.Count, error) {
	return countBy(ctx, r.db, "apis", "environment_id", environmentID, field, "state", "visibility", "review")
}

func contextPathConflict(a domain.API) error {
	return &domain.ConflictError{
		Kind:    domain.KindAPI,
		Message: fmt.Sprintf("context path %q is already used", a.Proxy.ContextPath),
	}
}

func scanAPI(s scanner) (domain.API, error) {
	var (
		a                         domain.API
		visibility, state, review string
		c                         apiColumnsJSON
		createdAt, updatedAt      int64
	)

	err := s.Scan(&a.ID, &a.EnvironmentID, &a.Name, &a.Version, &a.Description,
		&visibility, &state, &review,
		&c.proxy, &c.properties, &c.resources, &c.paths, &c.labels, &c.tags,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.API{}, err
		}
		return domain.API{}, fmt.Errorf("scanning api: %w", err)
	}

	a.Visibility = domain.Visibility(visibility)
	a.State = domain.APIState(state)
	a.Review = domain.ReviewState(review)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)

	for _, col := range []struct {
		raw string
		dst any
	}{
		{c.proxy, &a.Proxy},
		{c.properties, &a.Properties},
		{c.resources, &a.Resources},
		{c.paths, &a.Paths},
		{c.labels, &a.Labels},
		{c.tags, &a.Tags},
	} {
		if err := decodeJSON(col.raw, col.dst); err != nil {
			return domain.API{}, err
		}
	}
	return a, nil
}
