package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// PlanRepository implements domain.PlanRepository using SQLite.
type PlanRepository struct {
	db *sql.DB
}

const planColumns = `id, api_id, name, description, security, validation, status, sort_order,
	characteristics, created_at, updated_at, published_at, deprecated_at, closed_at`

func (r *PlanRepository) Create(ctx context.Context, p domain.Plan) error {
	characteristics, err := encodeJSON(p.Characteristics)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO plans (`+planColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.APIID, p.Name, p.Description,
		string(p.Security), string(p.Validation), string(p.Status), p.Order,
		characteristics, toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
		nullMillis(p.PublishedAt), nullMillis(p.DeprecatedAt), nullMillis(p.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting plan: %w", err)
	}
	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, apiID, id string) (domain.Plan, error) {
	p, err := scanPlan(r.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE api_id = ? AND id = ?`, apiID, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Plan{}, &domain.NotFoundError{Kind: domain.KindPlan, ID: id}
	}
	return p, err
}

func (r *PlanRepository) List(ctx context.Context, filter domain.PlanFilter) ([]domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE api_id = ?`
	args := []any{filter.APIID}

	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	query += ` ORDER BY sort_order, created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	plans := []domain.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (r *PlanRepository) Update(ctx context.Context, p domain.Plan, expected time.Time) error {
	characteristics, err := encodeJSON(p.Characteristics)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE plans SET name = ?, description = ?, security = ?, validation = ?, status = ?,
		 sort_order = ?, characteristics = ?, updated_at = ?,
		 published_at = ?, deprecated_at = ?, closed_at = ?
		 WHERE api_id = ? AND id = ? AND updated_at = ?`,
		p.Name, p.Description, string(p.Security), string(p.Validation), string(p.Status),
		p.Order, characteristics, toMillis(p.UpdatedAt),
		nullMillis(p.PublishedAt), nullMillis(p.DeprecatedAt), nullMillis(p.ClosedAt),
		p.APIID, p.ID, toMillis(expected),
	)
	if err != nil {
		return fmt.Errorf("updating plan: %w", err)
	}
	return casResult(ctx, r.db, result, "plans", domain.KindPlan, p.ID)
}

func (r *PlanRepository) Delete(ctx context.Context, apiID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE api_id = ? AND id = ?`, apiID, id)
	if err != nil {
		return fmt.Errorf("deleting plan: %w", err)
	}
	return deleteResult(result, domain.KindPlan, id)
}

func scanPlan(s scanner) (domain.Plan, error) {
	var (
		p                                 domain.Plan
		security, validation, status      string
		characteristics                   string
		createdAt, updatedAt              int64
		publishedAt, deprecatedAt, closed sql.NullInt64
	)

	err := s.Scan(&p.ID, &p.APIID, &p.Name, &p.Description,
		&security, &validation, &status, &p.Order,
		&characteristics, &createdAt, &updatedAt,
		&publishedAt, &deprecatedAt, &closed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Plan{}, err
		}
		return domain.Plan{}, fmt.Errorf("scanning plan: %w", err)
	}

	p.Security = domain.PlanSecurity(security)
	p.Validation = domain.PlanValidation(validation)
	p.Status = domain.PlanStatus(status)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	p.PublishedAt = timePtr(publishedAt)
	p.DeprecatedAt = timePtr(deprecatedAt)
	p.ClosedAt = timePtr(closed)

	if err := decodeJSON(characteristics, &p.Characteristics); err != nil {
		return domain.Plan{}, err
	}
	return p, nil
}
