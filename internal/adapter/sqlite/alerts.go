package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// AlertRepository implements domain.AlertRepository using SQLite.
type AlertRepository struct {
	db *sql.DB
}

const alertColumns = `id, api_id, name, description, severity, condition, enabled, created_at, updated_at`

func (r *AlertRepository) Create(ctx context.Context, a domain.AlertTrigger) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_triggers (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.APIID, a.Name, a.Description, string(a.Severity), a.Condition, a.Enabled,
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting alert trigger: %w", err)
	}
	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, apiID, id string) (domain.AlertTrigger, error) {
	a, err := scanAlert(r.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alert_triggers WHERE api_id = ? AND id = ?`, apiID, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AlertTrigger{}, &domain.NotFoundError{Kind: domain.KindAlert, ID: id}
	}
	return a, err
}

func (r *AlertRepository) List(ctx context.Context, apiID string) ([]domain.AlertTrigger, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alert_triggers WHERE api_id = ? ORDER BY name, id`, apiID)
	if err != nil {
		return nil, fmt.Errorf("listing alert triggers: %w", err)
	}
	defer rows.Close()

	alerts := []domain.AlertTrigger{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (r *AlertRepository) Update(ctx context.Context, a domain.AlertTrigger, expected time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE alert_triggers SET name = ?, description = ?, severity = ?, condition = ?, enabled = ?, updated_at = ?
		 WHERE api_id = ? AND id = ? AND updated_at = ?`,
		a.Name, a.Description, string(a.Severity), a.Condition, a.Enabled, toMillis(a.UpdatedAt),
		a.APIID, a.ID, toMillis(expected),
	)
	if err != nil {
		return fmt.Errorf("updating alert trigger: %w", err)
	}
	return casResult(ctx, r.db, result, "alert_triggers", domain.KindAlert, a.ID)
}

func (r *AlertRepository) Delete(ctx context.Context, apiID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alert_triggers WHERE api_id = ? AND id = ?`, apiID, id)
	if err != nil {
		return fmt.Errorf("deleting alert trigger: %w", err)
	}
	return deleteResult(result, domain.KindAlert, id)
}

func scanAlert(s scanner) (domain.AlertTrigger, error) {
	var (
		a                    domain.AlertTrigger
		severity             string
		createdAt, updatedAt int64
	)

	err := s.Scan(&a.ID, &a.APIID, &a.Name, &a.Description, &severity, &a.Condition, &a.Enabled,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AlertTrigger{}, err
		}
		return domain.AlertTrigger{}, fmt.Errorf("scanning alert trigger: %w", err)
	}

	a.Severity = domain.Severity(severity)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}
