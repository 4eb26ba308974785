package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// ApplicationRepository implements domain.ApplicationRepository using SQLite.
type ApplicationRepository struct {
	db *sql.DB
}

const applicationColumns = `id, environment_id, name, description, type, client_id, status, created_at, updated_at`

// Create inserts the application together with its primary owner membership.
func (r *ApplicationRepository) Create(ctx context.Context, a domain.Application, owner domain.Membership) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertApplication(ctx, tx, a); err != nil {
			return err
		}
		return saveMembership(ctx, tx, owner)
	})
}

func insertApplication(ctx context.Context, ex execer, a domain.Application) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO applications (`+applicationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EnvironmentID, a.Name, a.Description, string(a.Type), a.ClientID,
		string(a.Status), toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return clientIDConflict(a)
		}
		return fmt.Errorf("inserting application: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, environmentID, id string) (domain.Application, error) {
	a, err := scanApplication(r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE environment_id = ? AND id = ?`,
		environmentID, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Application{}, &domain.NotFoundError{Kind: domain.KindApplication, ID: id}
	}
	return a, err
}

func (r *ApplicationRepository) List(ctx context.Context, environmentID string, filter domain.ApplicationFilter) ([]domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE environment_id = ?`
	args := []any{environmentID}

	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if !filter.All {
		if len(filter.IDs) == 0 {
			return []domain.Application{}, nil
		}
		query += ` AND id IN (` + placeholders(len(filter.IDs)) + `)`
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}

	query += ` ORDER BY name, id`
	query, args = appendPaging(query, args, filter.Paging)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	apps := []domain.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (r *ApplicationRepository) Update(ctx context.Context, a domain.Application, expected time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET name = ?, description = ?, type = ?, client_id = ?, status = ?, updated_at = ?
		 WHERE environment_id = ? AND id = ? AND updated_at = ?`,
		a.Name, a.Description, string(a.Type), a.ClientID, string(a.Status), toMillis(a.UpdatedAt),
		a.EnvironmentID, a.ID, toMillis(expected),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return clientIDConflict(a)
		}
		return fmt.Errorf("updating application: %w", err)
	}
	return casResult(ctx, r.db, result, "applications", domain.KindApplication, a.ID)
}

func clientIDConflict(a domain.Application) error {
	return &domain.ConflictError{
		Kind:    domain.KindApplication,
		Message: fmt.Sprintf("client id %q is already used", a.ClientID),
	}
}

func scanApplication(s scanner) (domain.Application, error) {
	var (
		a                    domain.Application
		typ, status          string
		createdAt, updatedAt int64
	)

	err := s.Scan(&a.ID, &a.EnvironmentID, &a.Name, &a.Description, &typ, &a.ClientID,
		&status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Application{}, err
		}
		return domain.Application{}, fmt.Errorf("scanning application: %w", err)
	}

	a.Type = domain.ApplicationType(typ)
	a.Status = domain.ApplicationStatus(status)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}
