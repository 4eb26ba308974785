package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// SubscriptionRepository implements domain.SubscriptionRepository using SQLite.
type SubscriptionRepository struct {
	db *sql.DB
}

const subscriptionColumns = `id, api_id, plan_id, application_id, status, request, reason, configuration,
	subscribed_by, processed_by, created_at, updated_at,
	processed_at, paused_at, closed_at, starting_at, ending_at`

func (r *SubscriptionRepository) Create(ctx context.Context, s domain.Subscription) error {
	configuration, err := encodeJSON(s.Configuration)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.APIID, s.PlanID, s.ApplicationID, string(s.Status), s.Request, s.Reason, configuration,
		s.SubscribedBy, s.ProcessedBy, toMillis(s.CreatedAt), toMillis(s.UpdatedAt),
		nullMillis(s.ProcessedAt), nullMillis(s.PausedAt), nullMillis(s.ClosedAt),
		nullMillis(s.StartingAt), nullMillis(s.EndingAt),
	)
	if err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (domain.Subscription, error) {
	s, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscription{}, &domain.NotFoundError{Kind: domain.KindSubscription, ID: id}
	}
	return s, err
}

func (r *SubscriptionRepository) List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE 1 = 1`
	var args []any

	if filter.APIID != "" {
		query += ` AND api_id = ?`
		args = append(args, filter.APIID)
	}
	if filter.PlanID != "" {
		query += ` AND plan_id = ?`
		args = append(args, filter.PlanID)
	}
	if filter.ApplicationID != "" {
		query += ` AND application_id = ?`
		args = append(args, filter.ApplicationID)
	}
	if len(filter.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(filter.Statuses)) + `)`
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}

	query += ` ORDER BY created_at DESC, id`
	query, args = appendPaging(query, args, filter.Paging)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []domain.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *SubscriptionRepository) Update(ctx context.Context, s domain.Subscription, expected time.Time) error {
	configuration, err := encodeJSON(s.Configuration)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = ?, request = ?, reason = ?, configuration = ?, processed_by = ?,
		 updated_at = ?, processed_at = ?, paused_at = ?, closed_at = ?, starting_at = ?, ending_at = ?
		 WHERE id = ? AND updated_at = ?`,
		string(s.Status), s.Request, s.Reason, configuration, s.ProcessedBy,
		toMillis(s.UpdatedAt), nullMillis(s.ProcessedAt), nullMillis(s.PausedAt), nullMillis(s.ClosedAt),
		nullMillis(s.StartingAt), nullMillis(s.EndingAt),
		s.ID, toMillis(expected),
	)
	if err != nil {
		return fmt.Errorf("updating subscription: %w", err)
	}
	return casResult(ctx, r.db, result, "subscriptions", domain.KindSubscription, s.ID)
}

// CountBy groups an API's subscriptions by status, plan or application.
func (r *SubscriptionRepository) CountBy(ctx context.Context, apiID, field string) ([]domain.Count, error) {
	return countBy(ctx, r.db, "subscriptions", "api_id", apiID, field, "status", "plan_id", "application_id")
}

func scanSubscription(sc scanner) (domain.Subscription, error) {
	var (
		s                               domain.Subscription
		status, configuration           string
		createdAt, updatedAt            int64
		processedAt, pausedAt, closedAt sql.NullInt64
		startingAt, endingAt            sql.NullInt64
	)

	err := sc.Scan(&s.ID, &s.APIID, &s.PlanID, &s.ApplicationID, &status, &s.Request, &s.Reason, &configuration,
		&s.SubscribedBy, &s.ProcessedBy, &createdAt, &updatedAt,
		&processedAt, &pausedAt, &closedAt, &startingAt, &endingAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Subscription{}, err
		}
		return domain.Subscription{}, fmt.Errorf("scanning subscription: %w", err)
	}

	s.Status = domain.SubscriptionStatus(status)
	s.CreatedAt = fromMillis(createdAt)
	s.UpdatedAt = fromMillis(updatedAt)
	s.ProcessedAt = timePtr(processedAt)
	s.PausedAt = timePtr(pausedAt)
	s.ClosedAt = timePtr(closedAt)
	s.StartingAt = timePtr(startingAt)
	s.EndingAt = timePtr(endingAt)

	if err := decodeJSON(configuration, &s.Configuration); err != nil {
		return domain.Subscription{}, err
	}
	return s, nil
}
