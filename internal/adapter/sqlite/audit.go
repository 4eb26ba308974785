package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// AuditRepository implements domain.AuditRepository using SQLite.
type AuditRepository struct {
	db *sql.DB
}

const auditColumns = `id, environment_id, kind, entity_id, api_id, name, actor, action, from_state, to_state, occurred_at`

func (r *AuditRepository) Append(ctx context.Context, e domain.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (environment_id, kind, entity_id, api_id, name, actor, action, from_state, to_state, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EnvironmentID, string(e.Kind), e.EntityID, e.APIID, string(e.Name), e.Actor,
		string(e.Action), string(e.From), string(e.To), toMillis(e.At),
	)
	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

// List returns audit events newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_events WHERE 1 = 1`
	var args []any

	if filter.EnvironmentID != "" {
		query += ` AND environment_id = ?`
		args = append(args, filter.EnvironmentID)
	}
	if filter.APIID != "" {
		query += ` AND api_id = ?`
		args = append(args, filter.APIID)
	}
	query += ` ORDER BY occurred_at DESC, id DESC`
	query, args = appendPaging(query, args, filter.Paging)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	events := []domain.AuditEvent{}
	for rows.Next() {
		var (
			e                                      domain.AuditEvent
			kind, name, action, fromState, toState string
			occurredAt                             int64
		)
		if err := rows.Scan(&e.ID, &e.EnvironmentID, &kind, &e.EntityID, &e.APIID, &name, &e.Actor,
			&action, &fromState, &toState, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		e.Kind = domain.Kind(kind)
		e.Name = domain.EventName(name)
		e.Action = domain.Action(action)
		e.From = domain.State(fromState)
		e.To = domain.State(toState)
		e.At = fromMillis(occurredAt)
		events = append(events, e)
	}
	return events, rows.Err()
}
