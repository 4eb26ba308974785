package river

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// EventWorker records published events in the audit trail.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
	audit domain.AuditRepository
}

// NewEventWorker creates a worker appending to audit.
func NewEventWorker(audit domain.AuditRepository) *EventWorker {
	return &EventWorker{audit: audit}
}

// Work processes a single event job. A failed append is retried by River.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.InfoContext(ctx, "processing event",
		"event", job.Args.Name,
		"kind", job.Args.EntityKind,
		"entity_id", job.Args.EntityID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)

	if err := w.audit.Append(ctx, job.Args.Event()); err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}
