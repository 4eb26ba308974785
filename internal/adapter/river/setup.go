package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// Migrate creates or upgrades River's tables. They live next to the
// goose-managed schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrator, err := rivermigrate.New(riversqlite.New(db), nil)
	if err != nil {
		return fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("running river migrations: %w", err)
	}
	return nil
}

// Setup runs River's migrations and creates a client whose event worker
// appends to audit. The caller starts and stops the client.
func Setup(ctx context.Context, db *sql.DB, audit domain.AuditRepository, maxWorkers int) (*Client, error) {
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewEventWorker(audit))

	if maxWorkers < 1 {
		maxWorkers = 1
	}
	client, err := river.NewClient(riversqlite.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}
