package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/apiplane/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store owns the database connection and hands out one repository per
// entity. All repositories share the same *sql.DB.
type Store struct {
	db *sql.DB

	APIs          *APIRepository
	Plans         *PlanRepository
	Subscriptions *SubscriptionRepository
	Applications  *ApplicationRepository
	Memberships   *MembershipRepository
	Pages         *PageRepository
	Alerts        *AlertRepository
	Audit         *AuditRepository
}

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready store.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &Store{
		db:            db,
		APIs:          &APIRepository{db: db},
		Plans:         &PlanRepository{db: db},
		Subscriptions: &SubscriptionRepository{db: db},
		Applications:  &ApplicationRepository{db: db},
		Memberships:   &MembershipRepository{db: db},
		Pages:         &PageRepository{db: db},
		Alerts:        &AlertRepository{db: db},
		Audit:         &AuditRepository{db: db},
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate applies every pending schema migration.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// Timestamps are stored as unix milliseconds so that the value read back is
// exactly the value the concurrency token was derived from.

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding column: %w", err)
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decoding column: %w", err)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// appendPaging adds LIMIT/OFFSET clauses. SQLite requires a LIMIT before an
// OFFSET, so an offset without a limit uses LIMIT -1.
func appendPaging(query string, args []any, p domain.Paging) (string, []any) {
	switch {
	case p.Limit > 0:
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	case p.Offset > 0:
		query += ` LIMIT -1`
	}
	if p.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, p.Offset)
	}
	return query, args
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// casResult interprets the outcome of a compare-and-swap UPDATE. Zero rows
// affected means either the row is gone or its updated_at moved on.
func casResult(ctx context.Context, db *sql.DB, result sql.Result, table string, kind domain.Kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var one int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return fmt.Errorf("checking %s existence: %w", kind, err)
	}
	return domain.ErrPreconditionFailed
}

func deleteResult(result sql.Result, kind domain.Kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// countBy groups table rows by one of the allowed columns.
func countBy(ctx context.Context, db *sql.DB, table, scopeColumn, scope, field string, allowed ...string) ([]domain.Count, error) {
	ok := false
	for _, a := range allowed {
		if a == field {
			ok = true
			break
		}
	}
	if !ok {
		return nil, &domain.ValidationError{Field: "field", Reason: fmt.Sprintf("cannot aggregate on %q", field)}
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+field+`, COUNT(*) FROM `+table+` WHERE `+scopeColumn+` = ?
		 GROUP BY `+field+` ORDER BY COUNT(*) DESC, `+field, scope)
	if err != nil {
		return nil, fmt.Errorf("counting %s by %s: %w", table, field, err)
	}
	defer rows.Close()

	counts := []domain.Count{}
	for rows.Next() {
		var c domain.Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
