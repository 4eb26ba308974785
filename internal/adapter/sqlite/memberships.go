package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// MembershipRepository implements domain.MembershipRepository using SQLite.
type MembershipRepository struct {
	db *sql.DB
}

const membershipColumns = `id, member_id, reference_type, reference_id, role, created_at, updated_at`

// Save inserts the membership or replaces the role of an existing one for
// the same member and reference.
func (r *MembershipRepository) Save(ctx context.Context, m domain.Membership) error {
	return saveMembership(ctx, r.db, m)
}

// SaveAll saves every membership in one transaction: either all of them are
// stored or none is.
func (r *MembershipRepository) SaveAll(ctx context.Context, ms ...domain.Membership) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, m := range ms {
			if err := saveMembership(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveMembership(ctx context.Context, ex execer, m domain.Membership) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO memberships (`+membershipColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (reference_type, reference_id, member_id)
		 DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`,
		m.ID, m.MemberID, string(m.Reference.Type), m.Reference.ID, m.Role,
		toMillis(m.CreatedAt), toMillis(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving membership %s: %w", m.MemberID, err)
	}
	return nil
}

func (r *MembershipRepository) Get(ctx context.Context, ref domain.Reference, memberID string) (domain.Membership, error) {
	m, err := scanMembership(r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships
		 WHERE reference_type = ? AND reference_id = ? AND member_id = ?`,
		string(ref.Type), ref.ID, memberID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Membership{}, &domain.NotFoundError{Kind: domain.KindMembership, ID: memberID}
	}
	return m, err
}

func (r *MembershipRepository) ListByReference(ctx context.Context, ref domain.Reference) ([]domain.Membership, error) {
	return r.list(ctx,
		`SELECT `+membershipColumns+` FROM memberships
		 WHERE reference_type = ? AND reference_id = ? ORDER BY created_at, member_id`,
		string(ref.Type), ref.ID)
}

func (r *MembershipRepository) ListByMember(ctx context.Context, memberID string, refType domain.ReferenceType) ([]domain.Membership, error) {
	return r.list(ctx,
		`SELECT `+membershipColumns+` FROM memberships
		 WHERE member_id = ? AND reference_type = ? ORDER BY created_at, reference_id`,
		memberID, string(refType))
}

func (r *MembershipRepository) Delete(ctx context.Context, ref domain.Reference, memberID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE reference_type = ? AND reference_id = ? AND member_id = ?`,
		string(ref.Type), ref.ID, memberID,
	)
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}
	return deleteResult(result, domain.KindMembership, memberID)
}

func (r *MembershipRepository) list(ctx context.Context, query string, args ...any) ([]domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	defer rows.Close()

	members := []domain.Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanMembership(s scanner) (domain.Membership, error) {
	var (
		m                    domain.Membership
		refType              string
		createdAt, updatedAt int64
	)

	err := s.Scan(&m.ID, &m.MemberID, &refType, &m.Reference.ID, &m.Role, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Membership{}, err
		}
		return domain.Membership{}, fmt.Errorf("scanning membership: %w", err)
	}

	m.Reference.Type = domain.ReferenceType(refType)
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return m, nil
}
