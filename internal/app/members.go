package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// MemberService manages the members of APIs and applications. Every
// reference has exactly one PRIMARY_OWNER, changed only by a transfer.
type MemberService struct {
	*runner
	apis         domain.APIRepository
	applications domain.ApplicationRepository
	memberships  domain.MembershipRepository
	cache        domain.PermissionCache
}

// MemberInput adds a member or changes their role.
type MemberInput struct {
	MemberID string `json:"member" validate:"required,max=256"`
	Role     string `json:"role" validate:"required"`
}

// TransferInput hands primary ownership to another principal.
type TransferInput struct {
	MemberID string `json:"member" validate:"required,max=256"`
	// PreviousOwnerRole is given to the former primary owner. Defaults to OWNER.
	PreviousOwnerRole string `json:"previous_owner_role,omitempty"`
}

// List returns the members of a reference.
func (s *MemberService) List(ctx context.Context, ec domain.ExecutionContext, ref domain.Reference) ([]domain.Membership, error) {
	if err := s.access(ctx, ec, ref, domain.Read); err != nil {
		return nil, err
	}

	members, err := s.memberships.ListByReference(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return members, nil
}

// Save adds a member or changes the role of an existing one.
func (s *MemberService) Save(ctx context.Context, ec domain.ExecutionContext, ref domain.Reference, in MemberInput) (domain.Membership, error) {
	// Whether the member exists is only known after loading, so either act
	// admits the caller this far. The exact act is required below.
	if err := s.requireAny(ctx, ec, ref, domain.Create, domain.Update); err != nil {
		return domain.Membership{}, err
	}
	if err := s.access(ctx, ec, ref); err != nil {
		return domain.Membership{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.Membership{}, err
	}
	if err := assignableRole(ref.Type, in.Role); err != nil {
		return domain.Membership{}, err
	}

	existing, err := s.memberships.Get(ctx, ref, in.MemberID)
	found := err == nil
	if err != nil && !isNotFound(err) {
		return domain.Membership{}, fmt.Errorf("loading member: %w", err)
	}

	act := domain.Create
	if found {
		act = domain.Update
		if existing.Role == domain.RolePrimaryOwner {
			return domain.Membership{}, &domain.ValidationError{Field: "role", Reason: "the primary owner role can only change through an ownership transfer"}
		}
	}
	if err := s.require(ctx, ec, memberPermission(ref.Type), ref, act); err != nil {
		return domain.Membership{}, err
	}

	m := existing
	if !found {
		id, err := generateID()
		if err != nil {
			return domain.Membership{}, fmt.Errorf("generating membership id: %w", err)
		}
		m = domain.NewMembership(id, in.MemberID, ref, in.Role)
	} else {
		m.Role = in.Role
		m.UpdatedAt = domain.NextUpdatedAt(existing.UpdatedAt)
	}

	if err := s.memberships.Save(ctx, m); err != nil {
		return domain.Membership{}, fmt.Errorf("saving member: %w", err)
	}
	s.invalidate(m.MemberID)
	s.publish(ctx, s.memberEvent(ec, domain.EventMemberAdded, ref, m.MemberID))
	return m, nil
}

// Remove deletes a membership. The primary owner cannot be removed.
func (s *MemberService) Remove(ctx context.Context, ec domain.ExecutionContext, ref domain.Reference, memberID string) error {
	if err := s.access(ctx, ec, ref, domain.Delete); err != nil {
		return err
	}

	existing, err := s.memberships.Get(ctx, ref, memberID)
	if err != nil {
		return err
	}
	if existing.Role == domain.RolePrimaryOwner {
		return &domain.ValidationError{Field: "member", Reason: "the primary owner can not be removed"}
	}

	if err := s.memberships.Delete(ctx, ref, memberID); err != nil {
		return err
	}
	s.invalidate(memberID)
	s.publish(ctx, s.memberEvent(ec, domain.EventMemberRemove, ref, memberID))
	return nil
}

// TransferOwnership makes another principal primary owner. The previous
// owner keeps a membership with the requested role.
func (s *MemberService) TransferOwnership(ctx context.Context, ec domain.ExecutionContext, ref domain.Reference, in TransferInput) error {
	if err := s.access(ctx, ec, ref, domain.Update); err != nil {
		return err
	}
	if err := validateInput(in); err != nil {
		return err
	}
	if in.PreviousOwnerRole == "" {
		in.PreviousOwnerRole = domain.RoleOwner
	}
	if err := assignableRole(ref.Type, in.PreviousOwnerRole); err != nil {
		return err
	}

	members, err := s.memberships.ListByReference(ctx, ref)
	if err != nil {
		return fmt.Errorf("listing members: %w", err)
	}

	var current *domain.Membership
	var target *domain.Membership
	for i := range members {
		switch {
		case members[i].Role == domain.RolePrimaryOwner:
			current = &members[i]
		case members[i].MemberID == in.MemberID:
			target = &members[i]
		}
	}
	if current != nil && current.MemberID == in.MemberID {
		return &domain.ValidationError{Field: "member", Reason: "member is already the primary owner"}
	}

	var owner domain.Membership
	if target != nil {
		owner = *target
		owner.Role = domain.RolePrimaryOwner
		owner.UpdatedAt = domain.NextUpdatedAt(target.UpdatedAt)
	} else {
		id, err := generateID()
		if err != nil {
			return fmt.Errorf("generating membership id: %w", err)
		}
		owner = domain.NewMembership(id, in.MemberID, ref, domain.RolePrimaryOwner)
	}

	changes := []domain.Membership{owner}
	if current != nil {
		previous := *current
		previous.Role = in.PreviousOwnerRole
		previous.UpdatedAt = domain.NextUpdatedAt(current.UpdatedAt)
		changes = append([]domain.Membership{previous}, changes...)
	}
	if err := s.memberships.SaveAll(ctx, changes...); err != nil {
		return fmt.Errorf("transferring ownership: %w", err)
	}
	for _, m := range changes {
		s.invalidate(m.MemberID)
	}

	s.publish(ctx, s.memberEvent(ec, domain.EventMemberAdded, ref, owner.MemberID))
	return nil
}

// access checks that the reference exists in the caller's environment and,
// when acts are given, that the caller holds them on its member permission.
func (s *MemberService) access(ctx context.Context, ec domain.ExecutionContext, ref domain.Reference, acts ...domain.Act) error {
	if len(acts) > 0 {
		if err := s.require(ctx, ec, memberPermission(ref.Type), ref, acts...); err != nil {
			return err
		}
	}

	var err error
	switch ref.Type {
	case domain.ReferenceAPI:
		_, err = s.apis.GetByID(ctx, ec.EnvironmentID, ref.ID)
	case domain.ReferenceApplication:
		_, err = s.applications.GetByID(ctx, ec.EnvironmentID, ref.ID)
	default:
		err = &domain.ValidationError{Field: "reference", Reason: fmt.Sprintf("members are not supported on %s", ref.Type)}
	}
	return err
}

// requireAny fails unless the caller holds at least one of acts on the
// member permission of ref.
func (s *MemberService) requireAny(ctx context.Context, ec domain.ExecutionContext, ref domain.Reference, acts ...domain.Act) error {
	p := memberPermission(ref.Type)
	for _, act := range acts {
		ok, err := s.can(ctx, ec, p, ref, act)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return &domain.PermissionDeniedError{Permission: p, Acts: acts}
}

func (s *MemberService) invalidate(principal string) {
	if s.cache != nil {
		s.cache.Invalidate(principal)
	}
}

func (s *MemberService) memberEvent(ec domain.ExecutionContext, name domain.EventName, ref domain.Reference, memberID string) domain.Event {
	e := domain.Event{
		Name:          name,
		EnvironmentID: ec.EnvironmentID,
		Kind:          domain.KindMembership,
		EntityID:      memberID,
		Actor:         ec.Principal,
	}
	if ref.Type == domain.ReferenceAPI {
		e.APIID = ref.ID
	}
	return e
}

func memberPermission(refType domain.ReferenceType) domain.Permission {
	if refType == domain.ReferenceApplication {
		return domain.PermApplicationMember
	}
	return domain.PermAPIMember
}

// assignableRole accepts any built-in role of the scope except PRIMARY_OWNER.
func assignableRole(refType domain.ReferenceType, role string) error {
	if role == domain.RolePrimaryOwner {
		return &domain.ValidationError{Field: "role", Reason: "use an ownership transfer to assign the primary owner"}
	}
	if _, ok := domain.FindRole(refType, role); !ok {
		return &domain.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q for %s", role, refType)}
	}
	return nil
}
