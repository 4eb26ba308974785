package app_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/domain"
)

func TestMemberSave(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	api := mustCreateAPI(t, f, alice, "/payments")
	ref := domain.Reference{Type: domain.ReferenceAPI, ID: api.ID}

	added, err := f.svc.Members.Save(ctx, ec(alice), ref, app.MemberInput{MemberID: bob, Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if added.Role != domain.RoleUser {
		t.Errorf("Role = %q, want %q", added.Role, domain.RoleUser)
	}

	// bob now reads the private API.
	if _, err := f.svc.APIs.Get(ctx, ec(bob), api.ID); err != nil {
		t.Errorf("member Get failed: %v", err)
	}

	changed, err := f.svc.Members.Save(ctx, ec(alice), ref, app.MemberInput{MemberID: bob, Role: domain.RoleOwner})
	if err != nil {
		t.Fatalf("role change failed: %v", err)
	}
	if changed.ID != added.ID || !changed.UpdatedAt.After(added.UpdatedAt) {
		t.Errorf("role change should update the existing membership, got %+v", changed)
	}

	if !slices.Equal(f.cache.invalidated, []string{bob, bob}) {
		t.Errorf("invalidated = %v", f.cache.invalidated)
	}
}

func TestMemberSave_Rejected(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	api := mustCreateAPI(t, f, alice, "/payments")
	ref := domain.Reference{Type: domain.ReferenceAPI, ID: api.ID}

	tests := []struct {
		name      string
		principal string
		in        app.MemberInput
		wantErr   error
	}{
		{"primary owner role", alice, app.MemberInput{MemberID: bob, Role: domain.RolePrimaryOwner}, &domain.ValidationError{}},
		{"unknown role", alice, app.MemberInput{MemberID: bob, Role: "JANITOR"}, &domain.ValidationError{}},
		{"application role on api", alice, app.MemberInput{MemberID: bob, Role: domain.RoleAdmin}, &domain.ValidationError{}},
		{"re-role primary owner", admin, app.MemberInput{MemberID: alice, Role: domain.RoleUser}, &domain.ValidationError{}},
		{"non member", bob, app.MemberInput{MemberID: bob, Role: domain.RoleOwner}, domain.ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Members.Save(ctx, ec(tt.principal), ref, tt.in)
			var verr *domain.ValidationError
			switch tt.wantErr.(type) {
			case *domain.ValidationError:
				if !errors.As(err, &verr) {
					t.Errorf("expected ValidationError, got %v", err)
				}
			default:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			}
		})
	}
}

func TestMemberRemove_PrimaryOwner(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	api := mustCreateAPI(t, f, alice, "/payments")
	ref := domain.Reference{Type: domain.ReferenceAPI, ID: api.ID}

	err := f.svc.Members.Remove(ctx, ec(alice), ref, alice)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if _, err := f.svc.Members.Save(ctx, ec(alice), ref, app.MemberInput{MemberID: bob, Role: domain.RoleUser}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := f.svc.Members.Remove(ctx, ec(alice), ref, bob); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := f.svc.APIs.Get(ctx, ec(bob), api.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("removed member: expected ErrPermissionDenied, got %v", err)
	}
}

func TestMemberTransferOwnership(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	application := mustCreateApplication(t, f, alice)
	ref := domain.Reference{Type: domain.ReferenceApplication, ID: application.ID}
	f.cache.invalidated = nil

	if err := f.svc.Members.TransferOwnership(ctx, ec(alice), ref, app.TransferInput{MemberID: bob}); err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}

	members, err := f.svc.Members.List(ctx, ec(bob), ref)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	roles := map[string]string{}
	for _, m := range members {
		roles[m.MemberID] = m.Role
	}
	if roles[bob] != domain.RolePrimaryOwner || roles[alice] != domain.RoleOwner {
		t.Errorf("roles = %v, want bob primary owner and alice owner", roles)
	}
	if !slices.Contains(f.cache.invalidated, alice) || !slices.Contains(f.cache.invalidated, bob) {
		t.Errorf("invalidated = %v, want both principals", f.cache.invalidated)
	}

	err = f.svc.Members.TransferOwnership(ctx, ec(bob), ref, app.TransferInput{MemberID: bob})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("transfer to current owner: expected ValidationError, got %v", err)
	}
}

func TestMemberList_UnknownReference(t *testing.T) {
	f := newFixture(app.Options{})

	_, err := f.svc.Members.List(context.Background(), ec(admin), domain.Reference{Type: domain.ReferenceAPI, ID: "missing"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemberSave_OutsiderSeesDenialForAnyReference(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	api := mustCreateAPI(t, f, alice, "/payments")
	in := app.MemberInput{MemberID: bob, Role: domain.RoleUser}

	for _, id := range []string{api.ID, "missing"} {
		ref := domain.Reference{Type: domain.ReferenceAPI, ID: id}
		if _, err := f.svc.Members.Save(ctx, ec(bob), ref, in); !errors.Is(err, domain.ErrPermissionDenied) {
			t.Errorf("Save on %s: expected ErrPermissionDenied, got %v", id, err)
		}
	}

	missing := domain.Reference{Type: domain.ReferenceAPI, ID: "missing"}
	if _, err := f.svc.Members.Save(ctx, ec(admin), missing, in); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("admin Save on missing API: expected ErrNotFound, got %v", err)
	}
}

func TestMemberTransferOwnership_FailedWriteKeepsOwner(t *testing.T) {
	f := newFixture(app.Options{})
	ctx := context.Background()
	api := mustCreateAPI(t, f, alice, "/payments")
	ref := domain.Reference{Type: domain.ReferenceAPI, ID: api.ID}
	f.store.rejectMember = bob

	if err := f.svc.Members.TransferOwnership(ctx, ec(alice), ref, app.TransferInput{MemberID: bob}); err == nil {
		t.Fatal("expected TransferOwnership to fail")
	}

	members, err := f.svc.Members.List(ctx, ec(alice), ref)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(members) != 1 || members[0].MemberID != alice || members[0].Role != domain.RolePrimaryOwner {
		t.Errorf("members = %+v, want alice as sole primary owner", members)
	}
}
