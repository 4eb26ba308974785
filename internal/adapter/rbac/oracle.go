// Package rbac answers permission checks from memberships and the built-in
// role catalog.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// Config tunes the oracle.
type Config struct {
	// Admins hold ENVIRONMENT ADMIN everywhere and pass every check.
	Admins    []string
	CacheSize int
	CacheTTL  time.Duration
}

type cacheKey struct {
	principal  string
	permission domain.Permission
	ref        domain.Reference
	acts       string
}

// Oracle implements domain.PermissionOracle and domain.PermissionCache.
type Oracle struct {
	memberships domain.MembershipRepository
	admins      []string
	cache       *expirable.LRU[cacheKey, bool]
}

// New creates an Oracle. A zero CacheSize disables caching.
func New(memberships domain.MembershipRepository, cfg Config) *Oracle {
	o := &Oracle{
		memberships: memberships,
		admins:      cfg.Admins,
	}
	if cfg.CacheSize > 0 {
		o.cache = expirable.NewLRU[cacheKey, bool](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return o
}

// Check reports whether the caller holds every act of permission on ref.
func (o *Oracle) Check(ctx context.Context, ec domain.ExecutionContext, permission domain.Permission, ref domain.Reference, acts ...domain.Act) (bool, error) {
	if ec.Anonymous() {
		return false, nil
	}
	if slices.Contains(o.admins, ec.Principal) {
		return true, nil
	}

	key := cacheKey{principal: ec.Principal, permission: permission, ref: ref, acts: actsKey(acts)}
	if o.cache != nil {
		if granted, ok := o.cache.Get(key); ok {
			return granted, nil
		}
	}

	granted, err := o.resolve(ctx, ec.Principal, permission, ref, acts)
	if err != nil {
		return false, err
	}
	if o.cache != nil {
		o.cache.Add(key, granted)
	}
	return granted, nil
}

func (o *Oracle) resolve(ctx context.Context, principal string, permission domain.Permission, ref domain.Reference, acts []domain.Act) (bool, error) {
	roleName := domain.RoleUser
	if ref.Type != domain.ReferenceEnvironment {
		m, err := o.memberships.Get(ctx, ref, principal)
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("loading membership: %w", err)
		}
		roleName = m.Role
	}

	role, ok := domain.FindRole(ref.Type, roleName)
	return ok && role.Grants(permission, acts...), nil
}

// Invalidate drops every cached answer for principal.
func (o *Oracle) Invalidate(principal string) {
	if o.cache == nil {
		return
	}
	for _, key := range o.cache.Keys() {
		if key.principal == principal {
			o.cache.Remove(key)
		}
	}
}

func actsKey(acts []domain.Act) string {
	b := make([]byte, len(acts))
	for i, a := range acts {
		b[i] = byte(a)
	}
	return string(b)
}
