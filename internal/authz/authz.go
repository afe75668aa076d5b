// Package authz answers group-scoped permission questions by combining
// role resolution with the group ownership table.
package authz

import (
	"context"

	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/repository"
)

// Authorizer combines the role resolver with group ownership.
type Authorizer struct {
	roles  *identity.Resolver
	owners *repository.OwnerRepo
}

// New returns an Authorizer and panics if a dependency is missing.
func New(roles *identity.Resolver, owners *repository.OwnerRepo) *Authorizer {
	if roles == nil || owners == nil {
		panic("nil dependency passed to authz.New")
	}
	return &Authorizer{roles: roles, owners: owners}
}

// Roles exposes the underlying resolver.
func (a *Authorizer) Roles() *identity.Resolver { return a.roles }

// IsOwnerOf reports whether the claims' owner id is bound to groupID.
func (a *Authorizer) IsOwnerOf(ctx context.Context, c identity.Claims, groupID string) (bool, error) {
	return a.owners.IsOwner(ctx, groupID, c.OwnerID())
}

// OwnedGroups lists the groups the claims' owner id is bound to.
func (a *Authorizer) OwnedGroups(ctx context.Context, c identity.Claims) ([]string, error) {
	return a.owners.GroupsOfUser(ctx, c.OwnerID())
}

// CanManageGroup reports whether the caller may edit groupID and its
// events: admins, chiefs and the group's owners.
func (a *Authorizer) CanManageGroup(ctx context.Context, c identity.Claims, groupID string) (bool, error) {
	if a.roles.HasAny(c, identity.RoleAdmin, identity.RoleChief) {
		return true, nil
	}
	return a.IsOwnerOf(ctx, c, groupID)
}

// CanPunch reports whether the caller may mark tickets of groupID as
// used: entry staff plus everyone who can manage the group.
func (a *Authorizer) CanPunch(ctx context.Context, c identity.Claims, groupID string) (bool, error) {
	if a.roles.Has(c, identity.RoleEntry) {
		return true, nil
	}
	return a.CanManageGroup(ctx, c, groupID)
}
