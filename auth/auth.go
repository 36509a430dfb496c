// Package auth defines the capability-check collaborator. Bazaar models
// Manager and Admin access as explicit role checks passed into each
// operation rather than inherited behavior; creator ownership is checked
// against the product registry, not a role.
package auth

import (
	"context"
	"sync"

	"github.com/xraph/bazaar/id"
)

// Role is a named capability.
type Role string

const (
	// RoleManager may mutate deployment, fee, discount, currency, and
	// transfer configuration.
	RoleManager Role = "manager"
	// RoleAdmin may additionally pause and unpause the system.
	RoleAdmin Role = "admin"
)

// Authorizer answers capability checks.
type Authorizer interface {
	HasRole(ctx context.Context, identity id.AccountID, role Role) (bool, error)
}

// RoleMap is an in-memory Authorizer with explicit grants.
type RoleMap struct {
	mu    sync.RWMutex
	roles map[string]map[Role]bool
}

// NewRoleMap creates an empty RoleMap.
func NewRoleMap() *RoleMap {
	return &RoleMap{roles: make(map[string]map[Role]bool)}
}

// Grant gives identity the role.
func (r *RoleMap) Grant(identity id.AccountID, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identity.String()
	if r.roles[key] == nil {
		r.roles[key] = make(map[Role]bool)
	}
	r.roles[key][role] = true
}

// Revoke removes the role from identity. Revoking an absent grant is a no-op.
func (r *RoleMap) Revoke(identity id.AccountID, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles[identity.String()], role)
}

// HasRole implements Authorizer.
func (r *RoleMap) HasRole(_ context.Context, identity id.AccountID, role Role) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles[identity.String()][role], nil
}
