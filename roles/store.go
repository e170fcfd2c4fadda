package roles

import (
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Callbacks is notified after every hooked role mutation. Implementations
// may return an error to abort the mutation; the store rolls the assignment
// back before returning.
type Callbacks interface {
	OnRolesGranted(resource Resource, account common.Address, oldRoles, newRoles, granted *uint256.Int) error
	OnRolesRevoked(resource Resource, account common.Address, oldRoles, newRoles, revoked *uint256.Int) error
}

// Store is the role assignment ledger. Reads merge the root resource into
// every scoped resource; writes never merge.
type Store struct {
	mu          sync.RWMutex
	assignments map[Resource]map[common.Address]uint256.Int
	callbacks   Callbacks
	log         *slog.Logger
}

// NewStore creates an empty role store.
func NewStore(log *slog.Logger) *Store {
	return &Store{
		assignments: make(map[Resource]map[common.Address]uint256.Int),
		log:         log,
	}
}

// SetCallbacks installs the mutation hook. Pass nil to clear.
func (s *Store) SetCallbacks(cb Callbacks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = cb
}

// DirectRoles returns the roles stored for (resource, account) without the
// root merge. Root grants are invisible here.
func (s *Store) DirectRoles(resource Resource, account common.Address) *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	direct := s.directLocked(resource, account)
	return &direct
}

// HasRoles reports whether account holds every bit of bitmap on resource,
// merging the account's root-resource grants into the check.
func (s *Store) HasRoles(resource Resource, bitmap *uint256.Int, account common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasRolesLocked(resource, bitmap, account)
}

// HasRootRoles reports whether account holds every bit of bitmap on the
// root resource.
func (s *Store) HasRootRoles(bitmap *uint256.Int, account common.Address) bool {
	return s.HasRoles(RootResource, bitmap, account)
}

// GrantRoles grants bitmap to account on a scoped resource. The caller must
// hold the admin bits for every bit being granted, merged with its root
// grants. Granting bits already held is a no-op and invokes no hook.
// Returns whether stored state changed.
func (s *Store) GrantRoles(resource Resource, bitmap *uint256.Int, account, caller common.Address) (bool, error) {
	if resource == RootResource {
		return false, ErrRootResourceForbidden
	}
	return s.grant(resource, bitmap, account, caller)
}

// GrantRootRoles grants bitmap to account on the root resource.
func (s *Store) GrantRootRoles(bitmap *uint256.Int, account, caller common.Address) (bool, error) {
	return s.grant(RootResource, bitmap, account, caller)
}

// RevokeRoles revokes bitmap from account on a scoped resource. Admin
// gating matches GrantRoles. Returns whether stored state changed.
func (s *Store) RevokeRoles(resource Resource, bitmap *uint256.Int, account, caller common.Address) (bool, error) {
	if resource == RootResource {
		return false, ErrRootResourceForbidden
	}
	return s.revoke(resource, bitmap, account, caller)
}

// RevokeRootRoles revokes bitmap from account on the root resource.
func (s *Store) RevokeRootRoles(bitmap *uint256.Int, account, caller common.Address) (bool, error) {
	return s.revoke(RootResource, bitmap, account, caller)
}

// RevokeAllRoles removes every role account holds directly on resource. The
// caller must hold the admin bits covering the held roles.
func (s *Store) RevokeAllRoles(resource Resource, account, caller common.Address) (bool, error) {
	if resource == RootResource {
		return false, ErrRootResourceForbidden
	}
	held := s.DirectRoles(resource, account)
	if held.IsZero() {
		return false, nil
	}
	return s.revoke(resource, held, account, caller)
}

// CopyRoles ORs src's direct roles on resource into dst's. Existing dst
// roles are never overwritten. The hook observes the grant.
func (s *Store) CopyRoles(resource Resource, src, dst common.Address) error {
	s.mu.Lock()
	srcRoles := s.directLocked(resource, src)
	old := s.directLocked(resource, dst)
	merged := *Union(&old, &srcRoles)
	if merged.Eq(&old) {
		s.mu.Unlock()
		return nil
	}
	s.setLocked(resource, dst, merged)
	cb := s.callbacks
	s.mu.Unlock()

	granted := new(uint256.Int).And(&srcRoles, new(uint256.Int).Not(&old))
	if cb != nil {
		if err := cb.OnRolesGranted(resource, dst, &old, &merged, granted); err != nil {
			s.mu.Lock()
			s.setLocked(resource, dst, old)
			s.mu.Unlock()
			return err
		}
	}
	return nil
}

// SilentGrantRoles grants without admin gating and without invoking the
// hook. Reserved for trusted internal callers, such as a registry seeding
// roles during registration.
func (s *Store) SilentGrantRoles(resource Resource, bitmap *uint256.Int, account common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.directLocked(resource, account)
	merged := *Union(&old, bitmap)
	if merged.Eq(&old) {
		return false
	}
	s.setLocked(resource, account, merged)
	return true
}

// SilentCopyRoles merges src's direct roles into dst without the hook.
// Used when roles travel with token ownership.
func (s *Store) SilentCopyRoles(resource Resource, src, dst common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	srcRoles := s.directLocked(resource, src)
	old := s.directLocked(resource, dst)
	s.setLocked(resource, dst, *Union(&old, &srcRoles))
}

// SilentRevokeAllRoles clears account's direct roles on resource without
// admin gating or the hook.
func (s *Store) SilentRevokeAllRoles(resource Resource, account common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.directLocked(resource, account)
	if old.IsZero() {
		return false
	}
	delete(s.assignments[resource], account)
	return true
}

// SilentResetResource drops every assignment under resource. Used by the
// registry when a fresh registration overwrites an expired name's stale
// role state.
func (s *Store) SilentResetResource(resource Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, resource)
}

// BootstrapRootRoles seeds initial root grants at deployment time, before
// any admin structure exists. It bypasses gating and hooks.
func (s *Store) BootstrapRootRoles(bitmap *uint256.Int, account common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.directLocked(RootResource, account)
	s.setLocked(RootResource, account, *Union(&old, bitmap))
}

func (s *Store) grant(resource Resource, bitmap *uint256.Int, account, caller common.Address) (bool, error) {
	s.mu.Lock()
	if err := s.checkAdminLocked(resource, bitmap, caller); err != nil {
		s.mu.Unlock()
		return false, err
	}
	old := s.directLocked(resource, account)
	merged := *Union(&old, bitmap)
	if merged.Eq(&old) {
		s.mu.Unlock()
		return false, nil
	}
	s.setLocked(resource, account, merged)
	cb := s.callbacks
	s.mu.Unlock()

	granted := new(uint256.Int).And(bitmap, new(uint256.Int).Not(&old))
	if cb != nil {
		if err := cb.OnRolesGranted(resource, account, &old, &merged, granted); err != nil {
			s.mu.Lock()
			s.setLocked(resource, account, old)
			s.mu.Unlock()
			return false, err
		}
	}
	if s.log != nil {
		s.log.Debug("roles granted", "resource", resource.Hex(), "account", account.Hex(), "roles", granted.Hex())
	}
	return true, nil
}

func (s *Store) revoke(resource Resource, bitmap *uint256.Int, account, caller common.Address) (bool, error) {
	s.mu.Lock()
	if err := s.checkAdminLocked(resource, bitmap, caller); err != nil {
		s.mu.Unlock()
		return false, err
	}
	old := s.directLocked(resource, account)
	remaining := *new(uint256.Int).And(&old, new(uint256.Int).Not(bitmap))
	if remaining.Eq(&old) {
		s.mu.Unlock()
		return false, nil
	}
	s.setLocked(resource, account, remaining)
	cb := s.callbacks
	s.mu.Unlock()

	revoked := new(uint256.Int).And(&old, bitmap)
	if cb != nil {
		if err := cb.OnRolesRevoked(resource, account, &old, &remaining, revoked); err != nil {
			s.mu.Lock()
			s.setLocked(resource, account, old)
			s.mu.Unlock()
			return false, err
		}
	}
	if s.log != nil {
		s.log.Debug("roles revoked", "resource", resource.Hex(), "account", account.Hex(), "roles", revoked.Hex())
	}
	return true, nil
}

// checkAdminLocked verifies caller holds the admin bits authorizing a
// grant or revoke of bitmap on resource. Admin bits are checked against
// the merged (resource | root) view.
func (s *Store) checkAdminLocked(resource Resource, bitmap *uint256.Int, caller common.Address) error {
	required := adminBitmap(bitmap)
	if s.hasRolesLocked(resource, required, caller) {
		return nil
	}
	direct := s.directLocked(resource, caller)
	root := s.directLocked(RootResource, caller)
	held := Union(&direct, &root)
	missing := new(uint256.Int).And(required, new(uint256.Int).Not(held))
	return &UnauthorizedError{Resource: resource, Missing: missing, Caller: caller}
}

func (s *Store) hasRolesLocked(resource Resource, bitmap *uint256.Int, account common.Address) bool {
	direct := s.directLocked(resource, account)
	root := s.directLocked(RootResource, account)
	merged := Union(&direct, &root)
	merged.And(merged, bitmap)
	return merged.Eq(bitmap)
}

func (s *Store) directLocked(resource Resource, account common.Address) uint256.Int {
	if accounts, ok := s.assignments[resource]; ok {
		return accounts[account]
	}
	return uint256.Int{}
}

func (s *Store) setLocked(resource Resource, account common.Address, bitmap uint256.Int) {
	if bitmap.IsZero() {
		if accounts, ok := s.assignments[resource]; ok {
			delete(accounts, account)
			if len(accounts) == 0 {
				delete(s.assignments, resource)
			}
		}
		return
	}
	accounts, ok := s.assignments[resource]
	if !ok {
		accounts = make(map[common.Address]uint256.Int)
		s.assignments[resource] = accounts
	}
	accounts[account] = bitmap
}
