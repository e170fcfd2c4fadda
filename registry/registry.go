// Package registry implements the permissioned name registry: the
// ownership ledger for registration, renewal and relinquishment, built on
// the roles ledger and the versioned datastore.
//
// Every name maps to a stable resource; the externally visible token id is
// derived from the resource and the entry's version counters. Role
// mutations on a resource regenerate the token id (the EAC version counter
// is bumped) so holders of stale ids must re-derive the current one.
package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/namechain/registry/datastore"
	"github.com/namechain/registry/roles"
)

// TokenObserver is notified of lifecycle events for a single name. An
// error returned from either hook aborts the enclosing operation before
// any state is written. Observers must not call back into the registry.
type TokenObserver interface {
	OnRenew(tokenID *uint256.Int, newExpiry uint64, renewedBy common.Address) error
	OnRelinquish(tokenID *uint256.Int, relinquishedBy common.Address) error
}

// NameInfo is a read-side snapshot of a registered name.
type NameInfo struct {
	Label       string         `json:"label"`
	TokenID     *uint256.Int   `json:"token_id"`
	Resource    roles.Resource `json:"-"`
	Owner       common.Address `json:"owner"`
	Subregistry common.Address `json:"subregistry"`
	Resolver    common.Address `json:"resolver"`
	Expiry      uint64         `json:"expiry"`
}

// Registry is the name ownership ledger. Each instance writes datastore
// entries under its own address key, so two registries sharing a datastore
// cannot observe each other's records.
type Registry struct {
	address common.Address
	roles   *roles.Store
	data    *datastore.Store
	clock   clock.Clock
	log     *slog.Logger

	mu        sync.Mutex
	owners    map[roles.Resource]common.Address
	labels    map[roles.Resource]string
	observers map[roles.Resource]TokenObserver
}

// New creates a registry writing under address and installs it as the role
// store's mutation hook so role changes regenerate token ids.
func New(address common.Address, roleStore *roles.Store, data *datastore.Store, clk clock.Clock, log *slog.Logger) *Registry {
	r := &Registry{
		address:   address,
		roles:     roleStore,
		data:      data,
		clock:     clk,
		log:       log,
		owners:    make(map[roles.Resource]common.Address),
		labels:    make(map[roles.Resource]string),
		observers: make(map[roles.Resource]TokenObserver),
	}
	roleStore.SetCallbacks(r)
	return r
}

// Address returns the registry's own address, used as its datastore key.
func (r *Registry) Address() common.Address {
	return r.address
}

// Roles returns the underlying role store.
func (r *Registry) Roles() *roles.Store {
	return r.roles
}

// Register creates a fresh entry for label. It fails if an unexpired entry
// exists. The caller must hold the registrar role on the root resource.
// roleBitmap is granted to owner without token regeneration churn; the
// returned token id is already current.
func (r *Registry) Register(caller common.Address, label string, owner common.Address, subregistry, resolver common.Address, roleBitmap *uint256.Int, expiry uint64) (*uint256.Int, error) {
	if !r.roles.HasRootRoles(roles.RoleRegistrar, caller) {
		return nil, &roles.UnauthorizedError{Resource: roles.RootResource, Missing: roles.RoleRegistrar, Caller: caller}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if expiry <= now {
		return nil, fmt.Errorf("expiry %d is not in the future", expiry)
	}

	resource := roles.ResourceOf(label)
	entry := r.data.Get(r.address, resource)
	if _, known := r.labels[resource]; known && entry.Expiry > now {
		return nil, &NameAlreadyRegisteredError{Label: label}
	}

	// Stale role state from a previous registration is overwritten, never
	// read: the resource is reset before the new owner's roles are seeded.
	r.roles.SilentResetResource(resource)

	entry = datastore.Entry{
		Subregistry:  subregistry,
		Resolver:     resolver,
		Expiry:       expiry,
		TokenVersion: entry.TokenVersion + 1,
		EACVersion:   entry.EACVersion + 1,
	}
	r.data.Set(r.address, resource, entry)
	r.owners[resource] = owner
	r.labels[resource] = label
	delete(r.observers, resource)

	if roleBitmap != nil && !roleBitmap.IsZero() {
		r.roles.SilentGrantRoles(resource, roleBitmap, owner)
	}

	tokenID := TokenID(resource, entry)
	r.log.Info("name registered",
		"label", label,
		"owner", owner.Hex(),
		"tokenId", tokenID.Hex(),
		"expiry", expiry,
	)
	return tokenID, nil
}

// BridgeSync overwrites a name's record with state received from the
// other chain. Unlike Register it accepts a currently active name:
// authority for a bridged name lives on the sending chain, so the local
// record follows whatever that chain last announced. Requires the bridge
// role on the root resource.
func (r *Registry) BridgeSync(caller common.Address, label string, owner common.Address, subregistry, resolver common.Address, roleBitmap *uint256.Int, expiry uint64) (*uint256.Int, error) {
	if !r.roles.HasRootRoles(roles.RoleBridge, caller) {
		return nil, &roles.UnauthorizedError{Resource: roles.RootResource, Missing: roles.RoleBridge, Caller: caller}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if expiry <= r.now() {
		return nil, fmt.Errorf("expiry %d is not in the future", expiry)
	}

	resource := roles.ResourceOf(label)
	entry := r.data.Get(r.address, resource)
	r.roles.SilentResetResource(resource)

	entry = datastore.Entry{
		Subregistry:  subregistry,
		Resolver:     resolver,
		Expiry:       expiry,
		TokenVersion: entry.TokenVersion + 1,
		EACVersion:   entry.EACVersion + 1,
	}
	r.data.Set(r.address, resource, entry)
	r.owners[resource] = owner
	r.labels[resource] = label
	delete(r.observers, resource)

	if roleBitmap != nil && !roleBitmap.IsZero() {
		r.roles.SilentGrantRoles(resource, roleBitmap, owner)
	}

	tokenID := TokenID(resource, entry)
	r.log.Info("name synced from bridge",
		"label", label,
		"owner", owner.Hex(),
		"tokenId", tokenID.Hex(),
		"expiry", expiry,
	)
	return tokenID, nil
}

// Renew extends a name's expiry. The new expiry must strictly increase.
// Requires the renew role on the name's resource (or root). The name's
// token observer, if set, can abort the renewal.
func (r *Registry) Renew(caller common.Address, tokenID *uint256.Int, newExpiry uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, entry, ok := r.resolveLocked(tokenID)
	if !ok || entry.Expiry <= r.now() {
		return &NameExpiredError{TokenID: tokenID}
	}
	return r.renewLocked(resource, entry, tokenID, caller, newExpiry)
}

// RenewResource extends the expiry of whatever name currently occupies
// resource, without a token id version check. Bridged renewals carry the
// sending chain's token id; version counters are per-registry, so on
// receipt only the resource component is meaningful.
func (r *Registry) RenewResource(caller common.Address, resource roles.Resource, newExpiry uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.data.Get(r.address, resource)
	tokenID := TokenID(resource, entry)
	if _, known := r.labels[resource]; !known || entry.Expiry <= r.now() {
		return &NameExpiredError{TokenID: tokenID}
	}
	return r.renewLocked(resource, entry, tokenID, caller, newExpiry)
}

func (r *Registry) renewLocked(resource roles.Resource, entry datastore.Entry, tokenID *uint256.Int, caller common.Address, newExpiry uint64) error {
	if err := r.requireRoles(resource, roles.RoleRenew, caller); err != nil {
		return err
	}
	if newExpiry <= entry.Expiry {
		return &CannotReduceExpirationError{Current: entry.Expiry, Attempted: newExpiry}
	}
	if observer := r.observers[resource]; observer != nil {
		if err := observer.OnRenew(tokenID, newExpiry, caller); err != nil {
			return fmt.Errorf("token observer rejected renewal: %w", err)
		}
	}

	entry.Expiry = newExpiry
	r.data.Set(r.address, resource, entry)
	r.log.Info("name renewed", "label", r.labels[resource], "tokenId", tokenID.Hex(), "expiry", newExpiry)
	return nil
}

// Relinquish burns a name: only the current owner may call it. The token
// observer is consulted first and its error aborts the whole operation.
// All roles on the resource are revoked and the pointers cleared.
func (r *Registry) Relinquish(caller common.Address, tokenID *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, entry, ok := r.resolveLocked(tokenID)
	if !ok || entry.Expiry <= r.now() {
		return &NameExpiredError{TokenID: tokenID}
	}
	if r.owners[resource] != caller {
		return &NotTokenOwnerError{TokenID: tokenID, Caller: caller}
	}
	if observer := r.observers[resource]; observer != nil {
		if err := observer.OnRelinquish(tokenID, caller); err != nil {
			return fmt.Errorf("token observer rejected relinquishment: %w", err)
		}
	}

	r.roles.SilentResetResource(resource)
	r.data.Set(r.address, resource, datastore.Entry{
		TokenVersion: entry.TokenVersion + 1,
		EACVersion:   entry.EACVersion + 1,
	})
	label := r.labels[resource]
	delete(r.owners, resource)
	delete(r.observers, resource)

	r.log.Info("name relinquished", "label", label, "tokenId", tokenID.Hex(), "owner", caller.Hex())
	return nil
}

// SetSubregistry points the name at a new subregistry. Role-gated; no
// token regeneration (pointer-only change).
func (r *Registry) SetSubregistry(caller common.Address, tokenID *uint256.Int, subregistry common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, entry, ok := r.resolveLocked(tokenID)
	if !ok || entry.Expiry <= r.now() {
		return &NameExpiredError{TokenID: tokenID}
	}
	if err := r.requireRoles(resource, roles.RoleSetSubregistry, caller); err != nil {
		return err
	}
	r.data.SetSubregistry(r.address, resource, subregistry)
	r.log.Debug("subregistry updated", "label", r.labels[resource], "subregistry", subregistry.Hex())
	return nil
}

// SetResolver points the name at a new resolver. Role-gated; no token
// regeneration.
func (r *Registry) SetResolver(caller common.Address, tokenID *uint256.Int, resolver common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, entry, ok := r.resolveLocked(tokenID)
	if !ok || entry.Expiry <= r.now() {
		return &NameExpiredError{TokenID: tokenID}
	}
	if err := r.requireRoles(resource, roles.RoleSetResolver, caller); err != nil {
		return err
	}
	r.data.SetResolver(r.address, resource, resolver)
	r.log.Debug("resolver updated", "label", r.labels[resource], "resolver", resolver.Hex())
	return nil
}

// SetTokenObserver installs (or clears, with nil) the observer notified of
// renewals and relinquishments for this name.
func (r *Registry) SetTokenObserver(caller common.Address, tokenID *uint256.Int, observer TokenObserver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, entry, ok := r.resolveLocked(tokenID)
	if !ok || entry.Expiry <= r.now() {
		return &NameExpiredError{TokenID: tokenID}
	}
	if err := r.requireRoles(resource, roles.RoleSetTokenObserver, caller); err != nil {
		return err
	}
	if observer == nil {
		delete(r.observers, resource)
	} else {
		r.observers[resource] = observer
	}
	return nil
}

// Transfer moves ownership to newOwner. The previous owner's direct roles
// on the resource travel with the token; the token version is bumped so
// the old id stops resolving. Returns the regenerated token id.
func (r *Registry) Transfer(caller common.Address, tokenID *uint256.Int, newOwner common.Address) (*uint256.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, entry, ok := r.resolveLocked(tokenID)
	if !ok || entry.Expiry <= r.now() {
		return nil, &NameExpiredError{TokenID: tokenID}
	}
	if r.owners[resource] != caller {
		return nil, &NotTokenOwnerError{TokenID: tokenID, Caller: caller}
	}

	r.roles.SilentCopyRoles(resource, caller, newOwner)
	r.roles.SilentRevokeAllRoles(resource, caller)
	r.owners[resource] = newOwner

	entry.TokenVersion++
	r.data.Set(r.address, resource, entry)
	newID := TokenID(resource, entry)
	r.log.Info("token regenerated", "oldId", tokenID.Hex(), "newId", newID.Hex(), "reason", "transfer")
	return newID, nil
}

// GrantRoles grants roles on a name's resource. The role store enforces
// admin gating; a successful grant regenerates the token id through the
// mutation hook.
func (r *Registry) GrantRoles(caller common.Address, tokenID *uint256.Int, bitmap *uint256.Int, account common.Address) error {
	resource, err := r.activeResource(tokenID)
	if err != nil {
		return err
	}
	_, err = r.roles.GrantRoles(resource, bitmap, account, caller)
	return err
}

// RevokeRoles revokes roles on a name's resource, regenerating the token
// id on success.
func (r *Registry) RevokeRoles(caller common.Address, tokenID *uint256.Int, bitmap *uint256.Int, account common.Address) error {
	resource, err := r.activeResource(tokenID)
	if err != nil {
		return err
	}
	_, err = r.roles.RevokeRoles(resource, bitmap, account, caller)
	return err
}

// OwnerOf returns the current owner, or the zero address once the entry
// has expired. Storage is not eagerly cleared at expiry; the check happens
// on every read path.
func (r *Registry) OwnerOf(tokenID *uint256.Int) common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	resource, entry, ok := r.resolveLocked(tokenID)
	if !ok || entry.Expiry <= r.now() {
		return common.Address{}
	}
	return r.owners[resource]
}

// GetSubregistry returns the subregistry pointer, or zero once expired.
func (r *Registry) GetSubregistry(tokenID *uint256.Int) common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, entry, ok := r.resolveLocked(tokenID)
	if !ok || entry.Expiry <= r.now() {
		return common.Address{}
	}
	return entry.Subregistry
}

// GetResolver returns the resolver pointer, or zero once expired.
func (r *Registry) GetResolver(tokenID *uint256.Int) common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, entry, ok := r.resolveLocked(tokenID)
	if !ok || entry.Expiry <= r.now() {
		return common.Address{}
	}
	return entry.Resolver
}

// GetExpiry returns the entry's expiry, or zero for stale and unknown ids.
func (r *Registry) GetExpiry(tokenID *uint256.Int) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, entry, ok := r.resolveLocked(tokenID)
	if !ok {
		return 0
	}
	return entry.Expiry
}

// TokenIDOf returns the current token id for label if the name is active.
// After a role mutation regenerates the id, this is how callers recover
// the canonical one.
func (r *Registry) TokenIDOf(label string) (*uint256.Int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resource := roles.ResourceOf(label)
	if _, known := r.labels[resource]; !known {
		return nil, false
	}
	entry := r.data.Get(r.address, resource)
	if entry.Expiry <= r.now() {
		return nil, false
	}
	return TokenID(resource, entry), true
}

// GetTokenIDResource exposes the resource component of a token id.
func (r *Registry) GetTokenIDResource(tokenID *uint256.Int) roles.Resource {
	return TokenResource(tokenID)
}

// Info returns a read-side snapshot for label, or false if the name is not
// currently active.
func (r *Registry) Info(label string) (NameInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resource := roles.ResourceOf(label)
	if _, known := r.labels[resource]; !known {
		return NameInfo{}, false
	}
	entry := r.data.Get(r.address, resource)
	if entry.Expiry <= r.now() {
		return NameInfo{}, false
	}
	return NameInfo{
		Label:       label,
		TokenID:     TokenID(resource, entry),
		Resource:    resource,
		Owner:       r.owners[resource],
		Subregistry: entry.Subregistry,
		Resolver:    entry.Resolver,
		Expiry:      entry.Expiry,
	}, true
}

// OnRolesGranted implements roles.Callbacks: any hooked role grant on a
// name's resource bumps the EAC version, retiring previously issued ids.
func (r *Registry) OnRolesGranted(resource roles.Resource, account common.Address, oldRoles, newRoles, granted *uint256.Int) error {
	r.regenerate(resource, "roles granted")
	return nil
}

// OnRolesRevoked implements roles.Callbacks.
func (r *Registry) OnRolesRevoked(resource roles.Resource, account common.Address, oldRoles, newRoles, revoked *uint256.Int) error {
	r.regenerate(resource, "roles revoked")
	return nil
}

func (r *Registry) regenerate(resource roles.Resource, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.labels[resource]; !known {
		return
	}
	entry := r.data.Get(r.address, resource)
	oldID := TokenID(resource, entry)
	entry.EACVersion++
	r.data.Set(r.address, resource, entry)
	newID := TokenID(resource, entry)
	r.log.Info("token regenerated", "oldId", oldID.Hex(), "newId", newID.Hex(), "reason", reason)
}

// activeResource resolves a token id to its resource, rejecting stale and
// expired ids.
func (r *Registry) activeResource(tokenID *uint256.Int) (roles.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resource, entry, ok := r.resolveLocked(tokenID)
	if !ok || entry.Expiry <= r.now() {
		return roles.Resource{}, &NameExpiredError{TokenID: tokenID}
	}
	return resource, nil
}

// resolveLocked maps a token id to its resource and entry. Stale ids
// (version word no longer current) and unknown resources do not resolve.
func (r *Registry) resolveLocked(tokenID *uint256.Int) (roles.Resource, datastore.Entry, bool) {
	resource := TokenResource(tokenID)
	if _, known := r.labels[resource]; !known {
		return resource, datastore.Entry{}, false
	}
	entry := r.data.Get(r.address, resource)
	if !TokenID(resource, entry).Eq(tokenID) {
		return resource, entry, false
	}
	return resource, entry, true
}

func (r *Registry) requireRoles(resource roles.Resource, bitmap *uint256.Int, caller common.Address) error {
	if r.roles.HasRoles(resource, bitmap, caller) {
		return nil
	}
	held := roles.Union(r.roles.DirectRoles(resource, caller), r.roles.DirectRoles(roles.RootResource, caller))
	missing := new(uint256.Int).And(bitmap, new(uint256.Int).Not(held))
	return &roles.UnauthorizedError{Resource: resource, Missing: missing, Caller: caller}
}

// Now returns the registry clock's current unix time. Collaborators that
// validate expiries before calling Register share the registry's clock.
func (r *Registry) Now() uint64 {
	return r.now()
}

func (r *Registry) now() uint64 {
	return uint64(r.clock.Now().Unix())
}
