// Package migration implements the one-time conversion of legacy name
// records into the new registry's data model. Controllers consume legacy
// token transfers carrying embedded migration instructions, validate the
// legacy state, register the name in the new registry, and optionally
// forward a bridge message to the other chain.
package migration

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/namechain/registry/roles"
)

// Legacy lock-flag ("fuse") bits as stored by the legacy name wrapper.
// FuseCannotUnwrap is the irrevocable top-level lock; the remaining
// CANNOT_* bits are the optional sub-flags the migration controllers
// inspect and, on the locked path, burn.
const (
	FuseCannotUnwrap          uint32 = 1 << 0
	FuseCannotBurnFuses       uint32 = 1 << 1
	FuseCannotTransfer        uint32 = 1 << 2
	FuseCannotSetResolver     uint32 = 1 << 3
	FuseCannotSetTTL          uint32 = 1 << 4
	FuseCannotCreateSubdomain uint32 = 1 << 5
	FuseCannotApprove         uint32 = 1 << 6

	FuseParentCannotControl uint32 = 1 << 16
	FuseIsDotETH            uint32 = 1 << 17
)

// optionalFuses are the sub-flags burned after a locked migration commits,
// making the legacy token permanently immutable.
const optionalFuses = FuseCannotBurnFuses | FuseCannotTransfer | FuseCannotSetResolver |
	FuseCannotSetTTL | FuseCannotCreateSubdomain | FuseCannotApprove

// RolesFromFuses derives the new-registry role bitmap for a locked name
// from its legacy fuse state. Each absent sub-flag maps to one capability
// role plus its admin role; present sub-flags withhold the capability.
// The renew roles are always granted: renewability survives migration.
// The caller-supplied role bitmap in the transfer payload plays no part.
func RolesFromFuses(fuses uint32) *uint256.Int {
	bitmap := roles.Union(roles.RoleRenew, roles.RoleRenewAdmin)
	if fuses&FuseCannotSetResolver == 0 {
		bitmap = roles.Union(bitmap, roles.RoleSetResolver, roles.RoleSetResolverAdmin)
	}
	if fuses&FuseCannotCreateSubdomain == 0 {
		bitmap = roles.Union(bitmap, roles.RoleSetSubregistry, roles.RoleSetSubregistryAdmin)
	}
	if fuses&FuseCannotTransfer == 0 {
		bitmap = roles.Union(bitmap, roles.RoleSetTokenObserver, roles.RoleSetTokenObserverAdmin)
	}
	return bitmap
}

// LegacyNameWrapper is the read/burn surface of the legacy wrapper
// contract holding pre-migration names.
type LegacyNameWrapper interface {
	// GetData returns the legacy owner, fuse bitmask and expiry for a
	// wrapped token.
	GetData(ctx context.Context, tokenID *uint256.Int) (owner common.Address, fuses uint32, expiry uint64, err error)

	// SetFuses burns the given fuse bits into the token. Fuses are
	// one-way: bits can be set, never cleared.
	SetFuses(ctx context.Context, tokenID *uint256.Int, fuses uint32) error
}
