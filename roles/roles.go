// Package roles implements the per-resource role ledger used to gate every
// mutating registry operation.
//
// Roles are 256-bit bitmaps split in half: the low 128 bits are capability
// roles, and bit k of the high half is the admin role for capability bit k.
// Holding an admin bit authorizes granting and revoking the corresponding
// capability bit on that resource. Grants on the root resource apply to
// every resource, merged in at check time only.
package roles

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Resource identifies a permission domain. A resource is stable for the
// lifetime of a name even as its externally visible token id changes.
type Resource [32]byte

// RootResource is the distinguished resource whose grants apply to every
// other resource. It must only be touched through the root entry points.
var RootResource = Resource{}

// ResourceOf derives the canonical resource for a label. The low 64 bits of
// the label hash are zeroed; the registry packs version counters there when
// deriving token ids.
func ResourceOf(label string) Resource {
	var r Resource
	copy(r[:], crypto.Keccak256([]byte(label)))
	for i := 24; i < 32; i++ {
		r[i] = 0
	}
	return r
}

// Hex returns the 0x-prefixed hex form of the resource.
func (r Resource) Hex() string {
	return common.BytesToHash(r[:]).Hex()
}

// Capability roles, one bit each in the low half of the bitmap.
var (
	RoleRegistrar        = Bit(0)
	RoleRenew            = Bit(1)
	RoleSetSubregistry   = Bit(2)
	RoleSetResolver      = Bit(3)
	RoleSetTokenObserver = Bit(4)
	RoleBridge           = Bit(5)

	RoleRegistrarAdmin        = AdminOf(RoleRegistrar)
	RoleRenewAdmin            = AdminOf(RoleRenew)
	RoleSetSubregistryAdmin   = AdminOf(RoleSetSubregistry)
	RoleSetResolverAdmin      = AdminOf(RoleSetResolver)
	RoleSetTokenObserverAdmin = AdminOf(RoleSetTokenObserver)
	RoleBridgeAdmin           = AdminOf(RoleBridge)
)

var (
	lowHalfMask  = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)
	highHalfMask = new(uint256.Int).Not(lowHalfMask)
)

// Bit returns a bitmap with only capability bit n set.
func Bit(n uint) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), n)
}

// AdminOf returns the admin counterpart of a capability bitmap: every set
// bit shifted into the high half.
func AdminOf(bitmap *uint256.Int) *uint256.Int {
	return new(uint256.Int).Lsh(bitmap, 128)
}

// Union ORs bitmaps together into a fresh value.
func Union(bitmaps ...*uint256.Int) *uint256.Int {
	out := new(uint256.Int)
	for _, b := range bitmaps {
		out.Or(out, b)
	}
	return out
}

// WithAdmins returns bitmap extended with the admin bits of its low half.
func WithAdmins(bitmap *uint256.Int) *uint256.Int {
	low := new(uint256.Int).And(bitmap, lowHalfMask)
	return Union(bitmap, AdminOf(low))
}

// adminBitmap returns the roles a caller must hold to grant or revoke the
// given bitmap: the admin counterpart of every capability bit, plus any
// admin bits themselves (admin roles are self-administered).
func adminBitmap(bitmap *uint256.Int) *uint256.Int {
	low := new(uint256.Int).And(bitmap, lowHalfMask)
	high := new(uint256.Int).And(bitmap, highHalfMask)
	return Union(AdminOf(low), high)
}
