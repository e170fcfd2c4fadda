package registry

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/namechain/registry/datastore"
	"github.com/namechain/registry/roles"
)

// TokenID derives the externally visible token id for a resource from the
// entry's version counters. The resource occupies the high 192 bits; the
// EAC version and token version are packed into the low 64 bits, so
// bumping either counter retires all previously issued ids while the
// resource stays fixed.
func TokenID(resource roles.Resource, entry datastore.Entry) *uint256.Int {
	b := resource
	binary.BigEndian.PutUint32(b[24:28], entry.EACVersion)
	binary.BigEndian.PutUint32(b[28:32], entry.TokenVersion)
	return new(uint256.Int).SetBytes(b[:])
}

// TokenResource recovers the resource component of a token id by masking
// off the version word. It is the left inverse of TokenID restricted to
// the resource: TokenResource(TokenID(r, e)) == r for every entry e.
func TokenResource(tokenID *uint256.Int) roles.Resource {
	b := tokenID.Bytes32()
	var r roles.Resource
	copy(r[:24], b[:24])
	return r
}
