package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NameAlreadyRegisteredError is returned when registering a label that has
// an unexpired entry.
type NameAlreadyRegisteredError struct {
	Label string
}

func (e *NameAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("name %q is already registered", e.Label)
}

// NameExpiredError is returned by operations referencing a token id whose
// entry is expired, stale, or unknown.
type NameExpiredError struct {
	TokenID *uint256.Int
}

func (e *NameExpiredError) Error() string {
	return fmt.Sprintf("name with token id %s is expired or unknown", e.TokenID.Hex())
}

// CannotReduceExpirationError is returned when a renewal does not strictly
// increase the expiry.
type CannotReduceExpirationError struct {
	Current   uint64
	Attempted uint64
}

func (e *CannotReduceExpirationError) Error() string {
	return fmt.Sprintf("cannot reduce expiration from %d to %d", e.Current, e.Attempted)
}

// NotTokenOwnerError is returned when a caller attempts an owner-only
// operation on a token it does not own.
type NotTokenOwnerError struct {
	TokenID *uint256.Int
	Caller  common.Address
}

func (e *NotTokenOwnerError) Error() string {
	return fmt.Sprintf("caller %s does not own token %s", e.Caller.Hex(), e.TokenID.Hex())
}
