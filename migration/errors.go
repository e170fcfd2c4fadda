package migration

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// UnauthorizedCallerError reports a transfer arriving from a contract
// other than the two legacy contracts the controller was constructed with.
type UnauthorizedCallerError struct {
	Caller common.Address
}

func (e *UnauthorizedCallerError) Error() string {
	return fmt.Sprintf("unauthorized caller %s", e.Caller.Hex())
}

// TokenIdMismatchError reports a transferred token id that does not match
// the id derived from the label in the migration payload. It prevents
// instruction/token confusion: instructions for one name riding on another
// name's token.
type TokenIdMismatchError struct {
	Actual   *uint256.Int
	Expected *uint256.Int
}

func (e *TokenIdMismatchError) Error() string {
	return fmt.Sprintf("token id %s does not match expected %s", e.Actual.Hex(), e.Expected.Hex())
}

// NameNotLockedError reports a name routed to the locked migration path
// without the irrevocable lock flag set.
type NameNotLockedError struct {
	Label string
}

func (e *NameNotLockedError) Error() string {
	return fmt.Sprintf("name %q is not locked", e.Label)
}

// NameIsLockedError reports a locked name routed to the unlocked migration
// path. The two paths are mutually exclusive.
type NameIsLockedError struct {
	Label string
}

func (e *NameIsLockedError) Error() string {
	return fmt.Sprintf("name %q is locked", e.Label)
}

// InconsistentFusesStateError reports legacy fuse state carrying the
// migration marker before migration, which indicates a double-migration
// attempt.
type InconsistentFusesStateError struct {
	Fuses uint32
}

func (e *InconsistentFusesStateError) Error() string {
	return fmt.Sprintf("inconsistent legacy fuses state %#x", e.Fuses)
}

// NameNotETH2LDError reports a name that is not a direct child of .eth.
type NameNotETH2LDError struct {
	Name string
}

func (e *NameNotETH2LDError) Error() string {
	return fmt.Sprintf("name %q is not a second-level .eth name", e.Name)
}
