package registrar

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CommitmentTooNewError reports a reveal attempted before the minimum
// commitment age has elapsed.
type CommitmentTooNewError struct {
	Commitment common.Hash
	ValidAt    time.Time
	Now        time.Time
}

func (e *CommitmentTooNewError) Error() string {
	return fmt.Sprintf("commitment %s not valid until %s (now %s)", e.Commitment.Hex(), e.ValidAt.Format(time.RFC3339), e.Now.Format(time.RFC3339))
}

// CommitmentTooOldError reports a reveal attempted after the maximum
// commitment age has passed, or a reveal without a recorded commitment.
type CommitmentTooOldError struct {
	Commitment common.Hash
	ExpiredAt  time.Time
	Now        time.Time
}

func (e *CommitmentTooOldError) Error() string {
	return fmt.Sprintf("commitment %s expired at %s (now %s)", e.Commitment.Hex(), e.ExpiredAt.Format(time.RFC3339), e.Now.Format(time.RFC3339))
}

// UnexpiredCommitmentExistsError reports a commit for a commitment that is
// still inside its validity window.
type UnexpiredCommitmentExistsError struct {
	Commitment common.Hash
}

func (e *UnexpiredCommitmentExistsError) Error() string {
	return fmt.Sprintf("unexpired commitment %s already exists", e.Commitment.Hex())
}

// InsufficientValueError reports a payment below the quoted price.
type InsufficientValueError struct {
	Required *big.Int
	Provided *big.Int
}

func (e *InsufficientValueError) Error() string {
	return fmt.Sprintf("insufficient value: required %s, provided %s", e.Required, e.Provided)
}
