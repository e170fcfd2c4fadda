// Package registrar implements the price-gated, commit-reveal front door
// to the registry. Clients commit a hash of their registration intent,
// wait at least the minimum commitment age, then reveal with identical
// parameters inside the validity window. The commit-reveal scheme keeps
// pending registrations unfrontrunnable.
package registrar

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/namechain/registry/interfaces"
	"github.com/namechain/registry/metrics"
	"github.com/namechain/registry/registry"
	"github.com/namechain/registry/roles"
)

// DefaultOwnerRoles is the bitmap granted to a fresh registration's owner:
// the full capability set for managing one's own name, with admin bits.
var DefaultOwnerRoles = roles.WithAdmins(roles.Union(
	roles.RoleRenew,
	roles.RoleSetSubregistry,
	roles.RoleSetResolver,
	roles.RoleSetTokenObserver,
))

// Registrar gates registrations behind a commitment window and a price
// quote. It calls into the registry under its own address, which must hold
// the registrar and renew roles on the root resource.
type Registrar struct {
	addr     common.Address
	registry *registry.Registry
	oracle   interfaces.PriceOracle
	clock    clock.Clock
	minAge   time.Duration
	maxAge   time.Duration
	log      *slog.Logger

	mu          sync.Mutex
	commitments map[common.Hash]time.Time
}

// New creates a registrar. minAge and maxAge bound the reveal window
// relative to the commit time, both bounds inclusive.
func New(addr common.Address, reg *registry.Registry, oracle interfaces.PriceOracle, clk clock.Clock, minAge, maxAge time.Duration, log *slog.Logger) *Registrar {
	return &Registrar{
		addr:        addr,
		registry:    reg,
		oracle:      oracle,
		clock:       clk,
		minAge:      minAge,
		maxAge:      maxAge,
		log:         log,
		commitments: make(map[common.Hash]time.Time),
	}
}

var commitmentArgs = abi.Arguments{
	{Type: mustNewType("string")},  // label
	{Type: mustNewType("address")}, // owner
	{Type: mustNewType("bytes32")}, // secret
	{Type: mustNewType("address")}, // subregistry
	{Type: mustNewType("address")}, // resolver
	{Type: mustNewType("uint64")},  // duration in seconds
	{Type: mustNewType("bytes32")}, // referrer
}

func mustNewType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

// MakeCommitment computes the commitment hash for a registration intent.
// Reveal parameters must match exactly.
func MakeCommitment(label string, owner common.Address, secret [32]byte, subregistry, resolver common.Address, duration time.Duration, referrer [32]byte) (common.Hash, error) {
	packed, err := commitmentArgs.Pack(label, owner, secret, subregistry, resolver, uint64(duration/time.Second), referrer)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack commitment: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// Commit records a commitment at the current time. Re-committing while a
// previous commitment for the same hash is still inside its window fails.
func (r *Registrar) Commit(commitment common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if existing, ok := r.commitments[commitment]; ok && !now.After(existing.Add(r.maxAge)) {
		return &UnexpiredCommitmentExistsError{Commitment: commitment}
	}
	r.commitments[commitment] = now
	r.log.Debug("commitment recorded", "commitment", commitment.Hex())
	return nil
}

// Register reveals a commitment and registers the name. payment must cover
// the oracle's quote; the overpayment is returned as change. The
// commitment is consumed only on success.
func (r *Registrar) Register(label string, owner common.Address, secret [32]byte, subregistry, resolver common.Address, duration time.Duration, referrer [32]byte, payment *big.Int) (*uint256.Int, *big.Int, error) {
	commitment, err := MakeCommitment(label, owner, secret, subregistry, resolver, duration, referrer)
	if err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	commitTime := r.commitments[commitment] // zero time when absent: fails the max-age bound
	if now.Before(commitTime.Add(r.minAge)) {
		return nil, nil, &CommitmentTooNewError{Commitment: commitment, ValidAt: commitTime.Add(r.minAge), Now: now}
	}
	if now.After(commitTime.Add(r.maxAge)) {
		return nil, nil, &CommitmentTooOldError{Commitment: commitment, ExpiredAt: commitTime.Add(r.maxAge), Now: now}
	}

	change, err := r.settle(label, duration, payment)
	if err != nil {
		return nil, nil, err
	}

	expiry := uint64(now.Add(duration).Unix())
	tokenID, err := r.registry.Register(r.addr, label, owner, subregistry, resolver, DefaultOwnerRoles, expiry)
	if err != nil {
		return nil, nil, err
	}

	delete(r.commitments, commitment)
	metrics.RegistrationsTotal.Inc()
	return tokenID, change, nil
}

// Renew extends an active name by duration. payment must cover the quote;
// change is returned exactly.
func (r *Registrar) Renew(label string, duration time.Duration, payment *big.Int) (uint64, *big.Int, error) {
	tokenID, ok := r.registry.TokenIDOf(label)
	if !ok {
		resource := roles.ResourceOf(label)
		return 0, nil, &registry.NameExpiredError{TokenID: new(uint256.Int).SetBytes(resource[:])}
	}

	change, err := r.settle(label, duration, payment)
	if err != nil {
		return 0, nil, err
	}

	newExpiry := r.registry.GetExpiry(tokenID) + uint64(duration/time.Second)
	if err := r.registry.Renew(r.addr, tokenID, newExpiry); err != nil {
		return 0, nil, err
	}
	metrics.RenewalsTotal.Inc()
	return newExpiry, change, nil
}

// RentPrice quotes the total price for label over duration.
func (r *Registrar) RentPrice(label string, duration time.Duration) (interfaces.Price, error) {
	return r.oracle.RentPrice(label, duration)
}

// settle checks payment against the quote and computes exact change.
func (r *Registrar) settle(label string, duration time.Duration, payment *big.Int) (*big.Int, error) {
	price, err := r.oracle.RentPrice(label, duration)
	if err != nil {
		return nil, fmt.Errorf("rent price for %q: %w", label, err)
	}
	required := price.Total()
	if payment == nil || payment.Cmp(required) < 0 {
		provided := payment
		if provided == nil {
			provided = new(big.Int)
		}
		return nil, &InsufficientValueError{Required: required, Provided: provided}
	}
	return new(big.Int).Sub(payment, required), nil
}
