package registrar

import (
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namechain/registry/datastore"
	"github.com/namechain/registry/registry"
	"github.com/namechain/registry/roles"
)

var (
	registrarAddr = common.HexToAddress("0x01")
	alice         = common.HexToAddress("0xaa")

	secret   = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	referrer = [32]byte{}
)

const yearSeconds = 365 * 24 * 3600

type fixture struct {
	registrar *Registrar
	registry  *registry.Registry
	clock     *clock.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockClock := clock.NewMock()
	mockClock.Set(time.Unix(1700000000, 0))

	roleStore := roles.NewStore(logger)
	reg := registry.New(common.HexToAddress("0x1000"), roleStore, datastore.NewStore(), mockClock, logger)
	roleStore.BootstrapRootRoles(roles.Union(roles.RoleRegistrar, roles.RoleRenew), registrarAddr)

	rgr := New(registrarAddr, reg, &FixedPriceOracle{RatePerSecond: big.NewInt(158)},
		mockClock, time.Minute, time.Hour, logger)
	return &fixture{registrar: rgr, registry: reg, clock: mockClock}
}

func (f *fixture) commit(t *testing.T, label string, duration time.Duration) common.Hash {
	t.Helper()
	commitment, err := MakeCommitment(label, alice, secret, common.Address{}, common.Address{}, duration, referrer)
	require.NoError(t, err)
	require.NoError(t, f.registrar.Commit(commitment))
	return commitment
}

func TestMakeCommitmentDeterministic(t *testing.T) {
	a, err := MakeCommitment("alice", alice, secret, common.Address{}, common.Address{}, time.Hour, referrer)
	require.NoError(t, err)
	b, err := MakeCommitment("alice", alice, secret, common.Address{}, common.Address{}, time.Hour, referrer)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// any parameter change produces a different commitment
	c, err := MakeCommitment("alice", alice, secret, common.Address{}, common.Address{}, 2*time.Hour, referrer)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestRegisterHappyPath(t *testing.T) {
	f := newFixture(t)
	duration := time.Duration(yearSeconds) * time.Second
	f.commit(t, "alice", duration)

	f.clock.Add(2 * time.Minute)

	payment := new(big.Int).Mul(big.NewInt(158), big.NewInt(yearSeconds))
	tokenID, change, err := f.registrar.Register("alice", alice, secret,
		common.Address{}, common.Address{}, duration, referrer, payment)
	require.NoError(t, err)
	require.NotNil(t, tokenID)
	assert.Zero(t, change.Sign())

	assert.Equal(t, alice, f.registry.OwnerOf(tokenID))

	// the owner received the default management roles
	resource := roles.ResourceOf("alice")
	assert.True(t, f.registry.Roles().DirectRoles(resource, alice).Eq(DefaultOwnerRoles))
}

func TestRegisterReturnsChange(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "alice", time.Hour)
	f.clock.Add(2 * time.Minute)

	required := new(big.Int).Mul(big.NewInt(158), big.NewInt(3600))
	payment := new(big.Int).Add(required, big.NewInt(42))

	_, change, err := f.registrar.Register("alice", alice, secret,
		common.Address{}, common.Address{}, time.Hour, referrer, payment)
	require.NoError(t, err)
	assert.Equal(t, int64(42), change.Int64())
}

func TestRegisterTooNew(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "alice", time.Hour)

	f.clock.Add(30 * time.Second)

	_, _, err := f.registrar.Register("alice", alice, secret,
		common.Address{}, common.Address{}, time.Hour, referrer, big.NewInt(1e18))
	var tooNew *CommitmentTooNewError
	assert.ErrorAs(t, err, &tooNew)
}

func TestRegisterExactlyAtMinAge(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "alice", time.Hour)

	// the window bounds are inclusive
	f.clock.Add(time.Minute)

	_, _, err := f.registrar.Register("alice", alice, secret,
		common.Address{}, common.Address{}, time.Hour, referrer, big.NewInt(1e18))
	assert.NoError(t, err)
}

func TestRegisterTooOld(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "alice", time.Hour)

	f.clock.Add(2 * time.Hour)

	_, _, err := f.registrar.Register("alice", alice, secret,
		common.Address{}, common.Address{}, time.Hour, referrer, big.NewInt(1e18))
	var tooOld *CommitmentTooOldError
	assert.ErrorAs(t, err, &tooOld)
}

func TestRegisterWithoutCommitment(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.registrar.Register("alice", alice, secret,
		common.Address{}, common.Address{}, time.Hour, referrer, big.NewInt(1e18))
	var tooOld *CommitmentTooOldError
	assert.ErrorAs(t, err, &tooOld, "a missing commitment reads as aged out")
}

func TestRegisterInsufficientValue(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "alice", time.Hour)
	f.clock.Add(2 * time.Minute)

	_, _, err := f.registrar.Register("alice", alice, secret,
		common.Address{}, common.Address{}, time.Hour, referrer, big.NewInt(10))
	var insufficient *InsufficientValueError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(158), big.NewInt(3600)), insufficient.Required)

	// the commitment survives a failed reveal
	_, _, err = f.registrar.Register("alice", alice, secret,
		common.Address{}, common.Address{}, time.Hour, referrer, big.NewInt(1e18))
	assert.NoError(t, err)
}

func TestRecommitWhileUnexpired(t *testing.T) {
	f := newFixture(t)
	commitment := f.commit(t, "alice", time.Hour)

	err := f.registrar.Commit(commitment)
	var unexpired *UnexpiredCommitmentExistsError
	require.ErrorAs(t, err, &unexpired)

	// after the window passes the same commitment can be re-recorded
	f.clock.Add(2 * time.Hour)
	assert.NoError(t, f.registrar.Commit(commitment))
}

func TestRenew(t *testing.T) {
	f := newFixture(t)
	f.commit(t, "alice", time.Hour)
	f.clock.Add(2 * time.Minute)
	tokenID, _, err := f.registrar.Register("alice", alice, secret,
		common.Address{}, common.Address{}, time.Hour, referrer, big.NewInt(1e18))
	require.NoError(t, err)

	before := f.registry.GetExpiry(tokenID)
	newExpiry, change, err := f.registrar.Renew("alice", time.Hour, big.NewInt(1e18))
	require.NoError(t, err)
	assert.Equal(t, before+3600, newExpiry)
	assert.Positive(t, change.Sign())
}

func TestRenewUnknownName(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.registrar.Renew("ghost", time.Hour, big.NewInt(1e18))
	var expired *registry.NameExpiredError
	assert.ErrorAs(t, err, &expired)
}

func TestRentPrice(t *testing.T) {
	f := newFixture(t)

	price, err := f.registrar.RentPrice("alice", time.Duration(yearSeconds)*time.Second)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(158), big.NewInt(yearSeconds)), price.Base)
	assert.Zero(t, price.Premium.Sign())
}
