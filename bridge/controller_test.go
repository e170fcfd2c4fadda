package bridge

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namechain/registry/datastore"
	"github.com/namechain/registry/registry"
	"github.com/namechain/registry/roles"
)

var (
	l1ControllerAddr = common.HexToAddress("0x21")
	l2ControllerAddr = common.HexToAddress("0x22")
	nameOwner        = common.HexToAddress("0xaa")
)

var controllerRoles = roles.Union(
	roles.RoleRegistrar,
	roles.RoleRenew,
	roles.RoleSetTokenObserver,
	roles.RoleBridge,
)

type capturingSender struct {
	messages [][]byte
}

func (s *capturingSender) SendMessage(ctx context.Context, message []byte) error {
	s.messages = append(s.messages, message)
	return nil
}

func newChainRegistry(t *testing.T, addr common.Address, controller common.Address, clk clock.Clock) *registry.Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	roleStore := roles.NewStore(logger)
	reg := registry.New(addr, roleStore, datastore.NewStore(), clk, logger)
	roleStore.BootstrapRootRoles(controllerRoles, controller)
	return reg
}

func testTransfer(t *testing.T, label string, expiry uint64) TransferData {
	t.Helper()
	return TransferData{
		Name:       mustPackName(t, label+".eth"),
		Owner:      nameOwner,
		Expiry:     expiry,
		RoleBitmap: roles.WithAdmins(roles.RoleRenew),
	}
}

func TestL1RejectsInboundRenewal(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := newChainRegistry(t, common.HexToAddress("0x11"), l1ControllerAddr, clk)
	controller := NewL1Controller(l1ControllerAddr, reg, &capturingSender{}, logger)

	message, err := EncodeRenewal(uint256.NewInt(1), 42)
	require.NoError(t, err)

	err = controller.ReceiveMessage(context.Background(), message)
	assert.ErrorIs(t, err, ErrRenewalNotSupported)
}

func TestL1AppliesEjection(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := newChainRegistry(t, common.HexToAddress("0x11"), l1ControllerAddr, clk)
	controller := NewL1Controller(l1ControllerAddr, reg, &capturingSender{}, logger)

	expiry := uint64(clk.Now().Add(24 * time.Hour).Unix())
	message, err := EncodeEjection(testTransfer(t, "alice", expiry))
	require.NoError(t, err)

	require.NoError(t, controller.ReceiveMessage(context.Background(), message))

	info, ok := reg.Info("alice")
	require.True(t, ok)
	assert.Equal(t, nameOwner, info.Owner)
	assert.Equal(t, expiry, info.Expiry)
}

func TestEjectionOverwritesActiveLocalRecord(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := newChainRegistry(t, common.HexToAddress("0x11"), l1ControllerAddr, clk)
	controller := NewL1Controller(l1ControllerAddr, reg, &capturingSender{}, logger)

	// a name that previously moved away can be ejected back while the
	// stale local record is still unexpired
	oldExpiry := uint64(clk.Now().Add(24 * time.Hour).Unix())
	_, err := reg.Register(l1ControllerAddr, "alice", common.HexToAddress("0xcc"),
		common.Address{}, common.Address{}, nil, oldExpiry)
	require.NoError(t, err)

	newExpiry := oldExpiry + 7200
	message, err := EncodeEjection(testTransfer(t, "alice", newExpiry))
	require.NoError(t, err)
	require.NoError(t, controller.ReceiveMessage(context.Background(), message))

	info, ok := reg.Info("alice")
	require.True(t, ok)
	assert.Equal(t, nameOwner, info.Owner)
	assert.Equal(t, newExpiry, info.Expiry)
}

func TestL1RenewalSyncsToL2(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	l1Registry := newChainRegistry(t, common.HexToAddress("0x11"), l1ControllerAddr, clk)
	sender := &capturingSender{}
	controller := NewL1Controller(l1ControllerAddr, l1Registry, sender, logger)

	expiry := uint64(clk.Now().Add(24 * time.Hour).Unix())
	message, err := EncodeEjection(testTransfer(t, "alice", expiry))
	require.NoError(t, err)
	require.NoError(t, controller.ReceiveMessage(context.Background(), message))

	// the owner renews on L1; the observer ships a renewal message
	tokenID, ok := l1Registry.TokenIDOf("alice")
	require.True(t, ok)
	newExpiry := expiry + 3600
	require.NoError(t, l1Registry.Renew(nameOwner, tokenID, newExpiry))

	require.Len(t, sender.messages, 1)
	syncedID, syncedExpiry, err := DecodeRenewal(sender.messages[0])
	require.NoError(t, err)
	assert.True(t, syncedID.Eq(tokenID))
	assert.Equal(t, newExpiry, syncedExpiry)
}

func TestL2AppliesInboundRenewal(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := newChainRegistry(t, common.HexToAddress("0x12"), l2ControllerAddr, clk)
	controller := NewL2Controller(l2ControllerAddr, reg, &capturingSender{}, logger)

	expiry := uint64(clk.Now().Add(24 * time.Hour).Unix())
	ejection, err := EncodeEjection(testTransfer(t, "alice", expiry))
	require.NoError(t, err)
	require.NoError(t, controller.ReceiveMessage(context.Background(), ejection))

	tokenID, ok := reg.TokenIDOf("alice")
	require.True(t, ok)

	renewal, err := EncodeRenewal(tokenID, expiry+7200)
	require.NoError(t, err)
	require.NoError(t, controller.ReceiveMessage(context.Background(), renewal))

	assert.Equal(t, expiry+7200, reg.GetExpiry(tokenID))
}

func TestInboundRenewalIgnoresForeignVersionCounters(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := newChainRegistry(t, common.HexToAddress("0x12"), l2ControllerAddr, clk)
	controller := NewL2Controller(l2ControllerAddr, reg, &capturingSender{}, logger)

	expiry := uint64(clk.Now().Add(24 * time.Hour).Unix())
	ejection, err := EncodeEjection(testTransfer(t, "alice", expiry))
	require.NoError(t, err)
	require.NoError(t, controller.ReceiveMessage(context.Background(), ejection))

	// a local role mutation regenerates the token id, so the id the other
	// chain renews under no longer matches this registry's version word
	foreignID, ok := reg.TokenIDOf("alice")
	require.True(t, ok)
	resource := roles.ResourceOf("alice")
	_, err = reg.Roles().GrantRoles(resource, roles.RoleRenew, common.HexToAddress("0xbb"), nameOwner)
	require.NoError(t, err)
	currentID, ok := reg.TokenIDOf("alice")
	require.True(t, ok)
	require.False(t, currentID.Eq(foreignID))

	renewal, err := EncodeRenewal(foreignID, expiry+7200)
	require.NoError(t, err)
	require.NoError(t, controller.ReceiveMessage(context.Background(), renewal))

	info, ok := reg.Info("alice")
	require.True(t, ok)
	assert.Equal(t, expiry+7200, info.Expiry)
}

func TestEjectToL2SendsMessage(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := newChainRegistry(t, common.HexToAddress("0x11"), l1ControllerAddr, clk)
	sender := &capturingSender{}
	controller := NewL1Controller(l1ControllerAddr, reg, sender, logger)

	data := testTransfer(t, "alice", uint64(clk.Now().Add(time.Hour).Unix()))
	require.NoError(t, controller.EjectToL2(context.Background(), data))

	require.Len(t, sender.messages, 1)
	decoded, err := DecodeEjection(sender.messages[0])
	require.NoError(t, err)
	assert.Equal(t, data.Owner, decoded.Owner)
}

func TestRoundTripEjectionBetweenChains(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	l1Registry := newChainRegistry(t, common.HexToAddress("0x11"), l1ControllerAddr, clk)
	l2Registry := newChainRegistry(t, common.HexToAddress("0x12"), l2ControllerAddr, clk)

	relayToL1 := NewRelay(nil, nil, logger)
	relayToL2 := NewRelay(nil, nil, logger)
	l1Controller := NewL1Controller(l1ControllerAddr, l1Registry, relayToL2, logger)
	l2Controller := NewL2Controller(l2ControllerAddr, l2Registry, relayToL1, logger)
	relayToL1.SetDestination(l1Controller)
	relayToL2.SetDestination(l2Controller)

	// the name lives on L2 before its authority moves to L1
	expiry := uint64(clk.Now().Add(24 * time.Hour).Unix())
	_, err := l2Registry.Register(l2ControllerAddr, "alice", nameOwner,
		common.Address{}, common.Address{}, roles.WithAdmins(roles.RoleRenew), expiry)
	require.NoError(t, err)

	require.NoError(t, l2Controller.EjectToL1(context.Background(), testTransfer(t, "alice", expiry)))

	info, ok := l1Registry.Info("alice")
	require.True(t, ok)
	assert.Equal(t, nameOwner, info.Owner)

	// renewing the ejected name on L1 keeps L2 in sync automatically
	tokenID, ok := l1Registry.TokenIDOf("alice")
	require.True(t, ok)
	require.NoError(t, l1Registry.Renew(nameOwner, tokenID, expiry+3600))

	l2TokenID, ok := l2Registry.TokenIDOf("alice")
	require.True(t, ok)
	assert.Equal(t, expiry+3600, l2Registry.GetExpiry(l2TokenID))
}
