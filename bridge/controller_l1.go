package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/namechain/registry/interfaces"
	"github.com/namechain/registry/metrics"
	"github.com/namechain/registry/registry"
)

// L1Controller applies inbound bridge messages to the L1 registry and
// forwards L1-side events toward the L2 chain.
//
// Renewal messages flow L1 to L2 only: names ejected to L1 are renewed on
// L1 and the new expiry is synced down. An inbound renewal is therefore
// rejected here, by protocol design rather than omission.
type L1Controller struct {
	addr     common.Address
	registry *registry.Registry
	sender   interfaces.BridgeSender
	log      *slog.Logger
}

// NewL1Controller creates the L1-side controller. addr is the identity the
// controller uses when calling into the registry; it must hold the
// registrar role on the root resource.
func NewL1Controller(addr common.Address, reg *registry.Registry, sender interfaces.BridgeSender, log *slog.Logger) *L1Controller {
	return &L1Controller{addr: addr, registry: reg, sender: sender, log: log}
}

// ReceiveMessage decodes and applies one inbound bridge message.
func (c *L1Controller) ReceiveMessage(ctx context.Context, message []byte) error {
	t := GetMessageType(message)
	metrics.BridgeMessagesReceived.WithLabelValues("l1", t.String()).Inc()
	c.log.Info("message received", "chain", "l1", "type", t.String())

	switch t {
	case MessageTypeEjection:
		data, err := DecodeEjection(message)
		if err != nil {
			return err
		}
		return c.applyTransfer(data, "ejection")
	case MessageTypeMigration:
		data, err := DecodeMigration(message)
		if err != nil {
			return err
		}
		return c.applyTransfer(data.Transfer, "migration")
	case MessageTypeRenewal:
		return ErrRenewalNotSupported
	default:
		return &UnknownMessageTypeError{Got: t}
	}
}

// EjectToL2 moves a name's authority to the L2 registry by sending an
// ejection message across the bridge.
func (c *L1Controller) EjectToL2(ctx context.Context, data TransferData) error {
	message, err := EncodeEjection(data)
	if err != nil {
		return err
	}
	if err := c.sender.SendMessage(ctx, message); err != nil {
		return fmt.Errorf("send ejection: %w", err)
	}
	metrics.BridgeMessagesSent.WithLabelValues("l1", MessageTypeEjection.String()).Inc()
	label, _ := data.Label()
	c.log.Info("name ejected to L2", "label", label, "owner", data.Owner.Hex())
	return nil
}

// OnRenew implements registry.TokenObserver: a renewal of an ejected name
// on L1 is synced to L2 so both chains agree on the expiry. A send failure
// aborts the renewal.
func (c *L1Controller) OnRenew(tokenID *uint256.Int, newExpiry uint64, renewedBy common.Address) error {
	message, err := EncodeRenewal(tokenID, newExpiry)
	if err != nil {
		return err
	}
	if err := c.sender.SendMessage(context.Background(), message); err != nil {
		return fmt.Errorf("sync renewal: %w", err)
	}
	metrics.BridgeMessagesSent.WithLabelValues("l1", MessageTypeRenewal.String()).Inc()
	return nil
}

// OnRelinquish implements registry.TokenObserver.
func (c *L1Controller) OnRelinquish(tokenID *uint256.Int, relinquishedBy common.Address) error {
	return nil
}

func (c *L1Controller) applyTransfer(data TransferData, origin string) error {
	label, err := data.Label()
	if err != nil {
		return err
	}
	// A name can bounce between chains: an inbound transfer may land on a
	// still-active local record, which it overwrites.
	tokenID, err := c.registry.BridgeSync(c.addr, label, data.Owner, data.Subregistry, data.Resolver, data.RoleBitmap, data.Expiry)
	if err != nil {
		return fmt.Errorf("apply %s for %q: %w", origin, label, err)
	}
	// The controller observes the name so L1-side renewals sync back to L2.
	if err := c.registry.SetTokenObserver(c.addr, tokenID, c); err != nil {
		return fmt.Errorf("install renewal observer for %q: %w", label, err)
	}
	c.log.Info("name ejected to L1", "label", label, "owner", data.Owner.Hex(), "tokenId", tokenID.Hex(), "origin", origin)
	return nil
}
