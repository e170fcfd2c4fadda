package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/namechain/registry/interfaces"
	"github.com/namechain/registry/metrics"
	"github.com/namechain/registry/registry"
)

// L2Controller applies inbound bridge messages to the Namechain registry.
// Unlike the L1 side it accepts renewal messages: expiries for names that
// were ejected to L1 are kept in sync from there.
type L2Controller struct {
	addr     common.Address
	registry *registry.Registry
	sender   interfaces.BridgeSender
	log      *slog.Logger
}

// NewL2Controller creates the L2-side controller. addr must hold the
// registrar and renew roles on the root resource of the L2 registry.
func NewL2Controller(addr common.Address, reg *registry.Registry, sender interfaces.BridgeSender, log *slog.Logger) *L2Controller {
	return &L2Controller{addr: addr, registry: reg, sender: sender, log: log}
}

// ReceiveMessage decodes and applies one inbound bridge message.
func (c *L2Controller) ReceiveMessage(ctx context.Context, message []byte) error {
	t := GetMessageType(message)
	metrics.BridgeMessagesReceived.WithLabelValues("l2", t.String()).Inc()
	c.log.Info("message received", "chain", "l2", "type", t.String())

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
		tokenID, newExpiry, err := DecodeRenewal(message)
		if err != nil {
			return err
		}
		// The id was minted by the other chain's registry; version
		// counters diverge per chain, so only its resource part is used.
		resource := c.registry.GetTokenIDResource(tokenID)
		if err := c.registry.RenewResource(c.addr, resource, newExpiry); err != nil {
			return fmt.Errorf("apply renewal for token %s: %w", tokenID.Hex(), err)
		}
		c.log.Info("renewal synced", "tokenId", tokenID.Hex(), "expiry", newExpiry)
		return nil
	default:
		return &UnknownMessageTypeError{Got: t}
	}
}

// EjectToL1 moves a name's authority to the L1 registry by sending an
// ejection message across the bridge.
func (c *L2Controller) EjectToL1(ctx context.Context, data TransferData) error {
	message, err := EncodeEjection(data)
	if err != nil {
		return err
	}
	if err := c.sender.SendMessage(ctx, message); err != nil {
		return fmt.Errorf("send ejection: %w", err)
	}
	metrics.BridgeMessagesSent.WithLabelValues("l2", MessageTypeEjection.String()).Inc()
	label, _ := data.Label()
	c.log.Info("name ejected to L1", "label", label, "owner", data.Owner.Hex())
	return nil
}

func (c *L2Controller) applyTransfer(data TransferData, origin string) error {
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
	c.log.Info("name ejected to L2", "label", label, "owner", data.Owner.Hex(), "tokenId", tokenID.Hex(), "origin", origin)
	return nil
}

var _ interfaces.BridgeMessageHandler = (*L1Controller)(nil)
var _ interfaces.BridgeMessageHandler = (*L2Controller)(nil)
var _ registry.TokenObserver = (*L1Controller)(nil)
