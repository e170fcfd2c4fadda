package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/namechain/registry/bridge"
	"github.com/namechain/registry/interfaces"
	"github.com/namechain/registry/metrics"
	"github.com/namechain/registry/registry"
)

// UnlockedController migrates unlocked legacy names. The caller-supplied
// owner, pointers and role bitmap from the payload are honored directly.
// A name with the irrevocable lock flag set is refused: locked names must
// go through the locked path, and exactly one path accepts any given name.
type UnlockedController struct {
	controllerBase
}

// NewUnlockedController creates the unlocked-path controller. See
// NewLockedController for the parameters.
func NewUnlockedController(addr common.Address, reg *registry.Registry, wrapper LegacyNameWrapper, legacyWrapper, legacyRegistrar common.Address, sender interfaces.BridgeSender, log *slog.Logger) *UnlockedController {
	return &UnlockedController{controllerBase{
		addr:            addr,
		registry:        reg,
		wrapper:         wrapper,
		legacyWrapper:   legacyWrapper,
		legacyRegistrar: legacyRegistrar,
		sender:          sender,
		log:             log,
	}}
}

type unlockedItem struct {
	tokenID *uint256.Int
	label   string
	md      bridge.MigrationData
}

// HandleTransfer processes a single legacy token transfer carrying
// migration instructions.
func (c *UnlockedController) HandleTransfer(ctx context.Context, caller, from common.Address, tokenID *uint256.Int, data []byte) error {
	item, err := c.validate(ctx, caller, tokenID, data, nil)
	if err != nil {
		return err
	}
	return c.apply(ctx, item)
}

// HandleBatchTransfer processes an ordered list of transfers, validating
// every element before applying any. The first invalid element aborts the
// whole batch.
func (c *UnlockedController) HandleBatchTransfer(ctx context.Context, caller, from common.Address, tokenIDs []*uint256.Int, datas [][]byte) error {
	if len(tokenIDs) != len(datas) {
		return fmt.Errorf("batch length mismatch: %d token ids, %d payloads", len(tokenIDs), len(datas))
	}

	seen := make(map[string]bool, len(tokenIDs))
	items := make([]unlockedItem, 0, len(tokenIDs))
	for i := range tokenIDs {
		item, err := c.validate(ctx, caller, tokenIDs[i], datas[i], seen)
		if err != nil {
			return fmt.Errorf("batch element %d: %w", i, err)
		}
		items = append(items, item)
	}
	for _, item := range items {
		if err := c.apply(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (c *UnlockedController) validate(ctx context.Context, caller common.Address, tokenID *uint256.Int, data []byte, seen map[string]bool) (unlockedItem, error) {
	if err := c.checkCaller(caller); err != nil {
		return unlockedItem{}, err
	}
	md, label, err := c.decodeInstructions(tokenID, data)
	if err != nil {
		return unlockedItem{}, err
	}
	if seen != nil {
		if seen[label] {
			return unlockedItem{}, &registry.NameAlreadyRegisteredError{Label: label}
		}
		seen[label] = true
	}
	if _, active := c.registry.Info(label); active {
		return unlockedItem{}, &registry.NameAlreadyRegisteredError{Label: label}
	}
	// Checked up front so a batch cannot fail mid-apply on a stale expiry.
	if md.Transfer.Expiry <= c.registry.Now() {
		return unlockedItem{}, fmt.Errorf("expiry %d for %q is not in the future", md.Transfer.Expiry, label)
	}

	_, fuses, _, err := c.wrapper.GetData(ctx, tokenID)
	if err != nil {
		return unlockedItem{}, fmt.Errorf("read legacy state for %q: %w", label, err)
	}
	if fuses&FuseCannotUnwrap != 0 {
		return unlockedItem{}, &NameIsLockedError{Label: label}
	}

	return unlockedItem{tokenID: tokenID, label: label, md: md}, nil
}

func (c *UnlockedController) apply(ctx context.Context, item unlockedItem) error {
	transfer := item.md.Transfer
	newID, err := c.registry.Register(c.addr, item.label, transfer.Owner, transfer.Subregistry, transfer.Resolver, transfer.RoleBitmap, transfer.Expiry)
	if err != nil {
		return fmt.Errorf("migrate %q: %w", item.label, err)
	}

	if err := c.forward(ctx, item.md, transfer.RoleBitmap); err != nil {
		return err
	}

	metrics.MigrationsTotal.WithLabelValues("unlocked").Inc()
	c.log.Info("unlocked name migrated",
		"label", item.label,
		"owner", transfer.Owner.Hex(),
		"tokenId", newID.Hex(),
	)
	return nil
}
