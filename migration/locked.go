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

// LockedController migrates locked legacy names. The destination role
// bitmap is never taken from the transfer payload: it is derived from the
// legacy fuse state alone (RolesFromFuses). After the new-registry
// registration commits, the remaining optional fuses are burned, making
// the legacy token permanently immutable. The burn happens strictly after
// the registration so a partial failure can never strand a fully locked
// legacy token without its new-registry analog.
type LockedController struct {
	controllerBase
}

// NewLockedController creates the locked-path controller. addr is the
// identity used when registering into reg; it must hold the registrar role
// on the root resource. legacyWrapper and legacyRegistrar are the only two
// contracts allowed to deliver transfers.
func NewLockedController(addr common.Address, reg *registry.Registry, wrapper LegacyNameWrapper, legacyWrapper, legacyRegistrar common.Address, sender interfaces.BridgeSender, log *slog.Logger) *LockedController {
	return &LockedController{controllerBase{
		addr:            addr,
		registry:        reg,
		wrapper:         wrapper,
		legacyWrapper:   legacyWrapper,
		legacyRegistrar: legacyRegistrar,
		sender:          sender,
		log:             log,
	}}
}

// lockedItem is a fully validated migration ready to apply.
type lockedItem struct {
	tokenID *uint256.Int
	label   string
	md      bridge.MigrationData
	derived *uint256.Int
}

// HandleTransfer processes a single legacy token transfer carrying
// migration instructions.
func (c *LockedController) HandleTransfer(ctx context.Context, caller, from common.Address, tokenID *uint256.Int, data []byte) error {
	item, err := c.validate(ctx, caller, tokenID, data, nil)
	if err != nil {
		return err
	}
	return c.apply(ctx, item)
}

// HandleBatchTransfer processes an ordered list of transfers. Validation
// is two-phase: every element is checked before anything is applied, so
// the first invalid element aborts the batch with no partial application.
func (c *LockedController) HandleBatchTransfer(ctx context.Context, caller, from common.Address, tokenIDs []*uint256.Int, datas [][]byte) error {
	if len(tokenIDs) != len(datas) {
		return fmt.Errorf("batch length mismatch: %d token ids, %d payloads", len(tokenIDs), len(datas))
	}

	seen := make(map[string]bool, len(tokenIDs))
	items := make([]lockedItem, 0, len(tokenIDs))
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

func (c *LockedController) validate(ctx context.Context, caller common.Address, tokenID *uint256.Int, data []byte, seen map[string]bool) (lockedItem, error) {
	if err := c.checkCaller(caller); err != nil {
		return lockedItem{}, err
	}
	md, label, err := c.decodeInstructions(tokenID, data)
	if err != nil {
		return lockedItem{}, err
	}
	if seen != nil {
		if seen[label] {
			return lockedItem{}, &registry.NameAlreadyRegisteredError{Label: label}
		}
		seen[label] = true
	}
	if _, active := c.registry.Info(label); active {
		return lockedItem{}, &registry.NameAlreadyRegisteredError{Label: label}
	}
	// Every business rule Register enforces is checked here, so a batch
	// can never fail after earlier elements were applied and sealed.
	if md.Transfer.Expiry <= c.registry.Now() {
		return lockedItem{}, fmt.Errorf("expiry %d for %q is not in the future", md.Transfer.Expiry, label)
	}

	_, fuses, _, err := c.wrapper.GetData(ctx, tokenID)
	if err != nil {
		return lockedItem{}, fmt.Errorf("read legacy state for %q: %w", label, err)
	}
	if fuses&FuseCannotUnwrap == 0 {
		return lockedItem{}, &NameNotLockedError{Label: label}
	}
	if fuses&FuseCannotBurnFuses != 0 {
		return lockedItem{}, &InconsistentFusesStateError{Fuses: fuses}
	}

	return lockedItem{tokenID: tokenID, label: label, md: md, derived: RolesFromFuses(fuses)}, nil
}

func (c *LockedController) apply(ctx context.Context, item lockedItem) error {
	transfer := item.md.Transfer
	newID, err := c.registry.Register(c.addr, item.label, transfer.Owner, transfer.Subregistry, transfer.Resolver, item.derived, transfer.Expiry)
	if err != nil {
		return fmt.Errorf("migrate %q: %w", item.label, err)
	}

	// The legacy token is sealed only once the new registration is
	// committed.
	if err := c.wrapper.SetFuses(ctx, item.tokenID, optionalFuses); err != nil {
		return fmt.Errorf("burn legacy fuses for %q: %w", item.label, err)
	}

	if err := c.forward(ctx, item.md, item.derived); err != nil {
		return err
	}

	metrics.MigrationsTotal.WithLabelValues("locked").Inc()
	c.log.Info("locked name migrated",
		"label", item.label,
		"owner", transfer.Owner.Hex(),
		"tokenId", newID.Hex(),
		"roles", item.derived.Hex(),
	)
	return nil
}
