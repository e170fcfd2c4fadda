package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/namechain/registry/bridge"
	"github.com/namechain/registry/interfaces"
	"github.com/namechain/registry/registry"
)

// controllerBase holds the state shared by the locked and unlocked
// migration paths: the target registry, the legacy wrapper surface, the
// two legacy contracts allowed to deliver transfers, and the optional
// bridge sender for cross-chain forwarding.
type controllerBase struct {
	addr            common.Address
	registry        *registry.Registry
	wrapper         LegacyNameWrapper
	legacyWrapper   common.Address
	legacyRegistrar common.Address
	sender          interfaces.BridgeSender
	log             *slog.Logger
}

func (c *controllerBase) checkCaller(caller common.Address) error {
	if caller != c.legacyWrapper && caller != c.legacyRegistrar {
		return &UnauthorizedCallerError{Caller: caller}
	}
	return nil
}

// decodeInstructions decodes the embedded migration payload and validates
// name identity: the name must be a direct child of .eth and the
// transferred token id must be the label hash of the payload's label.
func (c *controllerBase) decodeInstructions(tokenID *uint256.Int, data []byte) (bridge.MigrationData, string, error) {
	md, err := bridge.DecodeMigration(data)
	if err != nil {
		return bridge.MigrationData{}, "", err
	}

	labels, err := bridge.UnpackLabels(md.Transfer.Name)
	if err != nil {
		return bridge.MigrationData{}, "", err
	}
	if len(labels) != 2 || labels[1] != "eth" {
		name, _ := bridge.UnpackName(md.Transfer.Name)
		return bridge.MigrationData{}, "", &NameNotETH2LDError{Name: name}
	}
	label := labels[0]

	expected := new(uint256.Int).SetBytes(crypto.Keccak256([]byte(label)))
	if !tokenID.Eq(expected) {
		return bridge.MigrationData{}, "", &TokenIdMismatchError{Actual: tokenID, Expected: expected}
	}
	return md, label, nil
}

// forward re-encodes the migration with the granted role bitmap and sends
// it across the bridge when the instruction directs the name off this
// chain.
func (c *controllerBase) forward(ctx context.Context, md bridge.MigrationData, granted *uint256.Int) error {
	if md.ToL1 || c.sender == nil {
		return nil
	}
	md.Transfer.RoleBitmap = granted
	message, err := bridge.EncodeMigration(md)
	if err != nil {
		return err
	}
	if err := c.sender.SendMessage(ctx, message); err != nil {
		return fmt.Errorf("forward migration: %w", err)
	}
	return nil
}
