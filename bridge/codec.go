// Package bridge implements the cross-chain message codec and the
// per-chain controllers that translate bridge messages into registry
// operations.
//
// Messages are ABI-encoded with a leading uint8 type discriminant, so the
// wire format stays byte-stable across the two chains' independent
// deployments and the message type is readable without decoding the
// payload.
package bridge

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MessageType discriminates bridge message payloads.
type MessageType uint8

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeEjection
	MessageTypeRenewal
	MessageTypeMigration
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageTypeEjection:
		return "ejection"
	case MessageTypeRenewal:
		return "renewal"
	case MessageTypeMigration:
		return "migration"
	default:
		return "unknown"
	}
}

// TransferData carries a name's full record across the bridge. Name is in
// DNS wire format (see PackName).
type TransferData struct {
	Name        []byte
	Owner       common.Address
	Subregistry common.Address
	Resolver    common.Address
	Expiry      uint64
	RoleBitmap  *uint256.Int
}

// Label returns the first label of the DNS-encoded name.
func (t TransferData) Label() (string, error) {
	labels, err := UnpackLabels(t.Name)
	if err != nil {
		return "", err
	}
	if len(labels) == 0 {
		return "", fmt.Errorf("empty name")
	}
	return labels[0], nil
}

// MigrationData is a TransferData plus migration routing: ToL1 directs the
// converted name to stay on L1 instead of moving to the L2 registry, and
// Data carries controller-specific auxiliary bytes (salt, extra records).
type MigrationData struct {
	Transfer TransferData
	ToL1     bool
	Data     []byte
}

var (
	typeUint8   = mustNewType("uint8")
	typeUint64  = mustNewType("uint64")
	typeUint256 = mustNewType("uint256")
	typeAddress = mustNewType("address")
	typeBytes   = mustNewType("bytes")
	typeBool    = mustNewType("bool")

	transferArgs = abi.Arguments{
		{Type: typeUint8},   // discriminant
		{Type: typeBytes},   // dns-encoded name
		{Type: typeAddress}, // owner
		{Type: typeAddress}, // subregistry
		{Type: typeAddress}, // resolver
		{Type: typeUint64},  // expiry
		{Type: typeUint256}, // role bitmap
	}

	renewalArgs = abi.Arguments{
		{Type: typeUint8},   // discriminant
		{Type: typeUint256}, // token id
		{Type: typeUint64},  // new expiry
	}

	migrationArgs = abi.Arguments{
		{Type: typeUint8},   // discriminant
		{Type: typeBytes},   // dns-encoded name
		{Type: typeAddress}, // owner
		{Type: typeAddress}, // subregistry
		{Type: typeAddress}, // resolver
		{Type: typeUint64},  // expiry
		{Type: typeUint256}, // role bitmap
		{Type: typeBool},    // to L1
		{Type: typeBytes},   // auxiliary data
	}
)

func mustNewType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

// GetMessageType peeks the leading discriminant without decoding the
// payload. Malformed prefixes report MessageTypeUnknown.
func GetMessageType(message []byte) MessageType {
	if len(message) < 32 {
		return MessageTypeUnknown
	}
	for _, b := range message[:31] {
		if b != 0 {
			return MessageTypeUnknown
		}
	}
	switch t := MessageType(message[31]); t {
	case MessageTypeEjection, MessageTypeRenewal, MessageTypeMigration:
		return t
	default:
		return MessageTypeUnknown
	}
}

// EncodeEjection encodes a name ejection message.
func EncodeEjection(data TransferData) ([]byte, error) {
	packed, err := transferArgs.Pack(
		uint8(MessageTypeEjection),
		data.Name,
		data.Owner,
		data.Subregistry,
		data.Resolver,
		data.Expiry,
		bitmapToBig(data.RoleBitmap),
	)
	if err != nil {
		return nil, fmt.Errorf("encode ejection: %w", err)
	}
	return packed, nil
}

// DecodeEjection decodes an ejection message, rejecting other message
// kinds with InvalidEjectionMessageTypeError.
func DecodeEjection(message []byte) (TransferData, error) {
	if t := GetMessageType(message); t != MessageTypeEjection {
		return TransferData{}, &InvalidEjectionMessageTypeError{Got: t}
	}
	values, err := transferArgs.Unpack(message)
	if err != nil {
		return TransferData{}, fmt.Errorf("decode ejection payload: %w", err)
	}
	return transferFromValues(values[1:])
}

// EncodeRenewal encodes a renewal synchronization message.
func EncodeRenewal(tokenID *uint256.Int, newExpiry uint64) ([]byte, error) {
	packed, err := renewalArgs.Pack(uint8(MessageTypeRenewal), bitmapToBig(tokenID), newExpiry)
	if err != nil {
		return nil, fmt.Errorf("encode renewal: %w", err)
	}
	return packed, nil
}

// DecodeRenewal decodes a renewal message, rejecting other message kinds
// with InvalidRenewalMessageTypeError.
func DecodeRenewal(message []byte) (*uint256.Int, uint64, error) {
	if t := GetMessageType(message); t != MessageTypeRenewal {
		return nil, 0, &InvalidRenewalMessageTypeError{Got: t}
	}
	values, err := renewalArgs.Unpack(message)
	if err != nil {
		return nil, 0, fmt.Errorf("decode renewal payload: %w", err)
	}
	tokenID, overflow := uint256.FromBig(values[1].(*big.Int))
	if overflow {
		return nil, 0, fmt.Errorf("decode renewal payload: token id overflows uint256")
	}
	return tokenID, values[2].(uint64), nil
}

// EncodeMigration encodes a migration instruction message.
func EncodeMigration(data MigrationData) ([]byte, error) {
	packed, err := migrationArgs.Pack(
		uint8(MessageTypeMigration),
		data.Transfer.Name,
		data.Transfer.Owner,
		data.Transfer.Subregistry,
		data.Transfer.Resolver,
		data.Transfer.Expiry,
		bitmapToBig(data.Transfer.RoleBitmap),
		data.ToL1,
		data.Data,
	)
	if err != nil {
		return nil, fmt.Errorf("encode migration: %w", err)
	}
	return packed, nil
}

// DecodeMigration decodes a migration message, rejecting other message
// kinds with InvalidMigrationMessageTypeError.
func DecodeMigration(message []byte) (MigrationData, error) {
	if t := GetMessageType(message); t != MessageTypeMigration {
		return MigrationData{}, &InvalidMigrationMessageTypeError{Got: t}
	}
	values, err := migrationArgs.Unpack(message)
	if err != nil {
		return MigrationData{}, fmt.Errorf("decode migration payload: %w", err)
	}
	transfer, err := transferFromValues(values[1:7])
	if err != nil {
		return MigrationData{}, err
	}
	return MigrationData{
		Transfer: transfer,
		ToL1:     values[7].(bool),
		Data:     values[8].([]byte),
	}, nil
}

func transferFromValues(values []interface{}) (TransferData, error) {
	bitmap, overflow := uint256.FromBig(values[5].(*big.Int))
	if overflow {
		return TransferData{}, fmt.Errorf("decode transfer data: role bitmap overflows uint256")
	}
	return TransferData{
		Name:        values[0].([]byte),
		Owner:       values[1].(common.Address),
		Subregistry: values[2].(common.Address),
		Resolver:    values[3].(common.Address),
		Expiry:      values[4].(uint64),
		RoleBitmap:  bitmap,
	}, nil
}

func bitmapToBig(b *uint256.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b.ToBig()
}
