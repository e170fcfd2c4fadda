package bridge

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustPackName(t require.TestingT, name string) []byte {
	wire, err := PackName(name)
	require.NoError(t, err)
	return wire
}

func TestEjectionRoundTrip(t *testing.T) {
	data := TransferData{
		Name:        mustPackName(t, "alice.eth"),
		Owner:       common.HexToAddress("0xaa"),
		Subregistry: common.HexToAddress("0xbb"),
		Resolver:    common.HexToAddress("0xcc"),
		Expiry:      1234567890,
		RoleBitmap:  uint256.NewInt(0x1f),
	}

	message, err := EncodeEjection(data)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeEjection, GetMessageType(message))

	decoded, err := DecodeEjection(message)
	require.NoError(t, err)
	assert.Equal(t, data.Name, decoded.Name)
	assert.Equal(t, data.Owner, decoded.Owner)
	assert.Equal(t, data.Subregistry, decoded.Subregistry)
	assert.Equal(t, data.Resolver, decoded.Resolver)
	assert.Equal(t, data.Expiry, decoded.Expiry)
	assert.True(t, decoded.RoleBitmap.Eq(data.RoleBitmap))

	label, err := decoded.Label()
	require.NoError(t, err)
	assert.Equal(t, "alice", label)
}

func TestEjectionNilBitmapEncodesAsZero(t *testing.T) {
	message, err := EncodeEjection(TransferData{Name: mustPackName(t, "x.eth")})
	require.NoError(t, err)

	decoded, err := DecodeEjection(message)
	require.NoError(t, err)
	assert.True(t, decoded.RoleBitmap.IsZero())
}

func TestRenewalRoundTrip(t *testing.T) {
	tokenID := new(uint256.Int).SetBytes(common.HexToHash("0xdeadbeef").Bytes())
	message, err := EncodeRenewal(tokenID, 987654321)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeRenewal, GetMessageType(message))

	gotID, gotExpiry, err := DecodeRenewal(message)
	require.NoError(t, err)
	assert.True(t, gotID.Eq(tokenID))
	assert.Equal(t, uint64(987654321), gotExpiry)
}

func TestMigrationRoundTrip(t *testing.T) {
	data := MigrationData{
		Transfer: TransferData{
			Name:       mustPackName(t, "bob.eth"),
			Owner:      common.HexToAddress("0xaa"),
			Expiry:     42,
			RoleBitmap: uint256.NewInt(7),
		},
		ToL1: true,
		Data: []byte{0xca, 0xfe},
	}

	message, err := EncodeMigration(data)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeMigration, GetMessageType(message))

	decoded, err := DecodeMigration(message)
	require.NoError(t, err)
	assert.Equal(t, data.Transfer.Name, decoded.Transfer.Name)
	assert.Equal(t, data.Transfer.Owner, decoded.Transfer.Owner)
	assert.Equal(t, data.Transfer.Expiry, decoded.Transfer.Expiry)
	assert.True(t, decoded.Transfer.RoleBitmap.Eq(data.Transfer.RoleBitmap))
	assert.True(t, decoded.ToL1)
	assert.Equal(t, data.Data, decoded.Data)
}

func TestGetMessageTypeMalformed(t *testing.T) {
	assert.Equal(t, MessageTypeUnknown, GetMessageType(nil))
	assert.Equal(t, MessageTypeUnknown, GetMessageType([]byte{1, 2, 3}))

	// nonzero high bytes in the discriminant word
	bad := make([]byte, 64)
	bad[0] = 1
	bad[31] = 1
	assert.Equal(t, MessageTypeUnknown, GetMessageType(bad))

	// unrecognized discriminant value
	unknown := make([]byte, 64)
	unknown[31] = 99
	assert.Equal(t, MessageTypeUnknown, GetMessageType(unknown))
}

func TestDecodeRejectsWrongKind(t *testing.T) {
	renewal, err := EncodeRenewal(uint256.NewInt(1), 10)
	require.NoError(t, err)
	ejection, err := EncodeEjection(TransferData{Name: mustPackName(t, "x.eth")})
	require.NoError(t, err)

	_, err = DecodeEjection(renewal)
	var wrongEjection *InvalidEjectionMessageTypeError
	require.ErrorAs(t, err, &wrongEjection)
	assert.Equal(t, MessageTypeRenewal, wrongEjection.Got)

	_, _, err = DecodeRenewal(ejection)
	var wrongRenewal *InvalidRenewalMessageTypeError
	require.ErrorAs(t, err, &wrongRenewal)
	assert.Equal(t, MessageTypeEjection, wrongRenewal.Got)

	_, err = DecodeMigration(renewal)
	var wrongMigration *InvalidMigrationMessageTypeError
	require.ErrorAs(t, err, &wrongMigration)
	assert.Equal(t, MessageTypeRenewal, wrongMigration.Got)
}

func TestPackUnpackName(t *testing.T) {
	wire, err := PackName("alice.eth")
	require.NoError(t, err)

	name, err := UnpackName(wire)
	require.NoError(t, err)
	assert.Equal(t, "alice.eth", name)

	labels, err := UnpackLabels(wire)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "eth"}, labels)
}

func TestUnpackMalformedName(t *testing.T) {
	// length byte runs past the buffer
	_, err := UnpackName([]byte{0x20, 'a'})
	assert.Error(t, err)
}

func TestEjectionRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		label := rapid.StringMatching(`[a-z0-9]{1,20}`).Draw(t, "label")
		data := TransferData{
			Name:        mustPackName(t, label+".eth"),
			Owner:       common.BytesToAddress(rapid.SliceOfN(rapid.Byte(), 20, 20).Draw(t, "owner")),
			Subregistry: common.BytesToAddress(rapid.SliceOfN(rapid.Byte(), 20, 20).Draw(t, "subregistry")),
			Resolver:    common.BytesToAddress(rapid.SliceOfN(rapid.Byte(), 20, 20).Draw(t, "resolver")),
			Expiry:      rapid.Uint64().Draw(t, "expiry"),
			RoleBitmap:  new(uint256.Int).SetBytes(rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "bitmap")),
		}

		message, err := EncodeEjection(data)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		decoded, err := DecodeEjection(message)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}

		gotLabel, err := decoded.Label()
		if err != nil {
			t.Fatalf("label: %v", err)
		}
		if gotLabel != label {
			t.Fatalf("label mismatch: got %q want %q", gotLabel, label)
		}
		if decoded.Owner != data.Owner || decoded.Expiry != data.Expiry {
			t.Fatalf("field mismatch after round trip")
		}
		if !decoded.RoleBitmap.Eq(data.RoleBitmap) {
			t.Fatalf("bitmap mismatch after round trip")
		}
	})
}

func TestRenewalRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tokenID := new(uint256.Int).SetBytes(rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "tokenId"))
		expiry := rapid.Uint64().Draw(t, "expiry")

		message, err := EncodeRenewal(tokenID, expiry)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		gotID, gotExpiry, err := DecodeRenewal(message)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !gotID.Eq(tokenID) || gotExpiry != expiry {
			t.Fatalf("round trip mismatch")
		}
	})
}
