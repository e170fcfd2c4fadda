// Package interfaces defines the contracts between the registry service's
// components without implementation details: storage backends for the
// bridge journal, the price oracle consumed by the registrar, and the
// bridge transport surfaces.
package interfaces

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ContentID is a 32-byte SHA-256 hash uniquely identifying journaled
// content.
type ContentID [32]byte

// NewContentIDFromBytes creates a content ID from a raw 32-byte slice.
func NewContentIDFromBytes(source []byte) (ContentID, error) {
	if len(source) != 32 {
		return ContentID{}, errors.New("invalid ContentID conversion from bytes: incorrect length")
	}

	var hash [32]byte
	copy(hash[:], source)
	return ContentID(hash), nil
}

// NewContentIDFromHex parses a hex content ID, with or without 0x prefix.
func NewContentIDFromHex(source string) (ContentID, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return ContentID{}, errors.New("invalid content ID length: hex string must be 64 characters")
	}

	hashBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var hash [32]byte
	copy(hash[:], hashBytes)
	return ContentID(hash), nil
}

// ComputeID calculates the content ID for data.
func ComputeID(data []byte) ContentID {
	hash := sha256.Sum256(data)
	return ContentID(hash)
}

// String returns the hex representation.
func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 32-byte hash.
func (id ContentID) Bytes() []byte {
	return id[:]
}

// Equal compares two content IDs.
func (id ContentID) Equal(other ContentID) bool {
	return bytes.Equal(id[:], other[:])
}

// StorageBackendLocation is a backend URI of the form
// [scheme]://[auth@]host[:port][/path][?params].
type StorageBackendLocation string

// ErrInvalidLocationURI is returned for malformed or unsupported backend
// URIs.
var ErrInvalidLocationURI = errors.New("invalid storage backend location URI")

// ErrContentNotFound is returned when a backend does not hold the
// requested content.
var ErrContentNotFound = errors.New("content not found")

// ErrBackendUnavailable is returned when a backend cannot be reached.
var ErrBackendUnavailable = errors.New("storage backend unavailable")

// StorageBackend stores and retrieves content-addressed journal records.
type StorageBackend interface {
	// Fetch retrieves content by its ID.
	Fetch(ctx context.Context, id ContentID) ([]byte, error)

	// Store persists data and returns its content ID.
	Store(ctx context.Context, data []byte) (ContentID, error)

	// Available checks whether the backend is reachable.
	Available(ctx context.Context) bool

	// Name returns the location URI identifying this backend.
	Name() string
}

// StorageBackendFactory creates storage backends from location URIs.
type StorageBackendFactory interface {
	StorageBackendFor(location StorageBackendLocation) (StorageBackend, error)
	CreateMultiBackend(locations []StorageBackendLocation) (StorageBackend, error)
}
