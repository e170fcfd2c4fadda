package bridge

import (
	"errors"
	"fmt"
)

// ErrRenewalNotSupported is returned by a controller that must never
// receive renewal messages. Renewal synchronization flows one direction
// only; receiving one on the wrong chain is a protocol violation, not a
// transient failure.
var ErrRenewalNotSupported = errors.New("renewal messages are not supported on this chain")

// InvalidEjectionMessageTypeError reports a non-ejection message passed to
// DecodeEjection.
type InvalidEjectionMessageTypeError struct {
	Got MessageType
}

func (e *InvalidEjectionMessageTypeError) Error() string {
	return fmt.Sprintf("expected ejection message, got %s", e.Got)
}

// InvalidRenewalMessageTypeError reports a non-renewal message passed to
// DecodeRenewal.
type InvalidRenewalMessageTypeError struct {
	Got MessageType
}

func (e *InvalidRenewalMessageTypeError) Error() string {
	return fmt.Sprintf("expected renewal message, got %s", e.Got)
}

// InvalidMigrationMessageTypeError reports a non-migration message passed
// to DecodeMigration.
type InvalidMigrationMessageTypeError struct {
	Got MessageType
}

func (e *InvalidMigrationMessageTypeError) Error() string {
	return fmt.Sprintf("expected migration message, got %s", e.Got)
}

// UnknownMessageTypeError reports an unrecognized discriminant on a
// received message.
type UnknownMessageTypeError struct {
	Got MessageType
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("unknown bridge message type %d", uint8(e.Got))
}
