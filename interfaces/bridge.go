package interfaces

import "context"

// BridgeSender carries an encoded bridge message toward the other chain.
type BridgeSender interface {
	SendMessage(ctx context.Context, message []byte) error
}

// BridgeMessageHandler consumes an encoded bridge message on the receiving
// chain.
type BridgeMessageHandler interface {
	ReceiveMessage(ctx context.Context, message []byte) error
}
