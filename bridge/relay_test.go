package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namechain/registry/interfaces"
	"github.com/namechain/registry/storage"
)

type countingHandler struct {
	received int
	err      error
}

func (h *countingHandler) ReceiveMessage(ctx context.Context, message []byte) error {
	h.received++
	return h.err
}

func TestRelayDeliversOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	journal, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)

	handler := &countingHandler{}
	relay := NewRelay(journal, handler, logger)

	message, err := EncodeRenewal(nil, 42)
	require.NoError(t, err)

	require.NoError(t, relay.SendMessage(context.Background(), message))
	require.NoError(t, relay.SendMessage(context.Background(), message))
	assert.Equal(t, 1, handler.received, "a repeated message must not be delivered twice")

	// the message is journaled under its content id
	stored, err := journal.Fetch(context.Background(), interfaces.ComputeID(message))
	require.NoError(t, err)
	assert.Equal(t, message, stored)
}

func TestRelayFailedDeliveryCanRetry(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := &countingHandler{err: errors.New("registry unavailable")}
	relay := NewRelay(nil, handler, logger)

	message, err := EncodeRenewal(nil, 42)
	require.NoError(t, err)

	require.Error(t, relay.SendMessage(context.Background(), message))

	// a failed delivery is not marked done; the retry goes through
	handler.err = nil
	require.NoError(t, relay.SendMessage(context.Background(), message))
	assert.Equal(t, 2, handler.received)
}

func TestRelayWithoutDestination(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := NewRelay(nil, nil, logger)

	err := relay.SendMessage(context.Background(), []byte{1})
	assert.Error(t, err)
}
