package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/namechain/registry/interfaces"
)

// Relay carries messages from one chain's controller to the other's. Every
// message is journaled to the storage backend before delivery, and a
// message already journaled (same content id) is not delivered twice.
type Relay struct {
	journal interfaces.StorageBackend
	dest    interfaces.BridgeMessageHandler
	log     *slog.Logger

	mu        sync.Mutex
	delivered map[interfaces.ContentID]bool
}

// NewRelay creates a relay delivering to dest, journaling through journal.
func NewRelay(journal interfaces.StorageBackend, dest interfaces.BridgeMessageHandler, log *slog.Logger) *Relay {
	return &Relay{
		journal:   journal,
		dest:      dest,
		log:       log,
		delivered: make(map[interfaces.ContentID]bool),
	}
}

// SetDestination binds the delivery target. In a bidirectional pair each
// relay exists before the controller it delivers to, so the destination
// is attached once both controllers are constructed.
func (r *Relay) SetDestination(dest interfaces.BridgeMessageHandler) {
	r.dest = dest
}

// SendMessage implements interfaces.BridgeSender. The message is persisted
// first; if it was already delivered the call is a no-op, so a retried
// send cannot apply a migration twice.
func (r *Relay) SendMessage(ctx context.Context, message []byte) error {
	if r.dest == nil {
		return fmt.Errorf("relay destination not configured")
	}
	id := interfaces.ComputeID(message)

	r.mu.Lock()
	if r.delivered[id] {
		r.mu.Unlock()
		r.log.Debug("message already delivered", "contentId", id.String())
		return nil
	}
	r.mu.Unlock()

	if r.journal != nil {
		if _, err := r.journal.Store(ctx, message); err != nil {
			return fmt.Errorf("journal message %s: %w", id.String(), err)
		}
	}

	if err := r.dest.ReceiveMessage(ctx, message); err != nil {
		return fmt.Errorf("deliver message %s: %w", id.String(), err)
	}

	r.mu.Lock()
	r.delivered[id] = true
	r.mu.Unlock()

	r.log.Info("message sent", "contentId", id.String(), "type", GetMessageType(message).String())
	return nil
}

var _ interfaces.BridgeSender = (*Relay)(nil)
