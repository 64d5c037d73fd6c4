package cable

import (
	"go.uber.org/zap"

	"github.com/cablekit/cablekit/pkg/logging"
)

// EventKind is one of the four transport lifecycle notifications.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventRejected     EventKind = "rejected"
	EventReceived     EventKind = "received"
)

// State mirrors the transport layer's per-channel subscription state. A
// disconnect returns the channel to pending: the transport may confirm it
// again later, rejection is terminal until re-subscribed.
type State string

const (
	StatePending      State = "pending"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateRejected     State = "rejected"
)

// fireChannelEvent routes one transport notification to the handler bundle
// registered under the logical channel name. An event for a name with no
// bundle is dropped without error or log; in-flight server messages may
// arrive after teardown and that race is tolerated here instead of being
// cancelled at the transport.
func (c *Cable) fireChannelEvent(name string, kind EventKind, data []byte) {
	c.mu.Lock()
	if entry, exists := c.subscriptions[name]; exists {
		entry.state = nextState(entry.state, kind)
	}

	handlerEntry, exists := c.handlers[name]
	if !exists {
		c.mu.Unlock()
		return
	}

	var owner interface{}
	if ctx := c.contexts[handlerEntry.uid]; ctx != nil {
		owner = ctx.owner
	}
	handlers := handlerEntry.handlers
	c.mu.Unlock()

	// Callbacks run outside the lock; they may re-enter the registry.
	switch kind {
	case EventConnected:
		if handlers.Connected != nil {
			handlers.Connected(owner)
		}
	case EventDisconnected:
		if handlers.Disconnected != nil {
			handlers.Disconnected(owner)
		}
	case EventRejected:
		if handlers.Rejected != nil {
			handlers.Rejected(owner)
		}
	case EventReceived:
		if handlers.Received != nil {
			handlers.Received(owner, data)
		}
	}

	c.logger.ComponentInfo(logging.ComponentCable, "channel event dispatched",
		zap.String("channel", name),
		zap.String("event", string(kind)))
}

// nextState mirrors the transport's state machine without enforcing it.
func nextState(current State, kind EventKind) State {
	switch kind {
	case EventConnected:
		return StateConnected
	case EventDisconnected:
		return StatePending
	case EventRejected:
		return StateRejected
	default:
		return current
	}
}
