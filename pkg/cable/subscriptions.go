package cable

import (
	"sort"

	"go.uber.org/zap"

	"github.com/cablekit/cablekit/pkg/errors"
	"github.com/cablekit/cablekit/pkg/logging"
	"github.com/cablekit/cablekit/pkg/transport"
)

// PerformRequest asks a subscribed channel to run a remote action.
type PerformRequest struct {
	// Channel is the logical channel name the subscription was registered
	// under, which may differ from the server-side channel name.
	Channel string

	// Action is the remote action to invoke.
	Action string

	// Data is an optional payload object forwarded verbatim.
	Data map[string]interface{}
}

// Subscribe opens a transport subscription for the descriptor under the
// given logical name; an empty name defaults to the descriptor's channel.
// Confirmation is asynchronous: connected or rejected arrives later via the
// transport, in an order the server decides.
//
// Subscribing a name already in use replaces the earlier entry. The replaced
// transport subscription is released first so no server-side subscription is
// leaked by the overwrite.
func (c *Cable) Subscribe(desc transport.Descriptor, name string) error {
	if name == "" {
		name = desc.Channel
	}
	if name == "" {
		return errors.NewValidationError("name", "subscribe requires a channel name", desc)
	}

	c.mu.Lock()

	if c.consumer == nil {
		if !c.opts.LazyConnect {
			c.mu.Unlock()
			return errors.NewNotInitializedError("subscribe")
		}
		if err := c.connectLocked(); err != nil {
			c.mu.Unlock()
			return err
		}
	}

	if prev, exists := c.subscriptions[name]; exists {
		c.logger.ComponentWarn(logging.ComponentCable, "replacing clashing channel name",
			zap.String("channel", name))
		if err := prev.sub.Unsubscribe(); err != nil {
			c.logger.ComponentWarn(logging.ComponentCable, "failed to release replaced subscription",
				zap.String("channel", name),
				zap.Error(err))
		}
	}

	sub, err := c.consumer.Subscriptions().Create(desc, transport.Callbacks{
		Connected:    func() { c.fireChannelEvent(name, EventConnected, nil) },
		Disconnected: func() { c.fireChannelEvent(name, EventDisconnected, nil) },
		Rejected:     func() { c.fireChannelEvent(name, EventRejected, nil) },
		Received:     func(data []byte) { c.fireChannelEvent(name, EventReceived, data) },
	})
	if err != nil {
		c.mu.Unlock()
		return errors.Wrapf(err, "failed to subscribe channel %q", name)
	}

	c.subscriptions[name] = &subscriptionEntry{sub: sub, state: StatePending}
	c.mu.Unlock()

	c.logger.ComponentInfo(logging.ComponentCable, "channel subscribed",
		zap.String("channel", name),
		zap.String("server_channel", desc.Channel))

	return nil
}

// Unsubscribe releases the transport subscription registered under name,
// removes its handler bundle, and decrements the owning component's
// reference count, dropping the context entry when it reaches zero.
func (c *Cable) Unsubscribe(name string) error {
	c.mu.Lock()

	subEntry, hasSub := c.subscriptions[name]
	bundle, hasBundle := c.handlers[name]
	if !hasSub && !hasBundle {
		c.mu.Unlock()
		return errors.NewNotSubscribedError(name, "")
	}

	delete(c.subscriptions, name)
	if hasBundle {
		delete(c.handlers, name)
		// The bundle may be orphaned if its context was already dropped;
		// releasing tolerates that instead of assuming the invariant.
		c.releaseContextLocked(bundle.uid)
	}
	c.mu.Unlock()

	if hasSub {
		if err := subEntry.sub.Unsubscribe(); err != nil {
			return errors.Wrapf(err, "failed to unsubscribe channel %q", name)
		}
	}

	c.logger.ComponentInfo(logging.ComponentCable, "channel unsubscribed",
		zap.String("channel", name))

	return nil
}

// Perform forwards an action to the transport subscription registered under
// the request's channel name.
func (c *Cable) Perform(req PerformRequest) error {
	if req.Action == "" {
		return errors.NewValidationError("action", "perform requires an action name", req)
	}

	c.mu.RLock()
	entry, exists := c.subscriptions[req.Channel]
	c.mu.RUnlock()

	if !exists {
		return errors.NewNotSubscribedError(req.Channel, req.Action)
	}

	c.logger.ComponentInfo(logging.ComponentCable, "performing action",
		zap.String("channel", req.Channel),
		zap.String("action", req.Action))

	if err := entry.sub.Perform(req.Action, req.Data); err != nil {
		return errors.Wrapf(err, "failed to perform %q on channel %q", req.Action, req.Channel)
	}

	c.logger.ComponentInfo(logging.ComponentCable, "action performed",
		zap.String("channel", req.Channel),
		zap.String("action", req.Action))

	return nil
}

// Channels returns the sorted logical names with a live transport
// subscription.
func (c *Cable) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.subscriptions))
	for name := range c.subscriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State reports the last transport-observed state for a subscribed channel.
// The second return is false when the name has no live subscription.
func (c *Cable) State(name string) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.subscriptions[name]
	if !exists {
		return "", false
	}
	return entry.state, true
}
