package cable

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cablekit/cablekit/pkg/logging"
)

// Handlers is a component's bundle of lifecycle callbacks for one channel.
// Any of them may be nil. The owner the component declared itself with is
// passed explicitly to every callback, so a handler reads and mutates its
// component's state without any receiver magic.
type Handlers struct {
	Connected    func(owner interface{})
	Disconnected func(owner interface{})
	Rejected     func(owner interface{})
	Received     func(owner interface{}, data []byte)
}

// handlerEntry tags a declared bundle with its logical name and owning
// component uid.
type handlerEntry struct {
	name     string
	uid      string
	handlers Handlers
}

// contextEntry reference-counts a component's state object. It exists while
// at least one handler bundle references the uid; refCount equals the number
// of bundles doing so.
type contextEntry struct {
	owner    interface{}
	refCount int
}

// Declare registers a component's handler bundles, one per logical channel
// name, and binds them to the component's state object. Called from the
// component's construction hook; declaring does not subscribe. An empty uid
// gets a generated one; the effective uid is returned so the destruction
// hook can Release it.
//
// A declared name clashing with an existing bundle overrides it, releasing
// the previous owner's reference.
func (c *Cable) Declare(owner interface{}, uid string, channels map[string]Handlers) string {
	if uid == "" {
		uid = uuid.NewString()
	}

	c.mu.Lock()
	for name, handlers := range channels {
		c.addChannelLocked(name, uid, owner, handlers)
	}
	c.mu.Unlock()

	c.logger.ComponentDebug(logging.ComponentCable, "component channels declared",
		zap.String("uid", uid),
		zap.Int("channels", len(channels)))

	return uid
}

func (c *Cable) addChannelLocked(name, uid string, owner interface{}, handlers Handlers) {
	if old, exists := c.handlers[name]; exists {
		c.releaseContextLocked(old.uid)
	}

	c.handlers[name] = &handlerEntry{
		name:     name,
		uid:      uid,
		handlers: handlers,
	}

	if entry, exists := c.contexts[uid]; exists {
		entry.refCount++
	} else {
		c.contexts[uid] = &contextEntry{owner: owner, refCount: 1}
	}
}

// releaseContextLocked decrements a component's reference count and drops
// the entry at zero. Missing entries are tolerated.
func (c *Cable) releaseContextLocked(uid string) {
	entry, exists := c.contexts[uid]
	if !exists {
		return
	}
	entry.refCount--
	if entry.refCount <= 0 {
		delete(c.contexts, uid)
	}
}

// Release unsubscribes every channel declared by the component, tearing the
// shared channel down only when this was the last owner. Called from the
// component's destruction hook.
func (c *Cable) Release(uid string) error {
	c.mu.RLock()
	var names []string
	for name, entry := range c.handlers {
		if entry.uid == uid {
			names = append(names, name)
		}
	}
	c.mu.RUnlock()

	var firstErr error
	for _, name := range names {
		if err := c.Unsubscribe(name); err != nil {
			c.logger.ComponentWarn(logging.ComponentCable, "release: unsubscribe failed",
				zap.String("uid", uid),
				zap.String("channel", name),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	c.logger.ComponentDebug(logging.ComponentCable, "component released",
		zap.String("uid", uid),
		zap.Int("channels", len(names)))

	return firstErr
}
