// Package cable implements the client-side subscription registry sitting
// between application components and a persistent channel-server connection.
// It tracks logical channel names, routes the four lifecycle events to the
// right handler bundle, reference-counts component ownership, and forwards
// perform requests to the matching transport subscription.
package cable

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cablekit/cablekit/pkg/errors"
	"github.com/cablekit/cablekit/pkg/logging"
	"github.com/cablekit/cablekit/pkg/transport"
)

// Cable is the subscription registry. Construct one per application and pass
// it to every component that needs it; there is no implicit global instance.
type Cable struct {
	opts    Options
	logger  *logging.ColoredLogger
	factory transport.Factory

	// mu guards the consumer handle and all three maps. Paired map updates
	// happen inside one critical section so a re-entrant callback can never
	// observe one map updated and its pair not.
	mu            sync.RWMutex
	consumer      transport.Consumer
	subscriptions map[string]*subscriptionEntry
	handlers      map[string]*handlerEntry
	contexts      map[string]*contextEntry
}

// subscriptionEntry owns one transport subscription and mirrors the state
// the transport layer reports for it. The mirror is informational; the
// registry never enforces transitions.
type subscriptionEntry struct {
	sub   transport.Subscription
	state State
}

// New creates a registry. Unless opts.LazyConnect is set, the transport
// consumer is opened immediately; otherwise the first Subscribe call opens
// it.
func New(opts Options) (*Cable, error) {
	opts.normalize()

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.NewColoredLogger(logging.ParseLevel(opts.Debug, opts.DebugLevel), true)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create logger")
		}
	}

	factory := opts.Factory
	if factory == nil {
		factory = transport.DefaultFactory(logger)
	}

	c := &Cable{
		opts:          opts,
		logger:        logger,
		factory:       factory,
		subscriptions: make(map[string]*subscriptionEntry),
		handlers:      make(map[string]*handlerEntry),
		contexts:      make(map[string]*contextEntry),
	}

	if !opts.LazyConnect {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Connect opens the transport consumer. Idempotent: a live consumer is kept
// for the process lifetime and never recreated here; reconnection belongs to
// the transport collaborator.
func (c *Cable) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.consumer != nil {
		return nil
	}
	return c.connectLocked()
}

// connectLocked opens the consumer. The token provider is evaluated at each
// connection attempt, not at construction time, so rotated tokens are picked
// up by a lazy connect.
func (c *Cable) connectLocked() error {
	url := strings.TrimSpace(c.opts.URL)
	if url == "" {
		return errors.NewConfigurationError("url", "connection URL must be a non-empty string")
	}

	token := ""
	if c.opts.Token != nil {
		token = c.opts.Token()
	}

	consumer, err := c.factory(url, token)
	if err != nil {
		return errors.Wrap(err, "failed to open transport consumer")
	}
	c.consumer = consumer

	c.logger.ComponentInfo(logging.ComponentCable, "transport consumer opened",
		zap.String("url", url),
		zap.Bool("token", token != ""))

	return nil
}

// Connected reports whether a transport consumer exists.
func (c *Cable) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.consumer != nil
}

// Close unsubscribes every channel, clears all registry state, and closes
// the transport consumer.
func (c *Cable) Close() error {
	c.mu.Lock()

	for name, entry := range c.subscriptions {
		if err := entry.sub.Unsubscribe(); err != nil {
			c.logger.ComponentWarn(logging.ComponentCable, "unsubscribe on close failed",
				zap.String("channel", name),
				zap.Error(err))
		}
	}
	c.subscriptions = make(map[string]*subscriptionEntry)
	c.handlers = make(map[string]*handlerEntry)
	c.contexts = make(map[string]*contextEntry)

	consumer := c.consumer
	c.consumer = nil
	c.mu.Unlock()

	if consumer == nil {
		return nil
	}
	if err := consumer.Close(); err != nil {
		return errors.Wrap(err, "failed to close transport consumer")
	}

	c.logger.ComponentInfo(logging.ComponentCable, "registry closed")
	return nil
}
