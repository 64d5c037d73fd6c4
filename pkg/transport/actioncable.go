package transport

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cablekit/cablekit/pkg/errors"
	"github.com/cablekit/cablekit/pkg/logging"
)

const (
	welcomeTimeout = 10 * time.Second
	writeTimeout   = 10 * time.Second
)

// acConsumer is a Consumer speaking the ActionCable protocol over a single
// gorilla WebSocket connection. One reader goroutine demultiplexes server
// frames to per-identifier subscription fan-out.
type acConsumer struct {
	conn   *websocket.Conn
	logger *logging.ColoredLogger

	// writeMu serializes frame writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	// mu guards subs. Multiple subscriptions may share one identifier when
	// the registry tracks the same server channel under two logical names.
	mu   sync.RWMutex
	subs map[string][]*acSubscription

	closeOnce sync.Once
}

// acSubscription is a live subscription handle bound to one identifier.
type acSubscription struct {
	consumer   *acConsumer
	identifier string
	callbacks  Callbacks
}

// NewConsumer dials a channel server and waits for its welcome frame. The
// token, when non-empty, is carried as a query parameter the way browser
// cable clients do. A nil logger disables transport logging.
func NewConsumer(rawURL, token string, logger *logging.ColoredLogger) (Consumer, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.NewConfigurationError("url", "invalid connection URL: "+rawURL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.NewConfigurationError("url", "connection URL must use ws or wss scheme")
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, errors.NewTransportError(rawURL, "failed to dial channel server", err)
	}

	c := &acConsumer{
		conn:   conn,
		logger: logger,
		subs:   make(map[string][]*acSubscription),
	}

	if err := c.awaitWelcome(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.ComponentInfo(logging.ComponentTransport, "consumer connected",
		zap.String("url", rawURL))

	go c.readLoop()

	return c, nil
}

// DefaultFactory returns a Factory producing ActionCable consumers that log
// through the given logger.
func DefaultFactory(logger *logging.ColoredLogger) Factory {
	return func(url, token string) (Consumer, error) {
		return NewConsumer(url, token, logger)
	}
}

// awaitWelcome consumes frames until the server's welcome arrives. Pings
// received before the welcome are tolerated and skipped.
func (c *acConsumer) awaitWelcome() error {
	deadline := time.Now().Add(welcomeTimeout)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return errors.NewTransportError("", "failed to set read deadline", err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return errors.NewTransportError("", "connection closed before welcome", err)
		}

		var f serverFrame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		switch f.Type {
		case frameWelcome:
			return nil
		case framePing:
			continue
		default:
			c.logger.ComponentDebug(logging.ComponentTransport, "unexpected frame before welcome",
				zap.String("type", f.Type))
		}
	}
}

// Subscriptions returns the subscription factory for this consumer.
func (c *acConsumer) Subscriptions() Subscriptions {
	return c
}

// Create registers callbacks under the descriptor's identifier and asks the
// server to subscribe. Confirmation arrives asynchronously as a
// confirm_subscription (or reject_subscription) frame.
func (c *acConsumer) Create(desc Descriptor, cb Callbacks) (Subscription, error) {
	identifier, err := desc.Identifier()
	if err != nil {
		return nil, err
	}

	sub := &acSubscription{
		consumer:   c,
		identifier: identifier,
		callbacks:  cb,
	}

	c.mu.Lock()
	c.subs[identifier] = append(c.subs[identifier], sub)
	c.mu.Unlock()

	if err := c.send(clientCommand{Command: commandSubscribe, Identifier: identifier}); err != nil {
		c.remove(sub)
		return nil, err
	}

	c.logger.ComponentDebug(logging.ComponentTransport, "subscribe command sent",
		zap.String("identifier", identifier))

	return sub, nil
}

// Close tears down the connection. The reader goroutine notices and fires
// disconnected on every live subscription.
func (c *acConsumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// readLoop demultiplexes server frames until the connection dies.
func (c *acConsumer) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.ComponentDebug(logging.ComponentTransport, "read loop ended",
				zap.Error(err))
			c.fireDisconnected()
			return
		}

		var f serverFrame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.ComponentWarn(logging.ComponentTransport, "discarding unparseable frame",
				zap.Int("len", len(data)))
			continue
		}

		switch f.Type {
		case framePing:
			// Staleness monitoring is the server's concern; nothing to do.
		case frameWelcome:
			// Already welcomed during dial; ignore.
		case frameConfirm:
			c.fanOut(f.Identifier, func(cb Callbacks) {
				if cb.Connected != nil {
					cb.Connected()
				}
			})
		case frameReject:
			c.fanOut(f.Identifier, func(cb Callbacks) {
				if cb.Rejected != nil {
					cb.Rejected()
				}
			})
		default:
			// Untyped frames are channel broadcasts.
			msg := []byte(f.Message)
			c.fanOut(f.Identifier, func(cb Callbacks) {
				if cb.Received != nil {
					cb.Received(msg)
				}
			})
		}
	}
}

// fanOut invokes fn for every subscription registered under identifier.
// Callbacks run on the reader goroutine, outside the subscription lock.
func (c *acConsumer) fanOut(identifier string, fn func(Callbacks)) {
	c.mu.RLock()
	targets := append([]*acSubscription(nil), c.subs[identifier]...)
	c.mu.RUnlock()

	for _, sub := range targets {
		fn(sub.callbacks)
	}
}

// fireDisconnected notifies every live subscription that the connection is gone.
func (c *acConsumer) fireDisconnected() {
	c.mu.RLock()
	var targets []*acSubscription
	for _, subs := range c.subs {
		targets = append(targets, subs...)
	}
	c.mu.RUnlock()

	for _, sub := range targets {
		if sub.callbacks.Disconnected != nil {
			sub.callbacks.Disconnected()
		}
	}
}

// remove detaches a subscription from the fan-out table and reports whether
// it was the last one registered under its identifier.
func (c *acConsumer) remove(sub *acSubscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.subs[sub.identifier]
	for i, s := range subs {
		if s == sub {
			c.subs[sub.identifier] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(c.subs[sub.identifier]) == 0 {
		delete(c.subs, sub.identifier)
		return true
	}
	return false
}

// send writes one command frame with a write deadline.
func (c *acConsumer) send(cmd clientCommand) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return errors.NewTransportError("", "failed to set write deadline", err)
	}
	if err := c.conn.WriteJSON(cmd); err != nil {
		return errors.NewTransportError("", "failed to write frame", err)
	}
	return nil
}

// Perform invokes a remote action. The action name is merged into the data
// object and the result rides as a JSON-encoded string per the cable protocol.
func (s *acSubscription) Perform(action string, data map[string]interface{}) error {
	payload := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["action"] = action

	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal perform payload")
	}

	return s.consumer.send(clientCommand{
		Command:    commandMessage,
		Identifier: s.identifier,
		Data:       string(raw),
	})
}

// Unsubscribe detaches the subscription from the fan-out table. The server
// command is only sent when no other handle shares the identifier, so one
// logical teardown cannot silence a sibling subscribed to the same server
// channel. Events already in flight for the identifier may still arrive at
// the consumer; with the handle detached they go nowhere.
func (s *acSubscription) Unsubscribe() error {
	if last := s.consumer.remove(s); !last {
		return nil
	}
	return s.consumer.send(clientCommand{
		Command:    commandUnsubscribe,
		Identifier: s.identifier,
	})
}
