// Package transport provides the consumer contract the subscription registry
// multiplexes over, plus an implementation of it speaking the ActionCable
// wire protocol on a gorilla WebSocket. The consumer owns the persistent
// connection; channel bookkeeping lives in pkg/cable.
package transport

import (
	"encoding/json"

	"github.com/cablekit/cablekit/pkg/errors"
)

// Descriptor identifies a server-side channel. It is passed opaquely to the
// channel server; the registry never interprets it beyond reading Channel as
// the default logical name. Extra params ride along in Params.
type Descriptor struct {
	Channel string
	Room    string
	Params  map[string]interface{}
}

// Identifier renders the descriptor as the canonical JSON identifier the
// channel server keys subscriptions by. Map marshaling sorts keys, so equal
// descriptors always produce byte-equal identifiers.
func (d Descriptor) Identifier() (string, error) {
	if d.Channel == "" {
		return "", errors.NewValidationError("channel", "descriptor requires a channel name", d)
	}

	fields := make(map[string]interface{}, len(d.Params)+2)
	for k, v := range d.Params {
		fields[k] = v
	}
	fields["channel"] = d.Channel
	if d.Room != "" {
		fields["room"] = d.Room
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal channel identifier")
	}
	return string(raw), nil
}

// Callbacks are the four lifecycle notifications a subscription can emit.
// Any of them may be nil. They are invoked from the consumer's reader
// goroutine; receivers must not block.
type Callbacks struct {
	Connected    func()
	Disconnected func()
	Rejected     func()
	Received     func(data []byte)
}

// Subscription is a live server-side channel subscription.
type Subscription interface {
	// Perform invokes a remote action on the channel with an optional
	// data object.
	Perform(action string, data map[string]interface{}) error

	// Unsubscribe tears down the server-side subscription. Safe to call
	// once per subscription; the consumer releases it afterwards.
	Unsubscribe() error
}

// Subscriptions creates channel subscriptions on a live consumer.
type Subscriptions interface {
	Create(desc Descriptor, cb Callbacks) (Subscription, error)
}

// Consumer manages the persistent connection to the channel server.
// Reconnection and backoff are the consumer's concern alone; the registry
// never recreates one.
type Consumer interface {
	Subscriptions() Subscriptions
	Close() error
}

// Factory opens a consumer against a channel server URL. The token is
// whatever the application's token provider returned at connect time; empty
// means anonymous.
type Factory func(url, token string) (Consumer, error)
