package transport

import "encoding/json"

// Server-to-client frame types.
const (
	frameWelcome = "welcome"
	framePing    = "ping"
	frameConfirm = "confirm_subscription"
	frameReject  = "reject_subscription"
)

// Client-to-server commands.
const (
	commandSubscribe   = "subscribe"
	commandUnsubscribe = "unsubscribe"
	commandMessage     = "message"
)

// serverFrame is any frame the channel server sends. Broadcast frames carry
// no type, only an identifier and a message payload.
type serverFrame struct {
	Type       string          `json:"type,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
}

// clientCommand is a frame the client sends. Data is a JSON-encoded string,
// not an object, per the cable protocol.
type clientCommand struct {
	Command    string `json:"command"`
	Identifier string `json:"identifier"`
	Data       string `json:"data,omitempty"`
}
