package cable

import (
	"github.com/cablekit/cablekit/pkg/logging"
	"github.com/cablekit/cablekit/pkg/transport"
)

// Options configures a Cable registry.
type Options struct {
	// URL is the channel server endpoint (ws:// or wss://). Required at the
	// moment a connection attempt is made.
	URL string

	// LazyConnect defers opening the transport consumer until the first
	// Subscribe call. The zero value connects eagerly in New.
	LazyConnect bool

	// Token supplies the bearer token for the connection. It is evaluated
	// at each connection attempt; nil means anonymous.
	Token func() string

	// Debug enables logging below the error level. DebugLevel selects how
	// far down: "info" or "all"; anything else keeps errors only.
	Debug      bool
	DebugLevel string

	// Factory overrides how the transport consumer is created. Defaults to
	// the ActionCable WebSocket consumer. Mainly useful in tests.
	Factory transport.Factory

	// Logger overrides the logger built from Debug/DebugLevel.
	Logger *logging.ColoredLogger
}

func (o *Options) normalize() {
	if o.DebugLevel == "" {
		o.DebugLevel = logging.LevelError
	}
}
