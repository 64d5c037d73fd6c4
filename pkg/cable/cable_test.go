package cable

import (
	"fmt"
	"testing"

	"github.com/cablekit/cablekit/pkg/errors"
	"github.com/cablekit/cablekit/pkg/logging"
	"github.com/cablekit/cablekit/pkg/transport"
)

// fakeConsumer implements transport.Consumer in-memory, recording every
// subscription and perform call so tests can drive the four lifecycle
// events by hand.
type fakeConsumer struct {
	subs      []*fakeSubscription
	createErr error
	closed    int
}

type fakeSubscription struct {
	desc         transport.Descriptor
	callbacks    transport.Callbacks
	performs     []performCall
	unsubscribed int
}

type performCall struct {
	action string
	data   map[string]interface{}
}

func (f *fakeConsumer) Subscriptions() transport.Subscriptions { return f }

func (f *fakeConsumer) Create(desc transport.Descriptor, cb transport.Callbacks) (transport.Subscription, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	sub := &fakeSubscription{desc: desc, callbacks: cb}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeConsumer) Close() error {
	f.closed++
	return nil
}

func (s *fakeSubscription) Perform(action string, data map[string]interface{}) error {
	s.performs = append(s.performs, performCall{action: action, data: data})
	return nil
}

func (s *fakeSubscription) Unsubscribe() error {
	s.unsubscribed++
	return nil
}

func newTestCable(t *testing.T, mutate func(*Options)) (*Cable, *fakeConsumer) {
	t.Helper()

	consumer := &fakeConsumer{}
	opts := Options{
		URL:    "ws://localhost:28080/cable",
		Logger: logging.NewNopLogger(),
		Factory: func(url, token string) (transport.Consumer, error) {
			return consumer, nil
		},
	}
	if mutate != nil {
		mutate(&opts)
	}

	c, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, consumer
}

func TestNew_EagerConnect(t *testing.T) {
	c, _ := newTestCable(t, nil)

	if !c.Connected() {
		t.Error("expected eager construction to open the consumer")
	}
}

func TestNew_EmptyURL(t *testing.T) {
	_, err := New(Options{
		URL:    "   ",
		Logger: logging.NewNopLogger(),
	})
	if err == nil {
		t.Fatal("expected error for empty URL")
	}
	if !errors.IsConfiguration(err) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestNew_LazyConnect(t *testing.T) {
	calls := 0
	consumer := &fakeConsumer{}

	c, err := New(Options{
		URL:         "ws://localhost:28080/cable",
		LazyConnect: true,
		Logger:      logging.NewNopLogger(),
		Factory: func(url, token string) (transport.Consumer, error) {
			calls++
			return consumer, nil
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if calls != 0 {
		t.Fatalf("expected no connection before first subscribe, factory called %d times", calls)
	}
	if c.Connected() {
		t.Error("expected lazy registry to report not connected")
	}

	if err := c.Subscribe(transport.Descriptor{Channel: "ChatChannel"}, ""); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected first subscribe to connect, factory called %d times", calls)
	}
}

func TestSubscribe_NotInitialized(t *testing.T) {
	c, _ := newTestCable(t, nil)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err := c.Subscribe(transport.Descriptor{Channel: "ChatChannel"}, "")
	if !errors.IsNotInitialized(err) {
		t.Errorf("expected NotInitializedError, got %v", err)
	}
}

func TestConnect_Idempotent(t *testing.T) {
	calls := 0
	c, _ := newTestCable(t, func(o *Options) {
		inner := o.Factory
		o.Factory = func(url, token string) (transport.Consumer, error) {
			calls++
			return inner(url, token)
		}
	})

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a live consumer to be reused, factory called %d times", calls)
	}
}

func TestConnect_TokenEvaluatedPerAttempt(t *testing.T) {
	tokens := 0
	var lastToken string

	c, err := New(Options{
		URL:         "ws://localhost:28080/cable",
		LazyConnect: true,
		Logger:      logging.NewNopLogger(),
		Token: func() string {
			tokens++
			return fmt.Sprintf("jwt-%d", tokens)
		},
		Factory: func(url, token string) (transport.Consumer, error) {
			lastToken = token
			return &fakeConsumer{}, nil
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if tokens != 0 {
		t.Fatalf("token provider must not run at construction, ran %d times", tokens)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if lastToken != "jwt-1" {
		t.Errorf("expected jwt-1 at first attempt, got %q", lastToken)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	if lastToken != "jwt-2" {
		t.Errorf("expected a fresh token at the second attempt, got %q", lastToken)
	}
}

func TestClose_ReleasesEverything(t *testing.T) {
	c, consumer := newTestCable(t, nil)

	c.Declare(&struct{}{}, "comp-1", map[string]Handlers{
		"ChatChannel": {},
	})
	if err := c.Subscribe(transport.Descriptor{Channel: "ChatChannel"}, ""); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if consumer.closed != 1 {
		t.Errorf("expected consumer closed once, got %d", consumer.closed)
	}
	if consumer.subs[0].unsubscribed != 1 {
		t.Errorf("expected transport subscription released on close, got %d", consumer.subs[0].unsubscribed)
	}
	if len(c.subscriptions) != 0 || len(c.handlers) != 0 || len(c.contexts) != 0 {
		t.Error("expected all registry maps cleared on close")
	}
}
