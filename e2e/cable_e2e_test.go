//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cablekit/cablekit/pkg/cable"
	"github.com/cablekit/cablekit/pkg/server"
	"github.com/cablekit/cablekit/pkg/transport"
)

func startCableServer(t *testing.T, opts server.Options) string {
	t.Helper()

	ts := httptest.NewServer(server.New(opts).Router())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/cable"
}

func newEventCollector(buffer int) (chan []byte, cable.Handlers) {
	if buffer <= 0 {
		buffer = 1
	}

	received := make(chan []byte, buffer)
	handlers := cable.Handlers{
		Received: func(_ interface{}, data []byte) {
			copied := append([]byte(nil), data...)
			select {
			case received <- copied:
			default:
			}
		},
	}
	return received, handlers
}

func waitForEvent(ctx context.Context, ch <-chan []byte) ([]byte, error) {
	select {
	case msg := <-ch:
		return msg, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("context finished while waiting for channel event: %w", ctx.Err())
	}
}

func waitForState(t *testing.T, c *cable.Cable, name string, want cable.State) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := c.State(name); ok && got == want {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	got, ok := c.State(name)
	t.Fatalf("timed out waiting for state %s on %q, got %s (exists=%v)", want, name, got, ok)
}

func TestCable_SubscribePerformReceive(t *testing.T) {
	url := startCableServer(t, server.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Two independent clients in one room.
	sender, err := cable.New(cable.Options{URL: url})
	if err != nil {
		t.Fatalf("sender connect failed: %v", err)
	}
	defer sender.Close()

	receiver, err := cable.New(cable.Options{URL: url})
	if err != nil {
		t.Fatalf("receiver connect failed: %v", err)
	}
	defer receiver.Close()

	desc := transport.Descriptor{Channel: "ChatChannel", Room: "e2e"}

	senderCh, senderHandlers := newEventCollector(4)
	senderUID := sender.Declare(&struct{}{}, "", map[string]cable.Handlers{"room": senderHandlers})
	defer sender.Release(senderUID)

	receiverCh, receiverHandlers := newEventCollector(4)
	receiverUID := receiver.Declare(&struct{}{}, "", map[string]cable.Handlers{"room": receiverHandlers})
	defer receiver.Release(receiverUID)

	if err := sender.Subscribe(desc, "room"); err != nil {
		t.Fatalf("sender subscribe failed: %v", err)
	}
	if err := receiver.Subscribe(desc, "room"); err != nil {
		t.Fatalf("receiver subscribe failed: %v", err)
	}

	waitForState(t, sender, "room", cable.StateConnected)
	waitForState(t, receiver, "room", cable.StateConnected)

	err = sender.Perform(cable.PerformRequest{
		Channel: "room",
		Action:  "send_message",
		Data:    map[string]interface{}{"handle": "alice", "content": "hello"},
	})
	if err != nil {
		t.Fatalf("perform failed: %v", err)
	}

	for name, ch := range map[string]chan []byte{"sender": senderCh, "receiver": receiverCh} {
		data, err := waitForEvent(ctx, ch)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("%s: unparseable broadcast: %v", name, err)
		}
		if msg["action"] != "send_message" || msg["content"] != "hello" || msg["handle"] != "alice" {
			t.Errorf("%s: expected the performed payload, got %v", name, msg)
		}
	}
}

func TestCable_RejectedSubscription(t *testing.T) {
	url := startCableServer(t, server.Options{
		Authorize: func(identifier, token string) bool { return token == "secret" },
	})

	c, err := cable.New(cable.Options{
		URL:   url,
		Token: func() string { return "wrong" },
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer c.Close()

	rejected := make(chan struct{}, 1)
	uid := c.Declare(&struct{}{}, "", map[string]cable.Handlers{
		"private": {
			Rejected: func(_ interface{}) { rejected <- struct{}{} },
		},
	})
	defer c.Release(uid)

	if err := c.Subscribe(transport.Descriptor{Channel: "PrivateChannel"}, "private"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	select {
	case <-rejected:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the rejection")
	}
	waitForState(t, c, "private", cable.StateRejected)
}

func TestCable_RoomsAreIsolated(t *testing.T) {
	url := startCableServer(t, server.Options{})

	c, err := cable.New(cable.Options{URL: url})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer c.Close()

	roomACh, handlersA := newEventCollector(1)
	roomBCh, handlersB := newEventCollector(1)
	uid := c.Declare(&struct{}{}, "", map[string]cable.Handlers{
		"room-a": handlersA,
		"room-b": handlersB,
	})
	defer c.Release(uid)

	if err := c.Subscribe(transport.Descriptor{Channel: "ChatChannel", Room: "a"}, "room-a"); err != nil {
		t.Fatalf("subscribe room-a failed: %v", err)
	}
	if err := c.Subscribe(transport.Descriptor{Channel: "ChatChannel", Room: "b"}, "room-b"); err != nil {
		t.Fatalf("subscribe room-b failed: %v", err)
	}
	waitForState(t, c, "room-a", cable.StateConnected)
	waitForState(t, c, "room-b", cable.StateConnected)

	err = c.Perform(cable.PerformRequest{
		Channel: "room-a",
		Action:  "send_message",
		Data:    map[string]interface{}{"content": "only-a"},
	})
	if err != nil {
		t.Fatalf("perform failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := waitForEvent(ctx, roomACh); err != nil {
		t.Fatalf("room-a: %v", err)
	}

	select {
	case data := <-roomBCh:
		t.Errorf("expected no delivery in room-b, got %s", data)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestCable_ReleaseStopsDelivery(t *testing.T) {
	url := startCableServer(t, server.Options{})

	c, err := cable.New(cable.Options{URL: url})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer c.Close()

	ch, handlers := newEventCollector(1)
	uid := c.Declare(&struct{}{}, "", map[string]cable.Handlers{"room": handlers})

	desc := transport.Descriptor{Channel: "ChatChannel", Room: "release"}
	if err := c.Subscribe(desc, "room"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	waitForState(t, c, "room", cable.StateConnected)

	if err := c.Release(uid); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if len(c.Channels()) != 0 {
		t.Fatalf("expected no channels after release, got %v", c.Channels())
	}

	// A second client publishes in the same room; the released client must
	// stay silent.
	other, err := cable.New(cable.Options{URL: url})
	if err != nil {
		t.Fatalf("other connect failed: %v", err)
	}
	defer other.Close()

	if err := other.Subscribe(desc, "room"); err != nil {
		t.Fatalf("other subscribe failed: %v", err)
	}
	waitForState(t, other, "room", cable.StateConnected)

	err = other.Perform(cable.PerformRequest{
		Channel: "room",
		Action:  "send_message",
		Data:    map[string]interface{}{"content": "late"},
	})
	if err != nil {
		t.Fatalf("perform failed: %v", err)
	}

	select {
	case data := <-ch:
		t.Errorf("expected no delivery after release, got %s", data)
	case <-time.After(500 * time.Millisecond):
	}
}
