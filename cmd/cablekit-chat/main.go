// cablekit-chat is a terminal chat client. It subscribes to one room on a
// cable server and performs send_message actions for everything typed.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cablekit/cablekit/pkg/cable"
	"github.com/cablekit/cablekit/pkg/config"
	"github.com/cablekit/cablekit/pkg/transport"
)

// roomChannel is the logical name the room subscription is registered under.
const roomChannel = "room"

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	url := flag.String("url", "", "cable endpoint, overrides the config")
	room := flag.String("room", "", "room to join, overrides the config")
	handle := flag.String("handle", "", "display name, overrides the config")
	token := flag.String("token", "", "auth token, overrides the config")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		return err
	}
	if *url != "" {
		cfg.Client.URL = *url
	}
	if *room != "" {
		cfg.Client.Room = *room
	}
	if *handle != "" {
		cfg.Client.Handle = *handle
	}
	if *token != "" {
		cfg.Client.Token = *token
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			os.Stderr.WriteString(e.Error() + "\n")
		}
		return fmt.Errorf("invalid configuration")
	}

	c, err := cable.New(cable.Options{
		URL:         cfg.Client.URL,
		LazyConnect: cfg.Client.LazyConnect,
		Token:       func() string { return cfg.Client.Token },
		// The TUI owns the terminal; logging stays at errors only.
	})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Client.URL, err)
	}
	defer c.Close()

	model := NewModel(cfg.Client.Room, cfg.Client.Handle, func(content string) error {
		return c.Perform(cable.PerformRequest{
			Channel: roomChannel,
			Action:  "send_message",
			Data: map[string]interface{}{
				"handle":  cfg.Client.Handle,
				"content": content,
			},
		})
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	// Channel events are forwarded into the program; the owner handed back
	// by the dispatcher is the program itself.
	uid := c.Declare(program, "", map[string]cable.Handlers{
		roomChannel: {
			Connected: func(owner interface{}) {
				owner.(*tea.Program).Send(channelConnectedMsg{})
			},
			Disconnected: func(owner interface{}) {
				owner.(*tea.Program).Send(channelDisconnectedMsg{})
			},
			Rejected: func(owner interface{}) {
				owner.(*tea.Program).Send(channelRejectedMsg{})
			},
			Received: func(owner interface{}, data []byte) {
				owner.(*tea.Program).Send(channelReceivedMsg{data: data})
			},
		},
	})
	defer c.Release(uid)

	desc := transport.Descriptor{Channel: "ChatChannel", Room: cfg.Client.Room}
	if err := c.Subscribe(desc, roomChannel); err != nil {
		return fmt.Errorf("subscribe to %s: %w", cfg.Client.Room, err)
	}

	if _, err := program.Run(); err != nil {
		return err
	}
	return nil
}
