package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Messages forwarded into the program by the channel handlers.
type (
	channelConnectedMsg    struct{}
	channelDisconnectedMsg struct{}
	channelRejectedMsg     struct{}
	channelReceivedMsg     struct{ data []byte }
)

// chatLine is the payload carried inside a broadcast frame.
type chatLine struct {
	Handle  string `json:"handle"`
	Content string `json:"content"`
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D4AA")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	handleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D4AA"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)
)

// Model is the bubbletea model for the chat client.
type Model struct {
	room   string
	handle string

	textInput textinput.Model
	lines     []string
	status    string
	err       error

	// send performs the message action on the subscribed channel.
	send func(content string) error
}

// NewModel creates a chat model for one room.
func NewModel(room, handle string, send func(content string) error) Model {
	ti := textinput.New()
	ti.Placeholder = "say something"
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 60

	return Model{
		room:      room,
		handle:    handle,
		textInput: ti,
		status:    "connecting...",
		send:      send,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			content := m.textInput.Value()
			if content == "" {
				return m, nil
			}
			if err := m.send(content); err != nil {
				m.err = err
				return m, nil
			}
			m.textInput.Reset()
			return m, nil
		}

	case channelConnectedMsg:
		m.status = "connected"
		m.err = nil
		return m, nil

	case channelDisconnectedMsg:
		m.status = "disconnected, waiting for the server"
		return m, nil

	case channelRejectedMsg:
		m.status = "rejected"
		m.err = fmt.Errorf("the server rejected the subscription to %q", m.room)
		return m, nil

	case channelReceivedMsg:
		var line chatLine
		if err := json.Unmarshal(msg.data, &line); err != nil {
			return m, nil
		}
		m.lines = append(m.lines, handleStyle.Render(line.Handle)+" "+line.Content)
		if len(m.lines) > 100 {
			m.lines = m.lines[len(m.lines)-100:]
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	s := titleStyle.Render(fmt.Sprintf("#%s", m.room)) + "\n"
	s += statusStyle.Render(m.status) + "\n\n"

	for _, line := range m.lines {
		s += line + "\n"
	}

	s += "\n" + m.textInput.View() + "\n"
	if m.err != nil {
		s += errorStyle.Render(m.err.Error()) + "\n"
	}
	s += helpStyle.Render("enter to send, esc to quit")
	return s
}
