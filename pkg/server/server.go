// Package server is a development channel server: enough of the cable wire
// protocol for the demo client and the end-to-end tests to run against a
// real WebSocket peer. Messages performed on an identifier are broadcast to
// every connection subscribed to that identifier. It is not a production
// server.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cablekit/cablekit/pkg/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Development server; accept any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options configures the dev server.
type Options struct {
	Logger *logging.ColoredLogger

	// Authorize decides whether a subscribe command is confirmed or
	// rejected, given the identifier and the connection's token. Nil
	// accepts everything.
	Authorize func(identifier, token string) bool

	// PingInterval is the keepalive ping cadence. Zero means 15 seconds.
	PingInterval time.Duration
}

// Server broadcasts performed messages between subscribed connections.
type Server struct {
	logger       *logging.ColoredLogger
	authorize    func(identifier, token string) bool
	pingInterval time.Duration

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// session is one WebSocket connection and the identifiers it subscribed.
type session struct {
	conn  *websocket.Conn
	token string

	writeMu sync.Mutex

	mu          sync.RWMutex
	identifiers map[string]struct{}
}

type serverFrame struct {
	Type       string          `json:"type,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
}

type clientCommand struct {
	Command    string `json:"command"`
	Identifier string `json:"identifier"`
	Data       string `json:"data,omitempty"`
}

// New creates a dev server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	interval := opts.PingInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Server{
		logger:       logger,
		authorize:    opts.Authorize,
		pingInterval: interval,
		sessions:     make(map[*session]struct{}),
	}
}

// Router returns the HTTP routes: a health probe and the cable endpoint.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	r.Get("/cable", s.handleCable)

	return r
}

// handleCable upgrades the connection, welcomes the client, and serves
// commands until the socket dies.
func (s *Server) handleCable(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.ComponentWarn(logging.ComponentServer, "upgrade failed", zap.Error(err))
		return
	}

	sess := &session{
		conn:        conn,
		token:       r.URL.Query().Get("token"),
		identifiers: make(map[string]struct{}),
	}

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	count := len(s.sessions)
	s.mu.Unlock()

	s.logger.ComponentInfo(logging.ComponentServer, "client connected",
		zap.Int("sessions", count))

	if err := sess.send(serverFrame{Type: "welcome"}); err != nil {
		s.drop(sess)
		return
	}

	done := make(chan struct{})
	go s.pingLoop(sess, done)

	s.readLoop(sess)
	close(done)
	s.drop(sess)
}

// readLoop serves subscribe/unsubscribe/message commands from one client.
func (s *Server) readLoop(sess *session) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.logger.ComponentWarn(logging.ComponentServer, "discarding unparseable command",
				zap.Int("len", len(data)))
			continue
		}

		switch cmd.Command {
		case "subscribe":
			s.handleSubscribe(sess, cmd.Identifier)
		case "unsubscribe":
			sess.mu.Lock()
			delete(sess.identifiers, cmd.Identifier)
			sess.mu.Unlock()
			s.logger.ComponentDebug(logging.ComponentServer, "unsubscribed",
				zap.String("identifier", cmd.Identifier))
		case "message":
			s.handleMessage(sess, cmd)
		default:
			s.logger.ComponentWarn(logging.ComponentServer, "unknown command",
				zap.String("command", cmd.Command))
		}
	}
}

func (s *Server) handleSubscribe(sess *session, identifier string) {
	if s.authorize != nil && !s.authorize(identifier, sess.token) {
		s.logger.ComponentInfo(logging.ComponentServer, "subscription rejected",
			zap.String("identifier", identifier))
		_ = sess.send(serverFrame{Type: "reject_subscription", Identifier: identifier})
		return
	}

	sess.mu.Lock()
	sess.identifiers[identifier] = struct{}{}
	sess.mu.Unlock()

	_ = sess.send(serverFrame{Type: "confirm_subscription", Identifier: identifier})
	s.logger.ComponentInfo(logging.ComponentServer, "subscription confirmed",
		zap.String("identifier", identifier))
}

// handleMessage broadcasts a performed message to every session subscribed
// to the identifier, the sender included.
func (s *Server) handleMessage(sender *session, cmd clientCommand) {
	sender.mu.RLock()
	_, subscribed := sender.identifiers[cmd.Identifier]
	sender.mu.RUnlock()
	if !subscribed {
		s.logger.ComponentWarn(logging.ComponentServer, "message for unsubscribed identifier",
			zap.String("identifier", cmd.Identifier))
		return
	}

	var payload json.RawMessage
	if err := json.Unmarshal([]byte(cmd.Data), &payload); err != nil {
		s.logger.ComponentWarn(logging.ComponentServer, "discarding message with invalid data",
			zap.String("identifier", cmd.Identifier))
		return
	}

	frame := serverFrame{Identifier: cmd.Identifier, Message: payload}

	s.mu.RLock()
	targets := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sess.mu.RLock()
		_, ok := sess.identifiers[cmd.Identifier]
		sess.mu.RUnlock()
		if ok {
			targets = append(targets, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.send(frame); err != nil {
			s.logger.ComponentWarn(logging.ComponentServer, "broadcast write failed",
				zap.Error(err))
		}
	}

	s.logger.ComponentDebug(logging.ComponentServer, "message broadcast",
		zap.String("identifier", cmd.Identifier),
		zap.Int("receivers", len(targets)))
}

// pingLoop sends keepalive pings until the session ends.
func (s *Server) pingLoop(sess *session, done chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			msg, _ := json.Marshal(time.Now().Unix())
			if err := sess.send(serverFrame{Type: "ping", Message: msg}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// drop removes a session and closes its socket.
func (s *Server) drop(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	count := len(s.sessions)
	s.mu.Unlock()

	_ = sess.conn.Close()
	s.logger.ComponentInfo(logging.ComponentServer, "client disconnected",
		zap.Int("sessions", count))
}

// send writes one frame with a write deadline.
func (sess *session) send(frame serverFrame) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	sess.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return sess.conn.WriteJSON(frame)
}
