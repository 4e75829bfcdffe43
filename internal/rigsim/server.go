// Package rigsim emulates the rig controller's WebSocket endpoint. It accepts
// the panel's commands, answers each with a typed reply and records what it
// received so tests and demos can run without hardware.
package rigsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tturner/brushrig/internal/logging"
	"github.com/tturner/brushrig/internal/protocol"
)

// Options configures the emulator.
type Options struct {
	Listen     string
	Path       string
	ReplyDelay time.Duration
	Brushes    []string
}

// Command is one frame received from a client.
type Command struct {
	Type       string
	Raw        []byte
	Payload    map[string]any
	ReceivedAt time.Time
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.conn.WriteJSON(v)
}

// Server is the emulated rig controller.
type Server struct {
	opts     Options
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	commands []Command
	running  string
	notify   chan struct{}

	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
}

// New creates an emulator. Use Handler with an existing HTTP server or
// Start to listen on opts.Listen.
func New(opts Options, logger *logging.Logger) *Server {
	if opts.Path == "" {
		opts.Path = "/ws"
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
		notify:  make(chan struct{}),
	}
}

// Handler returns an http.Handler serving the WebSocket endpoint at the
// configured path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.opts.Path, s.serveWS)
	return mux
}

// Start listens on opts.Listen and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Listen, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("rig emulator listening on ws://%s%s", ln.Addr(), s.opts.Path)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("rig emulator: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes every client and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.DropAll()
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

// Commands returns a copy of every frame received so far.
func (s *Server) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.commands...)
}

// WaitForCommands blocks until at least n frames were received or ctx ends.
func (s *Server) WaitForCommands(ctx context.Context, n int) ([]Command, error) {
	for {
		s.mu.Lock()
		if len(s.commands) >= n {
			out := append([]Command(nil), s.commands...)
			s.mu.Unlock()
			return out, nil
		}
		notify := s.notify
		s.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return s.Commands(), ctx.Err()
		}
	}
}

// Clients returns the number of live connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// DropAll closes every client connection without a close frame, the way
// a controller reboot would.
func (s *Server) DropAll() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

// Broadcast sends an arbitrary frame to every client.
func (s *Server) Broadcast(v any) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.writeJSON(v); err != nil {
			s.logger.Verbose("broadcast: %v", err)
		}
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	c := &client{conn: conn}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	running := s.running
	s.mu.Unlock()

	s.logger.Info("panel connected from %s", r.RemoteAddr)
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		conn.Close()
		s.logger.Info("panel %s disconnected", r.RemoteAddr)
	}()

	state := "idle"
	if running != "" {
		state = "running"
	}
	if err := c.writeJSON(s.statusFrame(state, running)); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply := s.handle(data)
		if s.opts.ReplyDelay > 0 {
			time.Sleep(s.opts.ReplyDelay)
		}
		if err := c.writeJSON(reply); err != nil {
			return
		}
	}
}

func (s *Server) statusFrame(state, config string) map[string]any {
	brushes := s.opts.Brushes
	if brushes == nil {
		brushes = []string{}
	}
	frame := map[string]any{
		"type":      string(protocol.TypeStatus),
		"state":     state,
		"brushes":   brushes,
		"timestamp": protocol.Timestamp(time.Now()),
	}
	if config != "" {
		frame["configName"] = config
	}
	return frame
}

// handle records the frame and builds the reply for it.
func (s *Server) handle(data []byte) map[string]any {
	cmd := Command{Raw: append([]byte(nil), data...), ReceivedAt: time.Now()}
	var payload map[string]any
	err := json.Unmarshal(data, &payload)
	if err == nil {
		cmd.Payload = payload
		cmd.Type, _ = payload["type"].(string)
	}

	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()

	if err != nil {
		s.logger.Verbose("rejecting unparsable frame: %v", err)
		return errorFrame("invalid JSON: " + err.Error())
	}
	s.logger.Verbose("received %s", cmd.Type)

	switch protocol.Type(cmd.Type) {
	case protocol.TypeTest:
		row, brush, cycles := intField(payload, "rowIndex"), stringField(payload, "brushName"), intField(payload, "cycleCount")
		if row < 1 || brush == "" || cycles < 1 {
			return errorFrame("test requires rowIndex, brushName and cycleCount")
		}
		return responseFrame(cmd.Type, map[string]any{
			"message": fmt.Sprintf("Row %d testing brush %s for %d cycles", row, brush, cycles),
		})

	case protocol.TypeSaveConfiguration:
		name := stringField(payload, "configName")
		if name == "" {
			return errorFrame("save_configuration requires configName")
		}
		rows, _ := payload["configData"].([]any)
		return map[string]any{
			"type":       string(protocol.TypeAck),
			"command":    cmd.Type,
			"configName": name,
			"rows":       len(rows),
			"timestamp":  protocol.Timestamp(time.Now()),
		}

	case protocol.TypeRunCycle:
		name := stringField(payload, "configName")
		if name == "" {
			return errorFrame("run_cycle requires configName")
		}
		s.mu.Lock()
		s.running = name
		s.mu.Unlock()
		return responseFrame(cmd.Type, map[string]any{"configName": name})

	case protocol.TypeEmergency:
		s.mu.Lock()
		s.running = ""
		s.mu.Unlock()
		return responseFrame(cmd.Type, map[string]any{"action": stringField(payload, "action")})

	default:
		return errorFrame(fmt.Sprintf("unknown command type %q", cmd.Type))
	}
}

func responseFrame(command string, extra map[string]any) map[string]any {
	frame := map[string]any{
		"type":      string(protocol.TypeResponse),
		"command":   command,
		"ok":        true,
		"timestamp": protocol.Timestamp(time.Now()),
	}
	for k, v := range extra {
		frame[k] = v
	}
	return frame
}

func errorFrame(message string) map[string]any {
	return map[string]any{
		"type":      string(protocol.TypeError),
		"message":   message,
		"timestamp": protocol.Timestamp(time.Now()),
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) int {
	f, ok := m[key].(float64)
	if !ok {
		return 0
	}
	return int(f)
}
