// Package rigconn maintains the WebSocket connection to the rig controller.
// A Manager reconnects after a fixed delay, up to a bounded number of
// attempts, and fans inbound frames and state changes out to subscribers.
package rigconn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tturner/brushrig/internal/logging"
	"github.com/tturner/brushrig/internal/metrics"
	"github.com/tturner/brushrig/internal/protocol"
	"github.com/tturner/brushrig/internal/telemetry"
)

var (
	// ErrNotConnected is returned by Send when no live connection exists.
	ErrNotConnected = errors.New("rigconn: not connected")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("rigconn: manager closed")
)

const (
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultDialTimeout          = 5 * time.Second
	DefaultWriteTimeout         = 2 * time.Second
)

// Dialer opens WebSocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Options configures a Manager.
type Options struct {
	URL string
	// ReconnectDelay is the fixed wait before each reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts bounds consecutive reconnects; 0 means unbounded.
	MaxReconnectAttempts int
	DialTimeout          time.Duration
	WriteTimeout         time.Duration

	Dialer    Dialer
	Telemetry telemetry.Collector
	Metrics   *metrics.Sink
}

// Manager owns one rig connection at a time.
type Manager struct {
	opts   Options
	dialer Dialer
	logger *logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	gen      uint64
	attempts int
	timer    *time.Timer
	closed   bool

	writeMu sync.Mutex

	subMu       sync.RWMutex
	statusSubs  []func(State)
	messageSubs []func(protocol.Inbound)
}

// New returns a disconnected manager. Call Connect to start it.
func New(opts Options, logger *logging.Logger) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MaxReconnectAttempts < 0 {
		opts.MaxReconnectAttempts = 0
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Noop()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
		}
	}
	return &Manager{
		opts:   opts,
		dialer: dialer,
		logger: logger,
		now:    time.Now,
		state:  Disconnected,
	}
}

// URL returns the endpoint the manager dials.
func (m *Manager) URL() string {
	return m.opts.URL
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of reconnects scheduled since the last
// successful open or explicit Connect.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// OnStatus registers fn for every state change. Callbacks run outside the
// manager's lock on the goroutine that caused the change.
func (m *Manager) OnStatus(fn func(State)) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.statusSubs = append(m.statusSubs, fn)
}

// OnMessage registers fn for every inbound frame.
func (m *Manager) OnMessage(fn func(protocol.Inbound)) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.messageSubs = append(m.messageSubs, fn)
}

// Connect dials the rig. It cancels any pending reconnect and resets the
// retry counter. A failed dial is returned and also schedules a reconnect.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.stopTimerLocked()
	m.attempts = 0
	m.mu.Unlock()

	return m.dial(ctx)
}

func (m *Manager) dial(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	stale := m.conn
	m.conn = nil
	m.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	m.setState(gen, Connecting)
	m.logger.Verbose("dialing %s", m.opts.URL)

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	conn, resp, err := m.dialer.DialContext(dialCtx, m.opts.URL, nil)
	cancel()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		m.logger.Error("WebSocket error: %v", err)
		m.setState(gen, Error)
		m.handleClose(gen)
		return fmt.Errorf("connect %s: %w", m.opts.URL, err)
	}

	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		conn.Close()
		return fmt.Errorf("connect %s: superseded", m.opts.URL)
	}
	m.conn = conn
	m.attempts = 0
	m.stopTimerLocked()
	m.mu.Unlock()

	m.logger.Info("connected to %s", m.opts.URL)
	m.setState(gen, Connected)
	go m.readLoop(gen, conn)
	return nil
}

// Send transmits message as one text frame. Strings and byte slices are
// sent verbatim; anything else is encoded as JSON. Nothing is queued: a
// send while disconnected returns ErrNotConnected.
func (m *Manager) Send(message any) error {
	m.mu.Lock()
	conn, state, closed := m.conn, m.state, m.closed
	m.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil || state != Connected {
		m.logger.Error("WebSocket not connected, dropping message")
		m.recordSend("", 0, ErrNotConnected)
		return ErrNotConnected
	}

	data, err := protocol.Encode(message)
	if err != nil {
		err = fmt.Errorf("encode message: %w", err)
		m.recordSend("", 0, err)
		return err
	}
	msgType := protocol.Decode(data).Type

	m.writeMu.Lock()
	conn.SetWriteDeadline(m.now().Add(m.opts.WriteTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	m.writeMu.Unlock()
	if err != nil {
		err = fmt.Errorf("send %s: %w", displayType(msgType), err)
		m.recordSend(msgType, len(data), err)
		return err
	}

	m.recordSend(msgType, len(data), nil)
	return nil
}

// Disconnect closes the live connection with a normal-closure frame. No
// automatic reconnect follows.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopTimerLocked()
	m.gen++
	gen := m.gen
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		deadline := m.now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
		m.logger.Info("disconnected from %s", m.opts.URL)
	}
	m.setState(gen, Disconnected)
}

// Close disconnects and makes the manager unusable.
func (m *Manager) Close() {
	m.Disconnect()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *Manager) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Verbose("read from %s: %v", m.opts.URL, err)
				m.setState(gen, Error)
			}
			conn.Close()
			m.handleClose(gen)
			return
		}
		m.dispatch(gen, data)
	}
}

func (m *Manager) dispatch(gen uint64, data []byte) {
	m.mu.Lock()
	current := gen == m.gen
	m.mu.Unlock()
	if !current {
		return
	}

	in := protocol.Decode(data)
	in.ReceivedAt = m.now()

	m.logger.LogMessage("RECV", in.Type, len(data), nil)
	m.logger.Debug("%s: %s", in.Status, data)
	m.opts.Telemetry.IncMessageReceived(in.Type)
	if m.opts.Metrics != nil {
		m.opts.Metrics.Record(metrics.Metric{
			Timestamp: in.ReceivedAt,
			Direction: metrics.DirectionRecv,
			Type:      in.Type,
			Bytes:     len(data),
			Success:   true,
			Status:    in.Status,
		})
	}

	m.subMu.RLock()
	subs := append([]func(protocol.Inbound){}, m.messageSubs...)
	m.subMu.RUnlock()
	for _, fn := range subs {
		fn(in)
	}
}

// handleClose runs for every socket that ends without a manual Disconnect.
func (m *Manager) handleClose(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.mu.Unlock()

	m.logger.Info("WebSocket disconnected")
	m.setState(gen, Disconnected)
	m.scheduleReconnect(gen)
}

func (m *Manager) scheduleReconnect(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.closed || m.timer != nil {
		return
	}
	limit := m.opts.MaxReconnectAttempts
	if limit > 0 && m.attempts >= limit {
		m.logger.Error("max reconnection attempts (%d) reached, waiting for manual connect", limit)
		return
	}
	m.attempts++
	if limit > 0 {
		m.logger.Info("attempting to reconnect in %s (%d/%d)", m.opts.ReconnectDelay, m.attempts, limit)
	} else {
		m.logger.Info("attempting to reconnect in %s (attempt %d)", m.opts.ReconnectDelay, m.attempts)
	}
	m.opts.Telemetry.IncReconnectAttempt()
	m.timer = time.AfterFunc(m.opts.ReconnectDelay, func() { m.reconnect(gen) })
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	// Failures schedule the next attempt themselves.
	_ = m.dial(context.Background())
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) setState(gen uint64, s State) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.state = s
	attempt := m.attempts
	m.mu.Unlock()

	m.logger.LogStateChange(from.String(), s.String(), attempt)
	m.opts.Telemetry.SetConnectionState(int(s))

	m.subMu.RLock()
	subs := append([]func(State){}, m.statusSubs...)
	m.subMu.RUnlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (m *Manager) recordSend(msgType string, size int, err error) {
	m.logger.LogMessage("SEND", msgType, size, err)
	if err != nil {
		m.opts.Telemetry.IncSendFailure()
	} else {
		m.opts.Telemetry.IncMessageSent(msgType)
	}
	if m.opts.Metrics == nil {
		return
	}
	metric := metrics.Metric{
		Timestamp: m.now(),
		Direction: metrics.DirectionSend,
		Type:      msgType,
		Bytes:     size,
		Success:   err == nil,
	}
	if err != nil {
		metric.Error = err.Error()
	}
	m.opts.Metrics.Record(metric)
}

func displayType(t string) string {
	if t == "" {
		return "message"
	}
	return t
}
