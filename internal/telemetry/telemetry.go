package telemetry

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tturner/brushrig/internal/protocol"
)

// Collector captures connection and message events emitted by the rig
// connection manager.
//
// Implementations may forward metrics to Prometheus or other monitoring
// systems. They are called inline from the send and receive paths, so they
// must be cheap.
type Collector interface {
	SetConnectionState(state int)
	IncReconnectAttempt()
	IncMessageSent(msgType string)
	IncMessageReceived(msgType string)
	IncSendFailure()
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) SetConnectionState(int)    {}
func (noopCollector) IncReconnectAttempt()      {}
func (noopCollector) IncMessageSent(string)     {}
func (noopCollector) IncMessageReceived(string) {}
func (noopCollector) IncSendFailure()           {}

// PrometheusCollector exposes connection metrics via Prometheus.
type PrometheusCollector struct {
	connectionState prometheus.Gauge
	reconnects      prometheus.Counter
	sent            *prometheus.CounterVec
	received        *prometheus.CounterVec
	sendFailures    prometheus.Counter
}

// NewPrometheusCollector registers the required metrics with the provided
// registerer. Metrics that are already registered are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	state, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brushrig_connection_state",
		Help: "Current rig connection state (0=disconnected, 1=connecting, 2=connected, 3=error).",
	}))
	if err != nil {
		return nil, err
	}
	reconnects, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brushrig_reconnect_attempts_total",
		Help: "Number of scheduled reconnect attempts.",
	}))
	if err != nil {
		return nil, err
	}
	sent, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brushrig_messages_sent_total",
		Help: "Messages sent to the rig controller per message type.",
	}, []string{"type"}))
	if err != nil {
		return nil, err
	}
	received, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brushrig_messages_received_total",
		Help: "Messages received from the rig controller per message type.",
	}, []string{"type"}))
	if err != nil {
		return nil, err
	}
	failures, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brushrig_send_failures_total",
		Help: "Sends that were dropped or failed to transmit.",
	}))
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		connectionState: state,
		reconnects:      reconnects,
		sent:            sent,
		received:        received,
		sendFailures:    failures,
	}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// SetConnectionState records the numeric connection state.
func (p *PrometheusCollector) SetConnectionState(state int) {
	if p == nil || p.connectionState == nil {
		return
	}
	p.connectionState.Set(float64(state))
}

// IncReconnectAttempt counts one scheduled reconnect.
func (p *PrometheusCollector) IncReconnectAttempt() {
	if p == nil || p.reconnects == nil {
		return
	}
	p.reconnects.Inc()
}

// IncMessageSent counts one transmitted message.
func (p *PrometheusCollector) IncMessageSent(msgType string) {
	if p == nil || p.sent == nil {
		return
	}
	p.sent.WithLabelValues(typeLabel(msgType)).Inc()
}

// IncMessageReceived counts one inbound frame.
func (p *PrometheusCollector) IncMessageReceived(msgType string) {
	if p == nil || p.received == nil {
		return
	}
	p.received.WithLabelValues(typeLabel(msgType)).Inc()
}

// IncSendFailure counts one dropped or failed send.
func (p *PrometheusCollector) IncSendFailure() {
	if p == nil || p.sendFailures == nil {
		return
	}
	p.sendFailures.Inc()
}

// knownTypes bounds the type label. The rig chooses the inbound "type", so
// anything outside the protocol's set is counted as "other".
var knownTypes = map[protocol.Type]bool{
	protocol.TypeTest:              true,
	protocol.TypeSaveConfiguration: true,
	protocol.TypeRunCycle:          true,
	protocol.TypeEmergency:         true,
	protocol.TypeResponse:          true,
	protocol.TypeStatus:            true,
	protocol.TypeError:             true,
	protocol.TypeAck:               true,
	protocol.TypeData:              true,
}

func typeLabel(t string) string {
	switch {
	case t == "":
		return "untyped"
	case knownTypes[protocol.Type(t)]:
		return t
	default:
		return "other"
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
