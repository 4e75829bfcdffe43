package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/tturner/brushrig/internal/protocol"
	"github.com/tturner/brushrig/internal/rigconn"
	"github.com/tturner/brushrig/internal/rigsim"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{err: p.err}
}

// pendingToken never completes, like a publish while the broker is down.
type pendingToken struct{}

func (pendingToken) Wait() bool { select {} }
func (pendingToken) WaitTimeout(d time.Duration) bool {
	time.Sleep(d)
	return false
}
func (pendingToken) Error() error          { return nil }
func (pendingToken) Done() <-chan struct{} { return make(chan struct{}) }

type unreachablePublisher struct {
	calls atomic.Int32
}

func (p *unreachablePublisher) Publish(string, byte, bool, interface{}) mqtt.Token {
	p.calls.Add(1)
	return pendingToken{}
}

func startSim(t *testing.T) string {
	t.Helper()
	sim := rigsim.New(rigsim.Options{}, nil)
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestClientIDIsUnique(t *testing.T) {
	a, b := ClientID(), ClientID()
	require.True(t, strings.HasPrefix(a, "brushrig_"))
	require.NotEqual(t, a, b)
}

func TestTopicsUsePrefix(t *testing.T) {
	b := New(&fakePublisher{}, "lab/rig1/", "", nil)
	require.Equal(t, "lab/rig1/status", b.StatusTopic())
	require.Equal(t, "lab/rig1/inbound", b.InboundTopic())

	b = New(&fakePublisher{}, "", "", nil)
	require.Equal(t, "brushrig/status", b.StatusTopic())
}

func TestPublishStatusIsRetained(t *testing.T) {
	pub := &fakePublisher{}
	b := New(pub, "rig", "ws://rig:8080/ws", nil)

	require.NoError(t, b.PublishStatus(rigconn.Connected))
	require.Len(t, pub.msgs, 1)
	require.Equal(t, "rig/status", pub.msgs[0].topic)
	require.True(t, pub.msgs[0].retained)

	var got StatusPayload
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &got))
	require.Equal(t, "connected", got.State)
	require.Equal(t, "ws://rig:8080/ws", got.URL)
	require.NotEmpty(t, got.Timestamp)
}

func TestPublishInboundFrames(t *testing.T) {
	pub := &fakePublisher{}
	b := New(pub, "rig", "", nil)
	at := time.Date(2024, 3, 9, 13, 5, 7, 0, time.UTC)

	in := protocol.Decode([]byte(`{"type":"ack","configName":"A"}`))
	in.ReceivedAt = at
	require.NoError(t, b.PublishInbound(in))

	raw := protocol.Decode([]byte("hello"))
	raw.ReceivedAt = at
	require.NoError(t, b.PublishInbound(raw))

	require.Len(t, pub.msgs, 2)
	require.Equal(t, "rig/inbound", pub.msgs[0].topic)
	require.False(t, pub.msgs[0].retained)

	var typed InboundPayload
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &typed))
	require.Equal(t, "ack", typed.Type)
	require.Equal(t, "Data acknowledged by server", typed.Status)
	require.JSONEq(t, `{"type":"ack","configName":"A"}`, string(typed.Frame))
	require.Equal(t, "2024-03-09T13:05:07.000Z", typed.ReceivedAt)

	var text InboundPayload
	require.NoError(t, json.Unmarshal(pub.msgs[1].payload, &text))
	require.Equal(t, "hello", text.Text)
	require.Empty(t, text.Frame)
	require.Equal(t, protocol.StatusUntyped, text.Status)
}

func TestPublishErrorIsReturned(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	b := New(pub, "rig", "", nil)

	err := b.PublishStatus(rigconn.Error)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rig/status")
}

func TestCloseWithoutClient(t *testing.T) {
	b := New(&fakePublisher{}, "rig", "", nil)
	b.Close()

	calls := 0
	b.disconnect = func() { calls++ }
	b.Close()
	b.Close()
	require.Equal(t, 1, calls)
}

func TestUnreachableBrokerDoesNotDelayManager(t *testing.T) {
	pub := &unreachablePublisher{}
	b := New(pub, "rig", "", nil)
	t.Cleanup(b.Close)

	m := rigconn.New(rigconn.Options{URL: startSim(t), ReconnectDelay: 20 * time.Millisecond}, nil)
	t.Cleanup(m.Close)
	b.Attach(m)

	inbound := make(chan protocol.Inbound, 8)
	m.OnMessage(func(in protocol.Inbound) { inbound <- in })

	start := time.Now()
	require.NoError(t, m.Connect(context.Background()))
	require.Less(t, time.Since(start), 500*time.Millisecond, "connect waited on the broker")

	select {
	case hello := <-inbound:
		require.Equal(t, "status", hello.Type)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("inbound frame held up by the broker")
	}
	require.Less(t, time.Since(start), time.Second)

	require.Eventually(t, func() bool { return pub.calls.Load() > 0 }, time.Second, 10*time.Millisecond)
}

func TestQueueDropsWhenFull(t *testing.T) {
	pub := &unreachablePublisher{}
	b := New(pub, "rig", "", nil)
	t.Cleanup(b.Close)

	start := time.Now()
	for i := 0; i < queueSize*3; i++ {
		b.enqueue(b.StatusTopic(), true, b.statusPayload(rigconn.Connected))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.Len(t, b.queue, queueSize)
}

func TestAttachedBridgePublishesInOrder(t *testing.T) {
	pub := &fakePublisher{}
	b := New(pub, "rig", "", nil)
	t.Cleanup(b.Close)

	m := rigconn.New(rigconn.Options{URL: startSim(t), ReconnectDelay: 20 * time.Millisecond}, nil)
	t.Cleanup(m.Close)
	b.Attach(m)
	require.NoError(t, m.Connect(context.Background()))

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.msgs) >= 3
	}, time.Second, 10*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Equal(t, "rig/status", pub.msgs[0].topic)
	require.Equal(t, "rig/status", pub.msgs[1].topic)
	require.Equal(t, "rig/inbound", pub.msgs[2].topic)

	var state StatusPayload
	require.NoError(t, json.Unmarshal(pub.msgs[1].payload, &state))
	require.Equal(t, "connected", state.State)
}

func TestEnqueueAfterCloseIsIgnored(t *testing.T) {
	b := New(&fakePublisher{}, "rig", "", nil)
	b.Close()
	b.enqueue(b.StatusTopic(), true, b.statusPayload(rigconn.Disconnected))
	require.Empty(t, b.queue)
}
