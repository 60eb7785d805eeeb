package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/omochice/livechat/internal/clock"
	"github.com/omochice/livechat/internal/metrics"
	"github.com/omochice/livechat/internal/session"
	"github.com/omochice/livechat/internal/transcript"
	"github.com/omochice/livechat/pkg/protocol"
)

var epoch = time.Date(2024, 5, 1, 3, 30, 45, 123_000_000, time.UTC)

const delay = 3 * time.Second

type harness struct {
	client  *Client
	dialer  *fakeDialer
	clock   *clock.FakeClock
	obs     *observer
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, dialer *fakeDialer) *harness {
	t.Helper()
	h := &harness{
		dialer:  dialer,
		clock:   clock.Fake(epoch),
		obs:     newObserver(),
		metrics: metrics.New(),
	}
	c, err := New(Options{
		Endpoint:       session.Endpoint{Scheme: "ws", Host: "localhost:3001", Identity: "alice"},
		Codec:          protocol.JSONCodec{},
		Dialer:         dialer,
		Clock:          h.clock,
		ReconnectDelay: delay,
		Metrics:        h.metrics,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Subscribe(h.obs)
	h.client = c
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.client.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(h.client.Shutdown)
}

func (h *harness) waitState(t *testing.T, want session.State) {
	t.Helper()
	h.obs.waitFor(t, "state "+want.String(), func() bool { return h.obs.State() == want })
}

func encode(t *testing.T, m protocol.Message) []byte {
	t.Helper()
	data, err := protocol.JSONCodec{}.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestNew_RequiresCodecAndDialer(t *testing.T) {
	if _, err := New(Options{Dialer: &fakeDialer{}}); err == nil {
		t.Error("New() without codec should fail")
	}
	if _, err := New(Options{Codec: protocol.JSONCodec{}}); err == nil {
		t.Error("New() without dialer should fail")
	}
}

func TestClient_SubmitBeforeStart(t *testing.T) {
	h := newHarness(t, &fakeDialer{})
	if err := h.client.Submit("hello"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Submit() = %v, want ErrNotConnected", err)
	}
	h.client.Shutdown()
	if err := h.client.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Shutdown = %v, want ErrClosed", err)
	}
}

func TestClient_SendGating_Connecting(t *testing.T) {
	conn := newFakeConn()
	block := make(chan struct{})
	h := newHarness(t, &fakeDialer{results: []*fakeConn{conn}, block: block})
	h.start(t)
	h.waitState(t, session.Connecting)

	if err := h.client.Submit("hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Submit() while connecting = %v, want ErrNotConnected", err)
	}
	if h.obs.Changes() != 0 {
		t.Error("transcript changed while connecting")
	}

	close(block)
	h.waitState(t, session.Connected)
	if got := len(conn.Written()); got != 0 {
		t.Errorf("frames written = %d, want 0", got)
	}
}

func TestClient_SendGating_Disconnected(t *testing.T) {
	h := newHarness(t, &fakeDialer{})
	h.start(t)
	h.obs.waitFor(t, "failed attempt", func() bool {
		states := h.obs.States()
		return len(states) >= 2 && states[len(states)-1] == session.Disconnected
	})

	if err := h.client.Submit("hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Submit() while disconnected = %v, want ErrNotConnected", err)
	}
	if h.obs.Changes() != 0 {
		t.Error("transcript changed while disconnected")
	}
}

func TestClient_SubmitEmpty(t *testing.T) {
	h := newHarness(t, &fakeDialer{results: []*fakeConn{newFakeConn()}})
	h.start(t)
	h.waitState(t, session.Connected)

	if err := h.client.Submit("   "); !errors.Is(err, transcript.ErrEmptyContent) {
		t.Errorf("Submit() = %v, want ErrEmptyContent", err)
	}
}

func TestClient_SubmitAndEcho(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, &fakeDialer{results: []*fakeConn{conn}})
	h.start(t)
	h.waitState(t, session.Connected)

	if err := h.client.Submit("  hello "); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	written := conn.Written()
	if len(written) != 1 {
		t.Fatalf("frames written = %d, want 1", len(written))
	}
	sent, err := protocol.JSONCodec{}.Decode(written[0])
	if err != nil {
		t.Fatal(err)
	}
	wantSent := protocol.Message{Content: "hello", Timestamp: "2024-05-01T03:30:45.123Z"}
	if sent != wantSent {
		t.Errorf("sent %+v, want %+v", sent, wantSent)
	}

	local := protocol.Message{Content: "hello", Sender: "alice", Timestamp: "2024-05-01T03:30:45.123Z"}
	h.obs.waitFor(t, "local echo", func() bool { return len(h.obs.Transcript()) == 1 })
	if got := h.obs.Transcript()[0]; got != local {
		t.Errorf("transcript[0] = %+v, want %+v", got, local)
	}

	// The relay echoes the message back attributed to alice.
	conn.incoming <- encode(t, local)
	h.obs.waitFor(t, "duplicate drop", func() bool {
		return testutil.ToFloat64(h.metrics.DuplicatesDropped) == 1
	})
	if got := h.obs.Changes(); got != 1 {
		t.Errorf("transcript changes = %d, want 1", got)
	}

	// A response frame ends the pending reply.
	conn.incoming <- encode(t, protocol.Message{
		Type:      protocol.MessageTypeResponse,
		Content:   "received: hello",
		Sender:    "relay",
		Timestamp: "2024-05-01T03:30:46.000Z",
	})
	h.obs.waitFor(t, "response", func() bool { return len(h.obs.Transcript()) == 2 })
	h.obs.waitFor(t, "reply cleared", func() bool {
		p := h.obs.Pending()
		return len(p) == 2 && p[0] && !p[1]
	})
}

func TestClient_MalformedFramesDropped(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, &fakeDialer{results: []*fakeConn{conn}})
	h.start(t)
	h.waitState(t, session.Connected)

	conn.incoming <- []byte("{not json")
	conn.incoming <- []byte(`{"content":"   "}`)
	conn.incoming <- encode(t, protocol.Message{Content: "still here", Sender: "bob", Timestamp: "t1"})

	h.obs.waitFor(t, "valid frame", func() bool { return len(h.obs.Transcript()) == 1 })
	if got := testutil.ToFloat64(h.metrics.FramesMalformed); got != 2 {
		t.Errorf("malformed frames = %v, want 2", got)
	}
	if h.obs.State() != session.Connected {
		t.Errorf("state = %v, malformed frames must not close the session", h.obs.State())
	}
}

func TestClient_ReconnectConvergence(t *testing.T) {
	const failures = 3
	conn := newFakeConn()
	results := make([]*fakeConn, failures, failures+1)
	results = append(results, conn)
	h := newHarness(t, &fakeDialer{results: results})
	h.start(t)

	for i := 1; i <= failures; i++ {
		h.clock.WaitForTimers(1)
		if got := h.clock.PendingCount(); got != 1 {
			t.Fatalf("attempt %d: pending timers = %d, want 1", i, got)
		}
		if got := h.dialer.Calls(); got != i {
			t.Fatalf("attempt %d: dial calls = %d, want %d", i, got, i)
		}
		h.clock.Advance(delay - time.Millisecond)
		if got := h.dialer.Calls(); got != i {
			t.Fatalf("attempt %d: redialed before the delay", i)
		}
		h.clock.Advance(time.Millisecond)
	}

	h.waitState(t, session.Connected)
	if got := h.dialer.Calls(); got != failures+1 {
		t.Errorf("dial calls = %d, want %d", got, failures+1)
	}
	if got := h.clock.Now().Sub(epoch); got != failures*delay {
		t.Errorf("elapsed = %v, want %v", got, failures*delay)
	}
	if got := h.clock.PendingCount(); got != 0 {
		t.Errorf("pending timers after connecting = %d", got)
	}
	if got := testutil.ToFloat64(h.metrics.ConnectAttempts); got != failures+1 {
		t.Errorf("connect attempts metric = %v", got)
	}
}

func TestClient_ShutdownIsTerminal(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, &fakeDialer{results: []*fakeConn{conn}})
	h.start(t)
	h.waitState(t, session.Connected)

	h.client.Shutdown()

	if h.obs.State() != session.Disconnected {
		t.Errorf("state after Shutdown = %v", h.obs.State())
	}
	select {
	case <-h.client.Done():
	default:
		t.Fatal("Done() not closed after Shutdown")
	}

	// A spurious closure after shutdown must not schedule a reconnect.
	h.client.supervisor.SessionClosed()
	if got := h.clock.PendingCount(); got != 0 {
		t.Fatalf("pending timers after Shutdown = %d", got)
	}
	h.clock.Advance(time.Hour)

	if got := h.dialer.Calls(); got != 1 {
		t.Errorf("dial calls = %d, want 1", got)
	}
	if err := h.client.Submit("hello"); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Shutdown = %v, want ErrClosed", err)
	}
	h.client.Shutdown()
}

func TestClient_ShutdownCancelsPendingRetry(t *testing.T) {
	h := newHarness(t, &fakeDialer{})
	h.start(t)
	h.clock.WaitForTimers(1)

	h.client.Shutdown()

	if got := h.clock.PendingCount(); got != 0 {
		t.Errorf("pending timers = %d, want 0", got)
	}
	h.clock.Advance(time.Minute)
	if got := h.dialer.Calls(); got != 1 {
		t.Errorf("dial calls = %d, want 1", got)
	}
}

func TestClient_ContextCancelEndsLoop(t *testing.T) {
	h := newHarness(t, &fakeDialer{results: []*fakeConn{newFakeConn()}})
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.client.Start(ctx); err != nil {
		t.Fatal(err)
	}
	h.waitState(t, session.Connected)

	cancel()
	select {
	case <-h.client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on context cancel")
	}
	if err := h.client.Submit("hello"); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() = %v, want ErrClosed", err)
	}
	h.client.Shutdown()
}

func TestClient_DisconnectClearsReplyPending(t *testing.T) {
	conn := newFakeConn()
	h := newHarness(t, &fakeDialer{results: []*fakeConn{conn}})
	h.start(t)
	h.waitState(t, session.Connected)

	if err := h.client.Submit("anyone?"); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	h.waitState(t, session.Disconnected)
	h.obs.waitFor(t, "reply cleared", func() bool {
		p := h.obs.Pending()
		return len(p) == 2 && !p[1]
	})
	h.clock.WaitForTimers(1)
}
