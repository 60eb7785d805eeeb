package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/omochice/livechat/internal/chat"
)

// Dialer opens a connection to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (chat.Conn, error)
}

type eventKind int

const (
	eventOpened eventKind = iota
	eventClosed
	eventReceived
)

// Event is produced by a connection attempt and applied with Dispatch.
type Event struct {
	kind       eventKind
	generation uint64
	conn       chat.Conn
	payload    []byte
	err        error
}

// handle is the installed connection attempt.
type handle struct {
	generation uint64
	id         string
	conn       chat.Conn
	cancel     context.CancelFunc
	logger     zerolog.Logger
}

// Options configures a Session.
type Options struct {
	// DialTimeout bounds connect plus handshake. Zero disables it.
	DialTimeout time.Duration

	// WriteTimeout bounds a single Send.
	WriteTimeout time.Duration

	// InboxSize is the capacity of the event inbox.
	InboxSize int

	Logger zerolog.Logger
}

// Session wraps at most one live connection attempt. It is not safe for
// concurrent use; see the package documentation.
type Session struct {
	dialer    Dialer
	opts      Options
	logger    zerolog.Logger
	events    chan Event
	state     State
	gen       uint64
	current   *handle
	listeners []Listener
}

// New creates a Session in the Disconnected state.
func New(dialer Dialer, opts Options) *Session {
	if opts.InboxSize <= 0 {
		opts.InboxSize = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Session{
		dialer: dialer,
		opts:   opts,
		logger: opts.Logger,
		events: make(chan Event, opts.InboxSize),
		state:  Disconnected,
	}
}

// AddListener registers l. Listeners are notified in registration order.
func (s *Session) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Events returns the inbox the owning loop must drain into Dispatch.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current connection state.
func (s *Session) State() State {
	return s.state
}

// ID returns the id of the installed attempt, or "" when none is.
func (s *Session) ID() string {
	if s.current == nil {
		return ""
	}
	return s.current.id
}

// Connect starts a new attempt against endpoint. Any installed attempt
// is torn down first without a SessionClosed notification. Connect does
// not block; the outcome arrives through the inbox.
func (s *Session) Connect(endpoint Endpoint) {
	s.teardown()

	s.gen++
	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		generation: s.gen,
		id:         uuid.NewString(),
		cancel:     cancel,
	}
	h.logger = s.logger.With().Str("session_id", h.id).Logger()
	s.current = h

	url := endpoint.String()
	h.logger.Info().Str("endpoint", url).Msg("connecting")
	s.setState(Connecting)

	go s.run(ctx, h, url)
}

// Send writes payload when the session is Connected and reports whether
// it was written. In any other state the payload is dropped. A write
// failure closes the attempt and notifies SessionClosed.
func (s *Session) Send(payload []byte) bool {
	h := s.current
	if s.state != Connected || h == nil || h.conn == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()
	if err := h.conn.Write(ctx, payload); err != nil {
		h.logger.Warn().Err(err).Msg("write failed, closing session")
		s.closeCurrent()
		return false
	}
	return true
}

// Close tears down the installed attempt. SessionClosed is notified
// unless the session was already Disconnected.
func (s *Session) Close() {
	if s.current != nil {
		s.current.logger.Info().Msg("closing session")
	}
	if s.state == Disconnected {
		s.teardown()
		return
	}
	s.closeCurrent()
}

// Dispatch applies one inbox event. Events from superseded attempts are
// dropped.
func (s *Session) Dispatch(ev Event) {
	h := s.current
	if h == nil || ev.generation != h.generation {
		if ev.conn != nil {
			ev.conn.Close()
		}
		return
	}

	switch ev.kind {
	case eventOpened:
		h.conn = ev.conn
		h.logger.Info().Str("remote", ev.conn.RemoteAddr()).Msg("connected")
		s.setState(Connected)
		for _, l := range s.listeners {
			l.SessionOpened()
		}
	case eventClosed:
		if ev.err != nil {
			h.logger.Warn().Err(ev.err).Msg("connection lost")
		}
		s.closeCurrent()
	case eventReceived:
		for _, l := range s.listeners {
			l.MessageReceived(ev.payload)
		}
	}
}

// closeCurrent is the single close-then-notify path.
func (s *Session) closeCurrent() {
	s.teardown()
	s.setState(Disconnected)
	for _, l := range s.listeners {
		l.SessionClosed()
	}
}

// teardown detaches and closes the installed attempt.
func (s *Session) teardown() {
	h := s.current
	if h == nil {
		return
	}
	s.current = nil
	h.cancel()
	if h.conn != nil {
		if err := h.conn.Close(); err != nil {
			h.logger.Debug().Err(err).Msg("close")
		}
	}
}

func (s *Session) setState(state State) {
	if s.state == state {
		return
	}
	s.logger.Debug().Stringer("from", s.state).Stringer("to", state).Msg("state change")
	s.state = state
	for _, l := range s.listeners {
		l.StateChanged(state)
	}
}

// run dials and then reads until the attempt ends. It only communicates
// with the Session through the inbox.
func (s *Session) run(ctx context.Context, h *handle, url string) {
	dialCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.opts.DialTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, s.opts.DialTimeout)
	}
	conn, err := s.dialer.Dial(dialCtx, url)
	cancel()
	if err != nil {
		s.post(ctx, Event{kind: eventClosed, generation: h.generation, err: err})
		return
	}
	defer conn.Close()

	if !s.post(ctx, Event{kind: eventOpened, generation: h.generation, conn: conn}) {
		return
	}

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			s.post(ctx, Event{kind: eventClosed, generation: h.generation, err: err})
			return
		}
		if !s.post(ctx, Event{kind: eventReceived, generation: h.generation, payload: data}) {
			return
		}
	}
}

// post delivers ev unless the attempt was torn down.
func (s *Session) post(ctx context.Context, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
