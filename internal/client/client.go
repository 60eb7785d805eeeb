// Package client is the chat core: one event loop goroutine owning the
// transport session, the reconnection supervisor and the transcript.
// Presentation code talks to it through Submit, Shutdown and Observer.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/livechat/internal/clock"
	"github.com/omochice/livechat/internal/config"
	"github.com/omochice/livechat/internal/metrics"
	"github.com/omochice/livechat/internal/session"
	"github.com/omochice/livechat/internal/supervisor"
	"github.com/omochice/livechat/internal/transcript"
	"github.com/omochice/livechat/internal/transport/ws"
	"github.com/omochice/livechat/pkg/protocol"
)

var (
	// ErrNotConnected is returned by Submit while the session is not
	// connected. Nothing is sent and the transcript is unchanged.
	ErrNotConnected = errors.New("not connected")

	// ErrClosed is returned once the client has shut down.
	ErrClosed = errors.New("client closed")
)

// Observer receives notifications on the event loop goroutine.
// Implementations must not block and must not call back into Submit.
type Observer interface {
	StateChange(state session.State)
	TranscriptChange(messages []protocol.Message)
	ReplyPending(pending bool)
}

// BaseObserver implements Observer with no-ops.
type BaseObserver struct{}

func (BaseObserver) StateChange(session.State) {}
func (BaseObserver) TranscriptChange([]protocol.Message) {}
func (BaseObserver) ReplyPending(bool) {}

// Options configures a Client.
type Options struct {
	Endpoint       session.Endpoint
	Codec          protocol.Codec
	Form           protocol.Form
	Dialer         session.Dialer
	Clock          clock.Clock
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

// OptionsFromConfig builds Options for cfg, including the websocket
// dialer for the configured driver.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	endpoint, err := cfg.ParseEndpoint()
	if err != nil {
		return Options{}, err
	}
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return Options{}, err
	}
	dialer, err := ws.NewDialer(cfg.Driver, ws.Options{
		Binary:           codec.Binary(),
		HandshakeTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return Options{}, err
	}
	return Options{
		Endpoint:       endpoint,
		Codec:          codec,
		Form:           cfg.Form(),
		Dialer:         dialer,
		ReconnectDelay: cfg.ReconnectDelay,
		DialTimeout:    cfg.DialTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}, nil
}

type command struct {
	fn     func() error
	result chan error
}

// Client is safe for concurrent use; all state lives on the loop
// goroutine started by Start.
type Client struct {
	opts     Options
	identity string
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	session    *session.Session
	supervisor *supervisor.Supervisor
	log        *transcript.Log

	observers    []Observer
	replyPending bool

	cmds chan command
	exec chan func()
	quit chan struct{}
	done chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a Client. Nothing happens on the network until Start.
func New(opts Options) (*Client, error) {
	if opts.Codec == nil {
		return nil, fmt.Errorf("client: codec is required")
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("client: dialer is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	c := &Client{
		opts:     opts,
		identity: opts.Endpoint.Identity,
		logger:   opts.Logger.With().Str("component", "client").Logger(),
		metrics:  opts.Metrics,
		log:      transcript.New(),
		cmds:     make(chan command),
		exec:     make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.session = session.New(opts.Dialer, session.Options{
		DialTimeout:  opts.DialTimeout,
		WriteTimeout: opts.WriteTimeout,
		Logger:       opts.Logger,
	})
	c.supervisor = supervisor.New(opts.Clock, opts.ReconnectDelay, c.connect,
		supervisor.WithExecutor(c.execute),
		supervisor.WithLogger(opts.Logger),
		supervisor.WithScheduleHook(func(time.Duration) { c.metrics.IncReconnectsScheduled() }),
	)
	c.session.AddListener(&sessionListener{c: c})
	c.session.AddListener(c.supervisor)
	return c, nil
}

// Subscribe registers o. It must be called before Start.
func (c *Client) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Start runs the event loop and issues the first connect. The loop ends
// on Shutdown or when ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true
	go c.run(ctx)
	return nil
}

// Done is closed once the event loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Submit validates text and, when connected, sends it and adds the
// local echo to the transcript.
func (c *Client) Submit(text string) error {
	return c.do(func() error {
		msg, err := transcript.Compose(text, c.identity, c.opts.Clock.Now())
		if err != nil {
			return err
		}
		if c.session.State() != session.Connected {
			return ErrNotConnected
		}
		payload, err := c.opts.Codec.Encode(c.opts.Form.Shape(msg))
		if err != nil {
			return err
		}
		if !c.session.Send(payload) {
			return ErrNotConnected
		}
		c.metrics.IncFramesSent()
		c.ingest(msg, "local")
		c.setReplyPending(true)
		return nil
	})
}

// Shutdown stops reconnecting, closes the session and waits for the
// loop to exit. It is safe to call more than once.
func (c *Client) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	if !started {
		close(c.done)
		return
	}
	close(c.quit)
	<-c.done
}

// do runs fn on the loop goroutine and returns its result.
func (c *Client) do(fn func() error) error {
	c.mu.Lock()
	started, closed := c.started, c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !started {
		return ErrNotConnected
	}

	cmd := command{fn: fn, result: make(chan error, 1)}
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-cmd.result:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// execute is the supervisor executor: it hands timer callbacks to the
// loop.
func (c *Client) execute(f func()) {
	select {
	case c.exec <- f:
	case <-c.done:
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	c.connect()
	events := c.session.Events()
	for {
		select {
		case ev := <-events:
			c.session.Dispatch(ev)
		case f := <-c.exec:
			f()
		case cmd := <-c.cmds:
			cmd.result <- cmd.fn()
		case <-c.quit:
			c.teardown()
			return
		case <-ctx.Done():
			c.teardown()
			return
		}
	}
}

func (c *Client) connect() {
	c.metrics.IncConnectAttempts()
	c.session.Connect(c.opts.Endpoint)
}

func (c *Client) teardown() {
	c.logger.Info().Msg("shutting down")
	c.supervisor.Stop()
	c.session.Close()
}

func (c *Client) ingest(msg protocol.Message, origin string) {
	added := c.log.Ingest(msg)
	c.metrics.RecordIngest(origin, added)
	if !added {
		c.logger.Debug().Str("origin", origin).Msg("duplicate message dropped")
		return
	}
	snapshot := c.log.Snapshot()
	for _, o := range c.observers {
		o.TranscriptChange(snapshot)
	}
}

func (c *Client) setReplyPending(pending bool) {
	if c.replyPending == pending {
		return
	}
	c.replyPending = pending
	for _, o := range c.observers {
		o.ReplyPending(pending)
	}
}

// sessionListener adapts session notifications to the client.
type sessionListener struct {
	session.BaseListener
	c *Client
}

func (l *sessionListener) StateChanged(state session.State) {
	c := l.c
	c.metrics.SetState(state.String())
	if state == session.Disconnected {
		c.setReplyPending(false)
	}
	for _, o := range c.observers {
		o.StateChange(state)
	}
}

func (l *sessionListener) MessageReceived(payload []byte) {
	c := l.c
	c.metrics.IncFramesReceived()
	msg, err := c.opts.Codec.Decode(payload)
	if err != nil {
		c.metrics.IncFramesMalformed()
		c.logger.Warn().Err(err).
			Str("codec", c.opts.Codec.Name()).
			Int("bytes", len(payload)).
			Msg("dropping malformed frame")
		return
	}
	c.ingest(msg, "remote")
	if msg.Type == protocol.MessageTypeResponse {
		c.setReplyPending(false)
	}
}
