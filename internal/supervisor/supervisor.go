// Package supervisor re-establishes a session after unplanned closure.
//
// One retry is scheduled after a fixed delay, with
// at most one retry pending at any time, forever, until Stop.
package supervisor

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/livechat/internal/clock"
	"github.com/omochice/livechat/internal/session"
)

// DefaultDelay is the fixed wait between a closure and the next attempt.
const DefaultDelay = 3 * time.Second

// Executor runs f on the goroutine that owns the session. Timer
// callbacks are routed through it.
type Executor func(f func())

// Inline runs f on the calling goroutine.
func Inline(f func()) { f() }

// Supervisor implements session.Listener. It must only be called from
// the goroutine that owns the session, which is also where the Executor
// runs scheduled work.
type Supervisor struct {
	session.BaseListener

	clock     clock.Clock
	delay     time.Duration
	reconnect func()
	execute   Executor
	logger    zerolog.Logger

	pending  *retry
	stopped  bool
	attempts int

	onSchedule func(delay time.Duration)
}

// retry identifies one scheduled reconnect.
type retry struct {
	timer *clock.Timer
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithExecutor routes timer callbacks through execute.
func WithExecutor(execute Executor) Option {
	return func(s *Supervisor) { s.execute = execute }
}

// WithLogger sets the supervisor logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithScheduleHook calls fn every time a retry is scheduled.
func WithScheduleHook(fn func(delay time.Duration)) Option {
	return func(s *Supervisor) { s.onSchedule = fn }
}

// New creates a Supervisor that calls reconnect delay after each closure.
// A non-positive delay selects DefaultDelay.
func New(c clock.Clock, delay time.Duration, reconnect func(), opts ...Option) *Supervisor {
	if delay <= 0 {
		delay = DefaultDelay
	}
	s := &Supervisor{
		clock:     c,
		delay:     delay,
		reconnect: reconnect,
		execute:   Inline,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionClosed schedules one reconnect unless one is already pending
// or the supervisor is stopped.
func (s *Supervisor) SessionClosed() {
	if s.stopped || s.pending != nil {
		return
	}

	r := &retry{}
	r.timer = s.clock.AfterFunc(s.delay, func() {
		s.execute(func() { s.fire(r) })
	})
	s.pending = r
	s.logger.Info().Dur("delay", s.delay).Msg("reconnect scheduled")
	if s.onSchedule != nil {
		s.onSchedule(s.delay)
	}
}

// SessionOpened cancels a pending reconnect.
func (s *Supervisor) SessionOpened() {
	s.cancel()
}

// Stop cancels any pending reconnect. No reconnect is scheduled after
// Stop returns.
func (s *Supervisor) Stop() {
	s.stopped = true
	s.cancel()
}

// Stopped reports whether Stop was called.
func (s *Supervisor) Stopped() bool {
	return s.stopped
}

// Pending reports whether a reconnect is scheduled.
func (s *Supervisor) Pending() bool {
	return s.pending != nil
}

// Attempts returns the number of reconnects issued.
func (s *Supervisor) Attempts() int {
	return s.attempts
}

// Delay returns the fixed retry delay.
func (s *Supervisor) Delay() time.Duration {
	return s.delay
}

func (s *Supervisor) cancel() {
	if s.pending == nil {
		return
	}
	s.pending.timer.Stop()
	s.pending = nil
}

// fire runs on the owning goroutine. A timer that was cancelled or
// replaced after its callback was queued does nothing.
func (s *Supervisor) fire(r *retry) {
	if s.stopped || s.pending != r {
		return
	}
	s.pending = nil
	s.attempts++
	s.logger.Info().Int("attempt", s.attempts).Msg("attempting to reconnect")
	s.reconnect()
}
