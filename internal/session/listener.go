package session

// Listener observes a Session. Methods are called on the goroutine that
// calls Connect, Send, Close or Dispatch, in event order.
type Listener interface {
	// StateChanged reports every state transition.
	StateChanged(state State)

	// SessionOpened reports a completed handshake.
	SessionOpened()

	// SessionClosed reports the end of an attempt, clean or not. It is
	// delivered at most once per attempt.
	SessionClosed()

	// MessageReceived delivers one raw inbound frame.
	MessageReceived(payload []byte)
}

// BaseListener implements Listener with no-ops. Embed it to observe a
// subset of events.
type BaseListener struct{}

func (BaseListener) StateChanged(State) {}
func (BaseListener) SessionOpened() {}
func (BaseListener) SessionClosed() {}
func (BaseListener) MessageReceived([]byte) {}
