package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/livechat/internal/clock"
	"github.com/omochice/livechat/pkg/protocol"
)

// Participant is one connection registered with the Hub. Identity comes
// from the connection's handshake, not from the frames it sends.
type Participant struct {
	Conn     Conn
	Identity string
	Outgoing chan []byte
}

// NewParticipant creates a Participant with a buffered outgoing queue.
func NewParticipant(conn Conn, identity string) *Participant {
	return &Participant{
		Conn:     conn,
		Identity: identity,
		Outgoing: make(chan []byte, 16),
	}
}

// Hub relays every message to all registered participants, the sender
// included, so clients see their own messages echoed.
type Hub struct {
	codec   protocol.Codec
	clock   clock.Clock
	respond bool
	logger  zerolog.Logger

	mu           sync.RWMutex
	participants map[*Participant]struct{}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithResponder makes the Hub answer every message with a response frame
// addressed to the sender only.
func WithResponder() HubOption {
	return func(h *Hub) { h.respond = true }
}

// WithHubLogger sets the Hub logger.
func WithHubLogger(logger zerolog.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

// WithHubClock sets the clock used to stamp frames without a timestamp.
func WithHubClock(c clock.Clock) HubOption {
	return func(h *Hub) { h.clock = c }
}

// NewHub creates a Hub speaking codec.
func NewHub(codec protocol.Codec, opts ...HubOption) *Hub {
	h := &Hub{
		codec:        codec,
		clock:        clock.Real(),
		logger:       zerolog.Nop(),
		participants: make(map[*Participant]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a participant to the hub.
func (h *Hub) Register(p *Participant) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.participants[p] = struct{}{}
}

// Unregister removes a participant from the hub.
func (h *Hub) Unregister(p *Participant) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.participants, p)
}

// ClientCount returns number of connected participants.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.participants)
}

// Broadcast queues data for every participant. Participants whose queue
// is full miss the frame.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.participants {
		select {
		case p.Outgoing <- data:
		default:
			h.logger.Warn().Str("participant", p.Identity).Msg("outgoing queue full, dropping frame")
		}
	}
}

// HandleParticipant reads frames from p until its connection fails or
// ctx is done, relaying each valid message. p is unregistered on return.
func (h *Hub) HandleParticipant(ctx context.Context, p *Participant) {
	defer h.Unregister(p)

	for {
		data, err := p.Conn.Read(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				h.logger.Debug().Err(err).Str("participant", p.Identity).Msg("participant disconnected")
			}
			return
		}

		msg, err := h.codec.Decode(data)
		if err != nil {
			h.logger.Warn().Err(err).Str("participant", p.Identity).Msg("dropping frame")
			continue
		}
		h.relay(p, msg)
	}
}

func (h *Hub) relay(p *Participant, msg protocol.Message) {
	if p.Identity != "" {
		msg.Sender = p.Identity
	}
	if msg.Timestamp == "" {
		msg.Timestamp = protocol.FormatTimestamp(h.clock.Now())
	}
	msg.Type = protocol.MessageTypeMessage

	data, err := h.codec.Encode(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode relay frame")
		return
	}
	h.Broadcast(data)

	if !h.respond {
		return
	}
	reply, err := h.codec.Encode(protocol.Message{
		Type:      protocol.MessageTypeResponse,
		Content:   "received: " + msg.Content,
		Sender:    "relay",
		Timestamp: protocol.FormatTimestamp(h.clock.Now()),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response frame")
		return
	}
	select {
	case p.Outgoing <- reply:
	default:
	}
}
