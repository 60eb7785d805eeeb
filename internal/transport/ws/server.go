package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/omochice/livechat/internal/chat"
)

// IdentityParam is the query parameter carrying a participant identity.
const IdentityParam = "user"

// Server accepts websocket connections and hands them to a chat.Hub.
type Server struct {
	address  string
	binary   bool
	hub      *chat.Hub
	logger   zerolog.Logger
	listener net.Listener
	server   *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	ready    chan struct{}
}

// NewServer creates a relay server for hub. binary must match the hub's
// codec.
func NewServer(address string, hub *chat.Hub, binary bool, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		address: address,
		binary:  binary,
		hub:     hub,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan struct{}),
	}
}

// Listen binds the listening socket. Start calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	s.server = &http.Server{Handler: mux}
	close(s.ready)
	return nil
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("relay server started")

	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops accepting connections and disconnects every participant.
func (s *Server) Stop() {
	s.cancel()
	select {
	case <-s.ready:
		_ = s.server.Shutdown(context.Background())
	default:
	}
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to accept websocket connection")
		return
	}

	identity := r.URL.Query().Get(IdentityParam)
	p := chat.NewParticipant(NewConnWithAddr(wsConn, s.binary, r.RemoteAddr), identity)
	s.hub.Register(p)
	s.logger.Info().Str("participant", identity).Str("remote", r.RemoteAddr).Msg("participant joined")

	ctx, cancel := context.WithCancel(s.ctx)
	s.wg.Add(2)
	go s.writeLoop(ctx, p)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.hub.HandleParticipant(ctx, p)
		p.Conn.Close()
	}()
}

func (s *Server) writeLoop(ctx context.Context, p *chat.Participant) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-p.Outgoing:
			if err := p.Conn.Write(ctx, data); err != nil {
				s.logger.Debug().Err(err).Str("participant", p.Identity).Msg("failed to write to participant")
				return
			}
		}
	}
}
