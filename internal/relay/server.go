package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/formrelay-server/internal/record"
	"github.com/vovakirdan/formrelay-server/internal/store"
)

// Replies sent back over the connection. Exactly one reply per
// connection, on every path.
const (
	replySaved       = "Message received and saved."
	replySaveFailed  = "Failed to save message to database."
	replyBadMessage  = "Invalid message format."
	replyServerError = "Server encountered an error."
)

const replyTimeout = 3 * time.Second

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Addr            string
	MaxMessageBytes int
}

// Server accepts relayed form submissions over TCP and persists them.
// Connections are serviced one at a time: the accept loop blocks until
// the current connection is fully handled, so records from a single
// submitter are persisted in submission order.
type Server struct {
	cfg   ServerConfig
	store store.Store
	log   *zerolog.Logger
	ln    net.Listener
	now   func() time.Time
}

// NewServer builds a relay server backed by st.
func NewServer(cfg ServerConfig, st store.Store, logger *zerolog.Logger) *Server {
	return &Server{
		cfg:   cfg,
		store: st,
		log:   logger,
		now:   time.Now,
	}
}

// Listen binds the listener. Callers treat an error as fatal: the relay
// must not report ready without its port.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	s.log.Info().Str("addr", ln.Addr().String()).Msg("relay listening")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled. Per-connection
// faults never stop the loop.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		s.handleConn(ctx, conn)
	}
}

// handleConn services a single connection: one framed request, one
// plaintext reply, close.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("panic while handling connection")
			s.reply(conn, replyServerError)
		}
	}()

	remote := conn.RemoteAddr().String()
	s.log.Debug().Str("remote", remote).Msg("connection accepted")

	payload, err := ReadFrame(conn, s.cfg.MaxMessageBytes)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", remote).Msg("unreadable message")
		s.reply(conn, replyBadMessage)
		return
	}

	var p record.Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.log.Warn().Err(err).Str("remote", remote).Msg("malformed message payload")
		s.reply(conn, replyBadMessage)
		return
	}

	rec := record.FromPayload(p, s.now())
	if err := s.store.InsertMessage(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("id", rec.ID).Msg("failed to save message")
		s.reply(conn, replySaveFailed)
		return
	}

	s.log.Info().
		Str("id", rec.ID).
		Str("username", rec.Username).
		Str("date", rec.Date).
		Msg("message saved")
	s.reply(conn, replySaved)
}

func (s *Server) reply(conn net.Conn, msg string) {
	_ = conn.SetWriteDeadline(time.Now().Add(replyTimeout))
	if _, err := conn.Write([]byte(msg)); err != nil {
		s.log.Debug().Err(err).Msg("reply not delivered")
	}
}
