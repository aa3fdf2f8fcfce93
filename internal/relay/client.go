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
)

// ErrUnavailable reports that the relay listener could not be reached.
// The intake server maps it to 503.
var ErrUnavailable = errors.New("relay: server unavailable")

const dialTimeout = 5 * time.Second

// Client forwards intake payloads to the relay listener. A new
// connection is dialed per send, matching the one-message-per-connection
// wire contract.
type Client struct {
	addr            string
	maxMessageBytes int
	log             *zerolog.Logger
}

// NewClient builds a client for the relay at addr.
func NewClient(addr string, maxMessageBytes int, logger *zerolog.Logger) *Client {
	return &Client{
		addr:            addr,
		maxMessageBytes: maxMessageBytes,
		log:             logger,
	}
}

// Send forwards one payload. The relay's reply is drained and logged at
// debug but never surfaced: this path is fire-and-forget by contract.
func (c *Client) Send(ctx context.Context, p record.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	if err := WriteFrame(conn, body, c.maxMessageBytes); err != nil {
		return fmt.Errorf("send payload: %w", err)
	}
	// Half-close the write side: the frame is complete and nothing else
	// will be sent on this connection.
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	c.log.Debug().Str("addr", c.addr).Int("bytes", len(body)).Msg("payload forwarded")

	c.drainReply(conn)
	return nil
}

// drainReply consumes the relay's reply so its write never blocks. The
// content is intentionally not surfaced to the caller.
func (c *Client) drainReply(conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(replyTimeout))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		c.log.Debug().Err(err).Msg("no reply from relay")
		return
	}
	c.log.Debug().Str("reply", string(buf[:n])).Msg("relay reply discarded")
}
