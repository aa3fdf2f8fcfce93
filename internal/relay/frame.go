package relay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// The wire carries one message per connection: a 4-byte big-endian
// length prefix followed by a UTF-8 JSON payload. The reply travels
// back as unframed plaintext, delimited by connection close.
const headerLen = 4

var (
	ErrShortFrame      = errors.New("relay: short frame")
	ErrEmptyPayload    = errors.New("relay: empty payload")
	ErrPayloadTooLarge = errors.New("relay: payload too large")
)

// ReadFrame reads one length-prefixed payload from r. maxPayload bounds
// the allocation driven by the remote length field.
func ReadFrame(r io.Reader, maxPayload int) ([]byte, error) {
	var head [headerLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortFrame
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(head[:])
	if n == 0 {
		return nil, ErrEmptyPayload
	}
	if int64(n) > int64(maxPayload) {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortFrame
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload to w prefixed with its big-endian length.
func WriteFrame(w io.Writer, payload []byte, maxPayload int) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if len(payload) > maxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	var head [headerLen]byte
	binary.BigEndian.PutUint32(head[:], uint32(len(payload)))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
