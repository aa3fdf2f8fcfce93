package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/vovakirdan/formrelay-server/internal/log"
	"github.com/vovakirdan/formrelay-server/internal/record"
	"github.com/vovakirdan/formrelay-server/internal/store"
	"github.com/vovakirdan/formrelay-server/internal/store/sqlite"
)

// failStore always refuses inserts.
type failStore struct{}

func (failStore) InsertMessage(context.Context, *record.Record) error {
	return errors.New("disk on fire")
}
func (failStore) Ping(context.Context) error { return nil }
func (failStore) Close() error               { return nil }

// panicOnceStore panics on the first insert, then delegates. Only the
// server's accept loop touches it, one connection at a time.
type panicOnceStore struct {
	inner    store.Store
	panicked bool
}

func (p *panicOnceStore) InsertMessage(ctx context.Context, rec *record.Record) error {
	if !p.panicked {
		p.panicked = true
		panic("store exploded")
	}
	return p.inner.InsertMessage(ctx, rec)
}
func (p *panicOnceStore) Ping(ctx context.Context) error { return p.inner.Ping(ctx) }
func (p *panicOnceStore) Close() error                   { return p.inner.Close() }

// startServer runs a relay server on a random loopback port and tears
// it down when the test finishes.
func startServer(t *testing.T, st store.Store) string {
	t.Helper()

	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0", MaxMessageBytes: 64 * 1024}, st, log.Nop())
	if err := srv.Listen(); err != nil {
		t.Fatalf("failed to bind relay: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return srv.Addr().String()
}

// sendRaw writes raw bytes to the relay and returns the plaintext reply.
func sendRaw(t *testing.T, addr string, data []byte) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("failed to dial relay: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	reply, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("failed to read reply: %v", err)
	}
	return string(reply)
}

func framed(t *testing.T, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload, 64*1024); err != nil {
		t.Fatalf("failed to frame payload: %v", err)
	}
	return buf.Bytes()
}

func TestServerPersistsValidMessage(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	addr := startServer(t, st)

	reply := sendRaw(t, addr, framed(t, []byte(`{"username":"alice","message":"hello"}`)))
	if reply != "Message received and saved." {
		t.Errorf("unexpected reply: %q", reply)
	}

	records, err := st.ListMessages(context.Background())
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Username != "alice" || rec.Message != "hello" {
		t.Errorf("submitted values not preserved: %+v", rec)
	}
	if _, err := record.ParseDate(rec.Date); err != nil {
		t.Errorf("persisted date %q is not valid: %v", rec.Date, err)
	}
}

func TestServerRejectsInvalidJSON(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	addr := startServer(t, st)

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", framed(t, []byte("hello there"))},
		{"json array", framed(t, []byte(`["username","message"]`))},
		{"bare bytes without frame", []byte{0x01}},
		{"oversized length prefix", []byte{0xff, 0xff, 0xff, 0xff, 'x'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := sendRaw(t, addr, tt.data)
			if reply != "Invalid message format." {
				t.Errorf("unexpected reply: %q", reply)
			}
		})
	}

	records, err := st.ListMessages(context.Background())
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("rejected messages were persisted: %d records", len(records))
	}
}

func TestServerReportsStoreFailure(t *testing.T) {
	addr := startServer(t, failStore{})

	reply := sendRaw(t, addr, framed(t, []byte(`{"username":"alice","message":"hello"}`)))
	if reply != "Failed to save message to database." {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestServerSurvivesBadConnections(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	addr := startServer(t, st)

	// A garbage connection must not take the listener down.
	sendRaw(t, addr, []byte("garbage"))

	reply := sendRaw(t, addr, framed(t, []byte(`{"username":"bob","message":"still here"}`)))
	if reply != "Message received and saved." {
		t.Errorf("listener did not survive a bad connection: %q", reply)
	}
}

func TestServerRecoversFromPanic(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	addr := startServer(t, &panicOnceStore{inner: st})

	valid := framed(t, []byte(`{"username":"alice","message":"hello"}`))

	reply := sendRaw(t, addr, valid)
	if reply != "Server encountered an error." {
		t.Errorf("unexpected reply after panic: %q", reply)
	}

	records, err := st.ListMessages(context.Background())
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("panicked insert must not persist, got %d records", len(records))
	}

	// The listener must keep serving after the panic.
	reply = sendRaw(t, addr, valid)
	if reply != "Message received and saved." {
		t.Errorf("listener did not survive the panic: %q", reply)
	}

	records, err = st.ListMessages(context.Background())
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record after recovery, got %d", len(records))
	}
}

func TestServerStampsReceiptTime(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 123456000, time.Local)

	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0", MaxMessageBytes: 64 * 1024}, st, log.Nop())
	srv.now = func() time.Time { return fixed }
	if err := srv.Listen(); err != nil {
		t.Fatalf("failed to bind relay: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// The payload carries a date field; the server must ignore it and
	// stamp its own.
	sendRaw(t, srv.Addr().String(), framed(t, []byte(`{"username":"alice","message":"hi","date":"1999-01-01 00:00:00.000000"}`)))

	records, err := st.ListMessages(context.Background())
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Date != "2025-06-01 12:00:00.123456" {
		t.Errorf("date %q is not the server receipt time", records[0].Date)
	}
}

func TestClientUnavailable(t *testing.T) {
	// Grab a port and close it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := NewClient(addr, 64*1024, log.Nop())
	err = c.Send(context.Background(), record.Payload{Username: "alice", Message: "hello"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestClientRoundTrip(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	addr := startServer(t, st)

	c := NewClient(addr, 64*1024, log.Nop())
	if err := c.Send(context.Background(), record.Payload{Username: "alice", Message: "hello"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	records, err := st.ListMessages(context.Background())
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Username != "alice" || records[0].Message != "hello" {
		t.Errorf("record corrupted: %+v", records[0])
	}
}
