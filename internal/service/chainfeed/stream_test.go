package chainfeed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	applogger "GexFlow/pkg/logger"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []wsFrame
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, v.(wsFrame))
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {} // tests never start the read loop
}

func (f *fakeConn) WriteMessage(int, []byte) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) sent() []wsFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wsFrame, len(f.frames))
	copy(out, f.frames)
	return out
}

func newStreamClient(conn *fakeConn) *Client {
	c := New("http://unused", "ws://unused", "key", time.Second, time.Millisecond, time.Minute, applogger.Nop())
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	return c
}

func TestSubscribeSendsFrameOncePerSymbol(t *testing.T) {
	conn := &fakeConn{}
	c := newStreamClient(conn)
	ctx := context.Background()

	if _, err := c.Subscribe(ctx, "SPXC4500", func() {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := c.Subscribe(ctx, "SPXC4500", func() {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := c.Subscribe(ctx, "SPXP4400", func() {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	frames := conn.sent()
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2 (one per symbol)", len(frames))
	}
	for _, f := range frames {
		if f.Type != "subscribe" {
			t.Fatalf("frame type = %q", f.Type)
		}
	}
}

func TestUnsubscribeSendsFrameOnLastHandler(t *testing.T) {
	conn := &fakeConn{}
	c := newStreamClient(conn)
	ctx := context.Background()

	s1, _ := c.Subscribe(ctx, "SPXC4500", func() {})
	s2, _ := c.Subscribe(ctx, "SPXC4500", func() {})

	if err := s1.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if n := countType(conn.sent(), "unsubscribe"); n != 0 {
		t.Fatalf("unsubscribe sent with a handler still live")
	}

	if err := s2.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if n := countType(conn.sent(), "unsubscribe"); n != 1 {
		t.Fatalf("unsubscribe frames = %d, want 1", n)
	}

	// releasing an already-released handle is a no-op
	if err := s2.Unsubscribe(); err != nil {
		t.Fatalf("repeat unsubscribe: %v", err)
	}
	if n := countType(conn.sent(), "unsubscribe"); n != 1 {
		t.Fatalf("repeat unsubscribe sent another frame")
	}
}

func TestDispatchInvokesAllHandlers(t *testing.T) {
	conn := &fakeConn{}
	c := newStreamClient(conn)
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	bump := func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}
	c.Subscribe(ctx, "SPXC4500", bump)
	c.Subscribe(ctx, "SPXC4500", bump)
	c.Subscribe(ctx, "SPXP4400", bump)

	c.dispatch("SPXC4500")
	c.dispatch("UNKNOWN")

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	conn := &fakeConn{}
	c := newStreamClient(conn)

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !conn.closed {
		t.Fatalf("underlying conn not closed")
	}
	if c.IsConnected() {
		t.Fatalf("closed client reports connected")
	}
	if _, err := c.Subscribe(context.Background(), "SPXC4500", func() {}); err == nil {
		t.Fatalf("subscribe after close must fail")
	}
	// idempotent
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

// racyConn flags any overlapping writes on the connection.
type racyConn struct {
	writers int32
	raced   int32
}

func (r *racyConn) write() error {
	if atomic.AddInt32(&r.writers, 1) > 1 {
		atomic.StoreInt32(&r.raced, 1)
	}
	time.Sleep(50 * time.Microsecond)
	atomic.AddInt32(&r.writers, -1)
	return nil
}

func (r *racyConn) WriteJSON(interface{}) error       { return r.write() }
func (r *racyConn) WriteMessage(int, []byte) error    { return r.write() }
func (r *racyConn) ReadMessage() (int, []byte, error) { select {} }
func (r *racyConn) Close() error                      { return nil }

func TestStreamWritesAreSerialized(t *testing.T) {
	// pings racing a burst of subscribe frames must never overlap on the
	// connection: gorilla permits one writer at a time
	conn := &racyConn{}
	c := New("http://unused", "ws://unused", "key", time.Second, time.Millisecond, 100*time.Microsecond, applogger.Nop())
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.pingLoop(ctx)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sub, err := c.Subscribe(ctx, fmt.Sprintf("SPXC%d_%d", g, i), func() {})
				if err != nil {
					t.Errorf("subscribe: %v", err)
					return
				}
				if err := sub.Unsubscribe(); err != nil {
					t.Errorf("unsubscribe: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if atomic.LoadInt32(&conn.raced) != 0 {
		t.Fatalf("overlapping connection writes observed")
	}
}

func countType(frames []wsFrame, typ string) int {
	n := 0
	for _, f := range frames {
		if f.Type == typ {
			n++
		}
	}
	return n
}
