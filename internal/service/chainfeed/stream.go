package chainfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	drepo "GexFlow/internal/domain/repository"
	applogger "GexFlow/pkg/logger"
)

// wsConn is the slice of *websocket.Conn the stream uses; narrowed so tests
// can fake the wire.
type wsConn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type wsFrame struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// writeJSON and ping are the only paths that touch the wire going out; both
// hold writeMu for the duration of the write.
func (c *Client) writeJSON(conn wsConn, f wsFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(f)
}

func (c *Client) ping(conn wsConn) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// Connect dials the quote stream and starts the read and ping loops. The
// stream reconnects on read errors until Close is called.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(ctx)
	go c.pingLoop(ctx)
	c.log.Info("chainfeed: stream connected")
	return nil
}

func (c *Client) dial(ctx context.Context) (wsConn, error) {
	u := c.wsURL + "?token=" + c.apiKey
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("chainfeed connect: %w", err)
	}
	return conn, nil
}

// Subscribe registers a callback for quote and last-trade pushes on one
// contract. The first subscriber of a symbol sends the subscribe frame;
// the handle's Unsubscribe releases it and the last one sends unsubscribe.
func (c *Client) Subscribe(_ context.Context, symbol string, fn func()) (drepo.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("chainfeed: client closed")
	}

	c.nextID++
	id := c.nextID
	first := len(c.handlers[symbol]) == 0
	if c.handlers[symbol] == nil {
		c.handlers[symbol] = make(map[int]func())
	}
	c.handlers[symbol][id] = fn

	if first && c.connected {
		if err := c.writeJSON(c.conn, wsFrame{Type: "subscribe", Symbol: symbol}); err != nil {
			delete(c.handlers[symbol], id)
			return nil, fmt.Errorf("subscribe %s: %w", symbol, err)
		}
	}
	return &subscription{client: c, symbol: symbol, id: id}, nil
}

type subscription struct {
	client *Client
	symbol string
	id     int
}

func (s *subscription) Symbol() string { return s.symbol }

func (s *subscription) Unsubscribe() error {
	return s.client.unsubscribe(s.symbol, s.id)
}

func (c *Client) unsubscribe(symbol string, id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hs, ok := c.handlers[symbol]
	if !ok {
		return nil
	}
	delete(hs, id)
	if len(hs) > 0 {
		return nil
	}
	delete(c.handlers, symbol)

	if c.connected && !c.closed {
		if err := c.writeJSON(c.conn, wsFrame{Type: "unsubscribe", Symbol: symbol}); err != nil {
			return fmt.Errorf("unsubscribe %s: %w", symbol, err)
		}
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn, closed := c.conn, c.closed
		c.mu.Unlock()
		if closed || ctx.Err() != nil {
			return
		}

		_, b, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed = c.closed
			c.connected = false
			c.mu.Unlock()
			if closed || ctx.Err() != nil {
				return
			}
			c.log.Warn("chainfeed: stream read failed, reconnecting", applogger.Error(err))
			c.reconnect(ctx)
			continue
		}

		var f wsFrame
		if err := json.Unmarshal(b, &f); err != nil {
			continue // not a push frame
		}
		if f.Type != "quote" && f.Type != "trade" {
			continue
		}
		c.dispatch(f.Symbol)
	}
}

func (c *Client) dispatch(symbol string) {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.handlers[symbol]))
	for _, fn := range c.handlers[symbol] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// reconnect redials and replays the subscribe frames for every live symbol.
func (c *Client) reconnect(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		conn, err := c.dial(ctx)
		if err != nil {
			c.log.Warn("chainfeed: reconnect failed", applogger.Error(err))
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		symbols := make([]string, 0, len(c.handlers))
		for s := range c.handlers {
			symbols = append(symbols, s)
		}
		c.mu.Unlock()

		ok := true
		for _, s := range symbols {
			if err := c.writeJSON(conn, wsFrame{Type: "subscribe", Symbol: s}); err != nil {
				c.log.Warn("chainfeed: resubscribe failed",
					applogger.String("symbol", s),
					applogger.Error(err))
				ok = false
				break
			}
		}
		if ok {
			c.log.Info("chainfeed: stream reconnected", applogger.Int("symbols", len(symbols)))
			return
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			conn, alive := c.conn, c.connected && !c.closed
			c.mu.Unlock()
			if !alive {
				if c.isClosed() {
					return
				}
				continue
			}
			_ = c.ping(conn)
		}
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// IsConnected reports whether the quote stream is up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close tears the stream down. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
