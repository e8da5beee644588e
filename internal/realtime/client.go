package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Close codes sent to clients besides the standard ones.
const (
	CloseUnauthorized = 4001
	CloseSuperseded   = 4002
)

const defaultWriteTimeout = 10 * time.Second

var ErrClientClosed = errors.New("client closed")

// Transport is the part of a websocket connection a Client needs. Both the fiber
// websocket.Conn and test doubles satisfy it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is a registered transport handle. Writes are serialized because the
// underlying websocket does not allow concurrent writers; Close may be called
// from any goroutine and unblocks a pending read or write.
type Client struct {
	ID     string
	UserID int

	conn         Transport
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(userID int, conn Transport, writeTimeout time.Duration) *Client {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Client{
		ID:           uuid.NewString(),
		UserID:       userID,
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// Read returns the next inbound data frame.
func (c *Client) Read() (int, []byte, error) {
	return c.conn.ReadMessage()
}

// Send writes one text frame. Writers queued behind a write in progress give up
// with ErrClientClosed once Close has been called.
func (c *Client) Send(payload []byte) error {
	if c.closed() {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed() {
		return ErrClientClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(payload)
}

// Close sends a close frame with code and reason and releases the transport.
// Only the first call has an effect.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.writeTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.conn.Close()
	})
}

// Done is closed once Close has been called.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the write in progress, if any, has returned. After Close
// and Wait the transport is never written to again, so the owner may release it.
func (c *Client) Wait() {
	c.mu.Lock()
	c.mu.Unlock()
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
