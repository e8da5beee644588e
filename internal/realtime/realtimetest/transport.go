// Package realtimetest provides an in-memory Transport for exercising sessions
// and broadcasts without a network.
package realtimetest

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

var ErrClosed = errors.New("realtimetest: transport closed")

type Transport struct {
	inbound chan []byte

	mu        sync.Mutex
	sent      [][]byte
	closeCode int
	failWrite error
	gate      chan struct{}
	calls     int
	closed    bool
	done      chan struct{}
	notify    chan struct{}
}

func NewTransport() *Transport {
	return &Transport{
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
		notify:  make(chan struct{}, 1),
	}
}

// Push queues a raw inbound frame.
func (t *Transport) Push(frame []byte) {
	t.inbound <- frame
}

// PushJSON marshals v and queues it as an inbound frame.
func (t *Transport) PushJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	t.Push(b)
}

// FailWrites makes every later write return err.
func (t *Transport) FailWrites(err error) {
	t.mu.Lock()
	t.failWrite = err
	t.mu.Unlock()
}

func (t *Transport) ReadMessage() (int, []byte, error) {
	select {
	case b := <-t.inbound:
		return websocket.TextMessage, b, nil
	case <-t.done:
		return 0, nil, ErrClosed
	}
}

// HoldWrites makes later writes block until release is called.
func (t *Transport) HoldWrites() (release func()) {
	gate := make(chan struct{})
	t.mu.Lock()
	t.gate = gate
	t.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.gate = nil
			t.mu.Unlock()
			close(gate)
		})
	}
}

// WriteCalls counts calls to WriteMessage, including failed and held ones.
func (t *Transport) WriteCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *Transport) WriteMessage(_ int, data []byte) error {
	t.mu.Lock()
	t.calls++
	gate := t.gate
	t.mu.Unlock()
	if gate != nil {
		<-gate
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.failWrite != nil {
		return t.failWrite
	}
	t.sent = append(t.sent, append([]byte(nil), data...))
	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

func (t *Transport) WriteControl(messageType int, data []byte, _ time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if messageType == websocket.CloseMessage && len(data) >= 2 && t.closeCode == 0 {
		t.closeCode = int(binary.BigEndian.Uint16(data[:2]))
	}
	return nil
}

func (t *Transport) SetWriteDeadline(time.Time) error { return nil }

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// CloseCode is the code of the first close frame written, or 0.
func (t *Transport) CloseCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCode
}

// Sent returns a copy of every text frame written so far.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// Events decodes every written frame into a generic map.
func (t *Transport) Events() []map[string]any {
	var out []map[string]any
	for _, b := range t.Sent() {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// EventsOfType returns written events whose "type" equals typ.
func (t *Transport) EventsOfType(typ string) []map[string]any {
	var out []map[string]any
	for _, e := range t.Events() {
		if e["type"] == typ {
			out = append(out, e)
		}
	}
	return out
}

// WaitForType blocks until at least n events of typ were written or timeout passes.
func (t *Transport) WaitForType(typ string, n int, timeout time.Duration) []map[string]any {
	deadline := time.After(timeout)
	for {
		if got := t.EventsOfType(typ); len(got) >= n {
			return got
		}
		select {
		case <-t.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			return t.EventsOfType(typ)
		}
	}
}
