package realtime

import (
	"testing"
	"time"

	"realtime-backend/internal/realtime/realtimetest"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendAfterClose(t *testing.T) {
	c, tr := newTestClient(1)
	c.Close(CloseSuperseded, "superseded")
	c.Close(websocket.CloseNormalClosure, "again")

	assert.ErrorIs(t, c.Send([]byte(`{}`)), ErrClientClosed)
	assert.Equal(t, CloseSuperseded, tr.CloseCode())
	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestClient_QueuedSendGivesUpAfterClose(t *testing.T) {
	tr := realtimetest.NewTransport()
	release := tr.HoldWrites()
	defer release()
	c := NewClient(1, tr, time.Second)

	first := make(chan error, 1)
	go func() { first <- c.Send([]byte(`{"n":1}`)) }()
	require.Eventually(t, func() bool { return tr.WriteCalls() == 1 }, time.Second, time.Millisecond)

	queued := make(chan error, 1)
	go func() { queued <- c.Send([]byte(`{"n":2}`)) }()
	time.Sleep(20 * time.Millisecond)

	c.Close(websocket.CloseNormalClosure, "")
	release()

	select {
	case err := <-queued:
		assert.ErrorIs(t, err, ErrClientClosed)
	case <-time.After(time.Second):
		t.Fatal("queued send did not return")
	}
	<-first
	c.Wait()

	assert.Equal(t, 1, tr.WriteCalls())
	assert.Empty(t, tr.Sent())
}

func TestClient_WaitBlocksOnWriteInProgress(t *testing.T) {
	tr := realtimetest.NewTransport()
	release := tr.HoldWrites()
	c := NewClient(1, tr, time.Second)

	go func() { _ = c.Send([]byte(`{}`)) }()
	require.Eventually(t, func() bool { return tr.WriteCalls() == 1 }, time.Second, time.Millisecond)

	waited := make(chan struct{})
	go func() {
		c.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while a write was in progress")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the write finished")
	}
}
