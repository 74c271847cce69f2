package stream

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/ssv-go/common"
)

// startServer runs a server on an ephemeral port and waits until it is
// accepting connections.
func startServer(t *testing.T, options ...ServerBuilderOption) (Server, string) {
	t.Helper()

	options = append([]ServerBuilderOption{WithAddr("127.0.0.1:0")}, options...)
	s := NewServer(options...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for s.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server never started listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s, s.Addr()
}

func dial(t *testing.T, addr, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBroadcastFrameReachesClients(t *testing.T) {
	s, addr := startServer(t)
	conn := dial(t, addr, "/stream")

	deadline := time.Now().Add(5 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	payload := []byte{0xff, 0xd8, 0xff, 0xe0}
	s.BroadcastFrame(common.Frame{Data: payload, Width: 2, Height: 1, Index: 0})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	msgType, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, payload, msg)
}

func TestInputEventsReachHandler(t *testing.T) {
	received := make(chan common.InputEvent, 1)
	s := NewServer(WithAddr("127.0.0.1:0"))
	s.SetInputHandler(func(event common.InputEvent) {
		received <- event
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	deadline := time.Now().Add(5 * time.Second)
	for s.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server never started listening")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn := dial(t, s.Addr(), "/stream")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mouse_down","x":10,"y":20,"button":1}`)))

	select {
	case event := <-received:
		assert.Equal(t, common.InputMouseDown, event.Type)
		assert.Equal(t, 10, event.X)
		assert.Equal(t, 20, event.Y)
		assert.Equal(t, 1, event.Button)
	case <-time.After(5 * time.Second):
		t.Fatal("input event never reached the handler")
	}

	// Malformed input is dropped without killing the connection.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"key_down","key_code":87}`)))
	select {
	case event := <-received:
		assert.Equal(t, common.InputKeyDown, event.Type)
		assert.Equal(t, uint32(87), event.KeyCode)
	case <-time.After(5 * time.Second):
		t.Fatal("input event never reached the handler")
	}
}

func TestClientCountTracksConnections(t *testing.T) {
	s, addr := startServer(t)
	assert.Zero(t, s.ClientCount())

	conn := dial(t, addr, "/stream")
	deadline := time.Now().Add(5 * time.Second)
	for s.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	require.NoError(t, conn.Close())
	for s.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWithPathServesCustomEndpoint(t *testing.T) {
	s, addr := startServer(t, WithPath("/frames"))

	_, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream", nil)
	assert.Error(t, err)

	conn := dial(t, addr, "/frames")
	deadline := time.Now().Add(5 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = conn
}

func TestRunTwiceFails(t *testing.T) {
	s, _ := startServer(t)
	err := s.Run(context.Background())
	assert.ErrorContains(t, err, "already running")
}

func TestSlowClientSkipsFrames(t *testing.T) {
	s, addr := startServer(t)
	dial(t, addr, "/stream")

	deadline := time.Now().Add(5 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Flood far more frames than the per-client queue holds; the broadcast
	// must never block even though the client is not reading.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.BroadcastFrame(common.Frame{Data: []byte{byte(i)}, Index: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
