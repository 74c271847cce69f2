package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Carmen-Shannon/ssv-go/common"
)

// client is one connected websocket viewer. Frames are pushed through a
// buffered channel so one slow client never stalls the broadcast loop, the
// oldest frame is dropped when the channel is full.
type client struct {
	conn   *websocket.Conn
	frames chan []byte
	done   chan struct{}
}

// streamServer is the implementation of the Server interface.
type streamServer struct {
	mu *sync.Mutex

	addr     string
	path     string
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	clients map[*client]struct{}

	// inputHandler receives decoded input events from every client.
	inputHandler func(common.InputEvent)

	running bool
}

// Server streams encoded frames to websocket clients and feeds their input
// events back to the canvas.
//
// Frames flow one way (server to client) as binary messages, input events
// flow the other way as JSON text messages matching common.InputEvent.
type Server interface {
	// Run starts accepting websocket connections and blocks until the
	// context is cancelled or the listener fails.
	//
	// Parameters:
	//   - ctx: cancel to shut the server down
	//
	// Returns:
	//   - error: a listener or serve error, nil on clean shutdown
	Run(ctx context.Context) error

	// BroadcastFrame queues an encoded frame for delivery to every
	// connected client. Clients that cannot keep up skip frames.
	//
	// Parameters:
	//   - frame: the encoded frame to deliver
	BroadcastFrame(frame common.Frame)

	// SetInputHandler registers the callback invoked for every input event
	// decoded from any client. Must be called before Run.
	//
	// Parameters:
	//   - handler: the callback to invoke, called from connection goroutines
	SetInputHandler(handler func(common.InputEvent))

	// Addr returns the address the server is listening on, useful when the
	// configured address used port 0.
	//
	// Returns:
	//   - string: the bound listen address, empty before Run
	Addr() string

	// ClientCount returns the number of currently connected clients.
	//
	// Returns:
	//   - int: the connected client count
	ClientCount() int

	// Close disconnects all clients and stops the listener.
	//
	// Returns:
	//   - error: an error from shutting down the underlying http server
	Close() error
}

var _ Server = &streamServer{}

// NewServer creates a websocket stream server. Run must be called to start
// accepting connections.
//
// Parameters:
//   - options: functional options to further configure the server
//
// Returns:
//   - Server: the configured server
func NewServer(options ...ServerBuilderOption) Server {
	s := &streamServer{
		mu:      &sync.Mutex{},
		addr:    "localhost:8577",
		path:    "/stream",
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Canvases are served to local notebooks and tools, not browsers
			// with a fixed origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *streamServer) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("stream server is already running on %s", s.addr)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleConnection)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("couldn't listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{Handler: mux}
	s.running = true
	s.mu.Unlock()

	log.Printf("[Stream] listening on ws://%s%s", listener.Addr(), s.path)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		_ = s.Close()
		<-errCh
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *streamServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Stream] upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	c := &client{
		conn:   conn,
		frames: make(chan []byte, 2),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	handler := s.inputHandler
	count := len(s.clients)
	s.mu.Unlock()
	log.Printf("[Stream] client connected from %s (%d total)", r.RemoteAddr, count)

	go s.writeLoop(c)
	s.readLoop(c, handler)

	s.mu.Lock()
	delete(s.clients, c)
	count = len(s.clients)
	s.mu.Unlock()
	close(c.done)
	_ = conn.Close()
	log.Printf("[Stream] client %s disconnected (%d total)", r.RemoteAddr, count)
}

// readLoop decodes input events from one client until its connection drops.
func (s *streamServer) readLoop(c *client, handler func(common.InputEvent)) {
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage || handler == nil {
			continue
		}
		var event common.InputEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			log.Printf("[Stream] dropping malformed input event from %s: %v", c.conn.RemoteAddr(), err)
			continue
		}
		handler(event)
	}
}

// writeLoop delivers queued frames to one client until it disconnects.
func (s *streamServer) writeLoop(c *client) {
	for {
		select {
		case frame := <-c.frames:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *streamServer) BroadcastFrame(frame common.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.frames <- frame.Data:
		default:
			// Client is behind, replace its queued frame with the newest.
			select {
			case <-c.frames:
			default:
			}
			select {
			case c.frames <- frame.Data:
			default:
			}
		}
	}
}

func (s *streamServer) SetInputHandler(handler func(common.InputEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputHandler = handler
}

func (s *streamServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *streamServer) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *streamServer) Close() error {
	s.mu.Lock()
	server := s.httpServer
	s.running = false
	for c := range s.clients {
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
	}
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
