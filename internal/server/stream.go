package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/behaviour/internal/core/events/bus"
	"github.com/zeusync/behaviour/internal/core/observability/log"
)

// Config controls the event stream listener.
type Config struct {
	Addr         string
	MaxClients   int
	SendBuffer   int
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8088",
		MaxClients:   256,
		SendBuffer:   64,
		WriteTimeout: 5 * time.Second,
	}
}

// Message is the JSON frame written to stream clients.
type Message struct {
	Type   string    `json:"type"`
	Source string    `json:"source"`
	Time   time.Time `json:"time"`
	Data   any       `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	id    string
	owner string
	conn  *websocket.Conn
	send  chan []byte
	once  sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// EventStream forwards controller events from the bus to websocket clients
// connected at /ws. A client may pass ?owner=<id> to receive one NPC only.
type EventStream struct {
	config  Config
	events  bus.EventBus
	logger  log.Log
	server  *http.Server
	sub     bus.Subscription
	running int32
	closed  int32
	dropped atomic.Uint64

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewEventStream(config Config, events bus.EventBus, logger log.Log) *EventStream {
	if logger == nil {
		logger = log.NewNop()
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultConfig().SendBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &EventStream{
		config:  config,
		events:  events,
		logger:  logger.With(log.String("component", "event_stream")),
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler serving /ws.
func (s *EventStream) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Attach subscribes to the behaviour events. Start calls it; tests that serve
// Handler directly call it themselves.
func (s *EventStream) Attach() error {
	if s.sub != nil {
		return nil
	}
	sub, err := s.events.SubscribeMany(s.broadcast,
		bus.TypeBehaviourFired,
		bus.TypeBehaviourIdle,
		bus.TypeBehaviourFault,
		bus.TypeBehaviourEmit,
	)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// Start subscribes to the bus and begins listening on config.Addr.
func (s *EventStream) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	if err := s.Attach(); err != nil {
		atomic.StoreInt32(&s.running, 0)
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return err
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Event stream stopped", log.Error(err))
		}
	}()

	s.logger.Info("Event stream listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the listener down gracefully and disconnects every client.
func (s *EventStream) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	atomic.StoreInt32(&s.closed, 1)

	if s.sub != nil {
		_ = s.events.Unsubscribe(s.sub)
		s.sub = nil
	}

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	s.mu.Lock()
	for c := range s.clients {
		c.close()
		delete(s.clients, c)
	}
	s.mu.Unlock()

	s.logger.Info("Event stream stopped", log.Int64("dropped", int64(s.dropped.Load())))
	return err
}

// Clients reports the number of connected clients.
func (s *EventStream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Dropped reports frames discarded because a client fell behind.
func (s *EventStream) Dropped() uint64 { return s.dropped.Load() }

func (s *EventStream) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.closed) == 1 {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	if s.config.MaxClients > 0 && s.Clients() >= s.config.MaxClients {
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	c := &client{
		id:    conn.RemoteAddr().String(),
		owner: r.URL.Query().Get("owner"),
		conn:  conn,
		send:  make(chan []byte, s.config.SendBuffer),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("Client connected", log.String("client", c.id), log.Owner(c.owner))

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop only drains control frames; clients never send data.
func (s *EventStream) readLoop(c *client) {
	defer s.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *EventStream) writeLoop(c *client) {
	defer func() {
		_ = c.conn.Close()
	}()
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			s.logger.Debug("Client write failed", log.String("client", c.id), log.Error(err))
			s.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
		time.Now().Add(time.Second))
}

func (s *EventStream) remove(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		c.close()
		s.logger.Debug("Client disconnected", log.String("client", c.id))
	}
}

// broadcast runs inside the publisher's tick, so it never blocks: a client
// whose buffer is full loses the frame.
func (s *EventStream) broadcast(ev bus.Event) error {
	frame, err := json.Marshal(Message{
		Type:   ev.Type(),
		Source: ev.Source(),
		Time:   ev.Timestamp(),
		Data:   ev.Data(),
	})
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if c.owner != "" && c.owner != ev.Source() {
			continue
		}
		select {
		case c.send <- frame:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}
