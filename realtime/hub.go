// Package realtime pushes domain events to websocket clients grouped in rooms.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Config struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	CheckOrigin    func(r *http.Request) bool
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1024,
		CheckOrigin:    func(*http.Request) bool { return true },
	}
}

// Gauge mirrors the local connection count, e.g. a prometheus gauge.
type Gauge interface {
	Set(float64)
}

// Envelope is the wire shape of every pushed event.
type Envelope struct {
	Event string `json:"event"`
	Room  string `json:"room,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type outbound struct {
	room string
	env  Envelope
}

// Hub owns all connections. An empty room addresses every connection.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
	rooms map[string]map[*Conn]struct{}

	upgrader websocket.Upgrader
	config   Config
	counter  Counter
	gauge    Gauge
	logger   *zap.Logger

	broadcast chan outbound
}

// Conn is one websocket client.
type Conn struct {
	ID          string
	ConnectedAt time.Time

	ws    *websocket.Conn
	send  chan []byte
	hub   *Hub
	rooms map[string]struct{}
}

func NewHub(cfg Config, counter Counter, gauge Gauge, logger *zap.Logger) *Hub {
	if counter == nil {
		counter = &MemoryCounter{}
	}
	def := DefaultConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = def.CheckOrigin
	}
	return &Hub{
		conns: make(map[*Conn]struct{}),
		rooms: make(map[string]map[*Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		config:    cfg,
		counter:   counter,
		gauge:     gauge,
		logger:    logger.Named("realtime"),
		broadcast: make(chan outbound, 1000),
	}
}

// Run delivers queued events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("hub stopped")
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Publish sends an event to every connection.
func (h *Hub) Publish(event string, payload any) {
	h.enqueue(outbound{env: Envelope{Event: event, Data: payload}})
}

// PublishTo sends an event to the connections that joined room.
func (h *Hub) PublishTo(room, event string, payload any) {
	h.enqueue(outbound{room: room, env: Envelope{Event: event, Room: room, Data: payload}})
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping event",
			zap.String("event", msg.env.Event), zap.String("room", msg.room))
	}
}

// ServeHTTP upgrades the request; the optional room query joins one room.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	now := time.Now()
	c := &Conn{
		ID:          uuid.NewString(),
		ConnectedAt: now,
		ws:          ws,
		send:        make(chan []byte, 256),
		hub:         h,
		rooms:       make(map[string]struct{}),
	}
	h.register(c)
	if room := r.URL.Query().Get("room"); room != "" {
		h.join(c, room)
	}

	go c.writePump()
	go c.readPump()
}

// Count is the number of connections held by this process.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Active is the shared connection count across instances.
func (h *Hub) Active(ctx context.Context) (int64, error) {
	return h.counter.Value(ctx)
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	local := len(h.conns)
	h.mu.Unlock()

	h.track(local, h.counter.Incr)
	h.logger.Debug("connection registered", zap.String("connection_id", c.ID), zap.Int("local", local))
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
	local := len(h.conns)
	h.mu.Unlock()

	h.track(local, h.counter.Decr)
	h.logger.Debug("connection unregistered", zap.String("connection_id", c.ID), zap.Int("local", local))
}

func (h *Hub) track(local int, op func(context.Context) (int64, error)) {
	if h.gauge != nil {
		h.gauge.Set(float64(local))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := op(ctx); err != nil {
		h.logger.Warn("active connection counter update failed", zap.Error(err))
	}
}

func (h *Hub) join(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Conn, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// deliver sends under the read lock so unregister cannot close a channel
// mid-send. Slow connections are dropped afterwards.
func (h *Hub) deliver(msg outbound) {
	data, err := json.Marshal(msg.env)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("event", msg.env.Event), zap.Error(err))
		return
	}

	var slow []*Conn
	h.mu.RLock()
	set := h.conns
	if msg.room != "" {
		set = h.rooms[msg.room]
	}
	for c := range set {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("send buffer full, closing connection", zap.String("connection_id", c.ID))
		h.unregister(c)
		c.ws.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	all := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// clientMessage lets a client move between rooms after connecting.
type clientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("unexpected websocket close", zap.String("connection_id", c.ID), zap.Error(err))
			}
			return
		}
		if err := c.handle(raw); err != nil {
			c.hub.logger.Debug("ignoring client message", zap.String("connection_id", c.ID), zap.Error(err))
		}
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}

func (c *Conn) handle(raw []byte) error {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	if msg.Room == "" {
		return fmt.Errorf("room is required")
	}
	switch msg.Action {
	case "join":
		c.hub.join(c, msg.Room)
	case "leave":
		c.hub.leave(c, msg.Room)
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}
