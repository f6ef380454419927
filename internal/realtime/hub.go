package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gymstack/gymstack/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16

	defaultBufferSize = 64
)

// Event is a JSON payload delivered to subscribers of a class channel.
type Event struct {
	ClassID string `json:"class_id"`
	Event   string `json:"event"`
	Data    any    `json:"data,omitempty"`
}

// OccupancySnapshot reports the live seat and waitlist counts for a class.
type OccupancySnapshot struct {
	Enrolled   int `json:"enrolled"`
	Capacity   int `json:"capacity"`
	Waitlisted int `json:"waitlisted"`
}

type controlMessage struct {
	Action  string   `json:"action"`
	Classes []string `json:"classes"`
}

// Hub fans class occupancy events out to connected WebSocket clients. Front
// desk dashboards subscribe to the classes they display.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*connection]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*connection]struct{}),
		log:      logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
			},
		},
	}
}

// Serve upgrades the HTTP connection to a WebSocket and subscribes the client
// to the supplied class channels. Blocks until the client disconnects.
func (h *Hub) Serve(classIDs []string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &connection{
		hub:    h,
		socket: conn,
		send:   make(chan Event, defaultBufferSize),
		done:   make(chan struct{}),
	}
	h.subscribe(client, classIDs)

	go client.writeLoop()
	client.readLoop()
}

// PublishOccupancy broadcasts a seat-count snapshot to every subscriber of the
// class. It satisfies the enrollment service's publisher interface.
func (h *Hub) PublishOccupancy(classID string, enrolled, capacity, waitlisted int) {
	h.Broadcast(classID, Event{
		Event: "occupancy",
		Data: OccupancySnapshot{
			Enrolled:   enrolled,
			Capacity:   capacity,
			Waitlisted: waitlisted,
		},
	})
}

// Broadcast delivers an event to every subscriber of the class channel.
func (h *Hub) Broadcast(classID string, event Event) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return
	}
	event.ClassID = classID

	var slow []*connection

	h.mu.RLock()
	for client := range h.channels[classID] {
		select {
		case client.send <- event:
		default:
			// A subscriber that cannot keep up is dropped rather than
			// allowed to stall the broadcast. close() takes the hub write
			// lock, so it must wait until the read lock is released.
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		logger.WithClass(h.log, classID).Warn("dropping slow realtime client")
		client.close()
	}
}

func (h *Hub) subscribe(client *connection, classIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, classID := range uniqueClassIDs(classIDs) {
		if client.classes == nil {
			client.classes = make(map[string]struct{})
		}
		if _, exists := client.classes[classID]; exists {
			continue
		}
		if h.channels[classID] == nil {
			h.channels[classID] = make(map[*connection]struct{})
		}
		client.classes[classID] = struct{}{}
		h.channels[classID][client] = struct{}{}
	}
}

func (h *Hub) unsubscribe(client *connection, classIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, classID := range uniqueClassIDs(classIDs) {
		h.removeLocked(client, classID)
	}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for classID := range client.classes {
		h.removeLocked(client, classID)
	}
}

func (h *Hub) removeLocked(client *connection, classID string) {
	subscribers, ok := h.channels[classID]
	if !ok {
		return
	}
	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.channels, classID)
	}
	delete(client.classes, classID)
}

type connection struct {
	hub     *Hub
	socket  *websocket.Conn
	classes map[string]struct{}
	send    chan Event
	done    chan struct{}
	once    sync.Once
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			return
		}
		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case "subscribe":
			c.hub.subscribe(c, ctrl.Classes)
		case "unsubscribe":
			c.hub.unsubscribe(c, ctrl.Classes)
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// close tears the connection down exactly once. The send channel stays open
// so a broadcast racing with teardown never panics; the done channel stops
// the write loop instead.
func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.done)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		if req, err := http.NewRequest(http.MethodGet, host, nil); err == nil {
			return hostWithoutPort(req.URL.Host)
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func uniqueClassIDs(classIDs []string) []string {
	seen := make(map[string]struct{}, len(classIDs))
	var result []string
	for _, classID := range classIDs {
		classID = strings.TrimSpace(classID)
		if classID == "" {
			continue
		}
		if _, exists := seen[classID]; exists {
			continue
		}
		seen[classID] = struct{}{}
		result = append(result, classID)
	}
	return result
}
