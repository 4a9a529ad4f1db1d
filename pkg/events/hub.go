// backend/pkg/events/hub.go
package events

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Event is a domain notification emitted by the assessment service.
// Collaborators (notifications, gamification) subscribe in-process or over
// the websocket module feed.
type Event struct {
	Type     string      `json:"type"`
	ModuleID uint        `json:"module_id"`
	Data     interface{} `json:"data"`
	At       time.Time   `json:"at"`
}

const (
	TypeQuizCreated      = "quiz_created"
	TypeAttemptStarted   = "attempt_started"
	TypeAttemptSubmitted = "attempt_submitted"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins. Adjust this in production!
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	moduleID uint
}

// Hub fans events out to websocket clients watching a module's activity
// feed. One goroutine owns the room maps; handlers talk to it over channels.
type Hub struct {
	moduleRooms map[uint]map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	events      chan Event
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		moduleRooms: make(map[uint]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		events:      make(chan Event, 64),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.moduleRooms[client.moduleID] == nil {
				h.moduleRooms[client.moduleID] = make(map[*Client]bool)
			}
			h.moduleRooms[client.moduleID][client] = true
			h.mu.Unlock()
			log.Printf("Client joined module %d feed", client.moduleID)

		case client := <-h.unregister:
			h.dropClient(client)

		case event := <-h.events:
			h.broadcast(event)
		}
	}
}

// Publish enqueues an event for delivery. Never blocks the caller: if the
// hub is backed up the event is dropped and logged.
func (h *Hub) Publish(event Event) {
	event.At = time.Now().UTC()
	select {
	case h.events <- event:
	default:
		log.Printf("Event hub full, dropping %s for module %d", event.Type, event.ModuleID)
	}
}

func (h *Hub) broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event %s: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	room := h.moduleRooms[event.ModuleID]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer; drop it rather than stall the hub.
			h.dropClient(client)
		}
	}
}

// dropClient is safe to call from the hub goroutine itself; a later
// unregister for the same client finds it gone and is a no-op.
func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.moduleRooms[client.moduleID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.moduleRooms, client.moduleID)
	}
}

// HandleWebSocket upgrades the connection and attaches it to the module's
// event feed at /ws/modules/{moduleID}.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	moduleID, err := strconv.ParseUint(mux.Vars(r)["moduleID"], 10, 32)
	if err != nil {
		http.Error(w, "invalid module id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 16),
		moduleID: uint(moduleID),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The feed is one-way; reads only service control frames.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
