package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"camtrap/internal/logger"
	"camtrap/internal/ui"
)

// Event types pushed to browsers.
const (
	EventState = "state"
	EventLog   = "log"
	EventError = "error"
)

// Event is one message sent to connected browsers.
type Event struct {
	Type    string    `json:"type"`
	State   *ui.State `json:"state,omitempty"`
	Text    string    `json:"text,omitempty"`
	Title   string    `json:"title,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Limits on how far a browser may fall behind before it is dropped.
const (
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// client is one registered browser. Only its writer goroutine writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// HubService fans form updates out to every connected browser. It implements
// ui.View, so the form drives it from the UI loop; publishing never blocks.
type HubService struct {
	clients    map[*websocket.Conn]*client
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	dropped    atomic.Int64
	writeWait  time.Duration
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// NewHubService creates a hub. Nothing is delivered until Run is called.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]*client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		writeWait:  writeWait,
		logger:     logger,
	}
}

// Run delivers broadcasts until ctx is done, then closes every client.
func (h *HubService) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mutex.Lock()
		for conn, c := range h.clients {
			close(c.send)
			delete(h.clients, conn)
		}
		h.mutex.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
			h.mutex.Lock()
			h.clients[conn] = c
			h.mutex.Unlock()
			go h.writePump(c)
			h.logger.Info("Client connected. Total: %d", h.GetClientCount())

		case conn := <-h.unregister:
			h.remove(conn)
			h.logger.Info("Client disconnected. Total: %d", h.GetClientCount())

		case message := <-h.broadcast:
			h.mutex.RLock()
			var slow []*websocket.Conn
			for conn, c := range h.clients {
				select {
				case c.send <- message:
				default:
					slow = append(slow, conn)
				}
			}
			h.mutex.RUnlock()
			for _, conn := range slow {
				h.logger.Warning("Dropping console client %s that stopped reading", conn.RemoteAddr())
				h.remove(conn)
			}
		}
	}
}

// remove forgets a client and stops its writer, which closes the connection.
func (h *HubService) remove(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if c, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(c.send)
	}
}

// writePump writes queued messages to one client with a deadline per write.
func (h *HubService) writePump(c *client) {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Warning("Error sending message: %v", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Register adds a client. It returns false once the hub has stopped.
func (h *HubService) Register(client *websocket.Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes and closes a client.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Send writes one event to a single client that is not registered yet.
func (h *HubService) Send(client *websocket.Conn, event Event) error {
	message, err := json.Marshal(event)
	if err != nil {
		return err
	}
	client.SetWriteDeadline(time.Now().Add(h.writeWait))
	return client.WriteMessage(websocket.TextMessage, message)
}

// Render pushes the form state. Console text travels as log events, so it is
// left out here.
func (h *HubService) Render(state ui.State) {
	state.Console = ""
	h.publish(Event{Type: EventState, State: &state})
}

// AppendLog pushes console text.
func (h *HubService) AppendLog(text string) {
	h.publish(Event{Type: EventLog, Text: text})
}

// ShowError pushes an error dialog.
func (h *HubService) ShowError(title, message string) {
	h.publish(Event{Type: EventError, Title: title, Message: message})
}

func (h *HubService) publish(event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Error encoding %s event: %v", event.Type, err)
		return
	}
	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		h.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the hub was behind.
func (h *HubService) Dropped() int64 {
	return h.dropped.Load()
}

// GetClientCount returns the number of connected clients.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
