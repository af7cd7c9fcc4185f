package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from another origin
	},
}

// Client represents a connected WebSocket client
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	businessID uint
}

// Hub maintains the set of active clients and broadcasts events to them.
// Clients subscribe to one business; a zero business id receives everything.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
}

type envelope struct {
	businessID uint
	payload    []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run dispatches events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("WebSocket client registered", zap.Uint("business_id", client.businessID))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Debug("WebSocket client unregistered")
		case env := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.businessID != 0 && client.businessID != env.businessID {
					continue
				}
				select {
				case client.send <- env.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

type WSEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// BroadcastEvent queues an event for a business. Events are dropped when the
// queue is full so webhook handling never blocks on slow dashboards.
func (h *Hub) BroadcastEvent(businessID uint, eventType string, data interface{}) {
	payload, err := json.Marshal(WSEvent{Type: eventType, Data: data})
	if err != nil {
		logger.Error("Error marshaling WS event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- envelope{businessID: businessID, payload: payload}:
	default:
		logger.Warn("WebSocket queue full, dropping event", zap.String("type", eventType))
	}
}

func (h *Hub) NotifyMessage(msg models.Message) {
	h.BroadcastEvent(msg.BusinessProfileID, "new_message", msg)
}

func (h *Hub) NotifyStatus(msg models.Message) {
	h.BroadcastEvent(msg.BusinessProfileID, "status_update", msg)
}

// ServeWs upgrades the request and subscribes the client to businessID.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, businessID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), businessID: businessID}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		// clients only send pings
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
