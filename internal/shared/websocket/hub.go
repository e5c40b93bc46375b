package websocket

import (
	"context"
	"time"

	"github.com/cristianortiz/harvestAuction/internal/shared/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Hub keeps the registry of observer connections grouped by lot and fans
// broadcast messages out to them. One goroutine (Run) owns all the maps.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	// InboundMessages carries client payloads out to module handlers.
	InboundMessages chan *ClientMessage
}

// Client is one websocket connection watching a single lot.
type Client struct {
	Hub   *Hub
	Conn  *websocket.Conn
	Send  chan []byte
	LotID string
	ID    string
}

type Message struct {
	LotID string
	Data  []byte
}

// ClientMessage wraps an inbound payload with the client it came from.
type ClientMessage struct {
	Client *Client
	Data   []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:       make(chan *Message, 64),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		clients:         make(map[string]map[*Client]bool),
		InboundMessages: make(chan *ClientMessage, 64),
	}
}

// Run owns the client registry until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Info("WebSocket hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info("WebSocket hub shutting down")
			for _, lotClients := range h.clients {
				for client := range lotClients {
					close(client.Send)
				}
			}
			return

		case client := <-h.register:
			if _, ok := h.clients[client.LotID]; !ok {
				h.clients[client.LotID] = make(map[*Client]bool)
			}
			h.clients[client.LotID][client] = true
			log.Info("Observer registered",
				zap.String("clientID", client.ID),
				zap.String("lotID", client.LotID),
			)

		case client := <-h.unregister:
			if clients, ok := h.clients[client.LotID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.LotID)
					}
					log.Info("Observer unregistered",
						zap.String("clientID", client.ID),
						zap.String("lotID", client.LotID),
					)
				}
			}

		case message := <-h.broadcast:
			for client := range h.clients[message.LotID] {
				select {
				case client.Send <- message.Data:
				default:
					// client not draining, drop it
					close(client.Send)
					delete(h.clients[message.LotID], client)
					log.Warn("Observer not keeping up, unregistering",
						zap.String("clientID", client.ID),
						zap.String("lotID", client.LotID),
					)
				}
			}
		}
	}
}

// RegisterClient queues a client for registration. If the hub is not
// running the connection is dropped instead of blocking the caller.
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-time.After(writeWait):
		log.Error("Hub not accepting registrations, closing connection",
			zap.String("clientID", client.ID),
		)
		_ = client.Conn.Close()
	}
}

// UnregisterClient queues a client for removal.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	default:
		// hub already shutting down
	}
}

// BroadcastToLot sends data to every client watching lotID.
func (h *Hub) BroadcastToLot(lotID string, data []byte) {
	select {
	case h.broadcast <- &Message{LotID: lotID, Data: data}:
	default:
		log.Error("Broadcast channel full, message dropped", zap.String("lotID", lotID))
	}
}

// ReadPump reads client messages into the hub's inbound channel. Run one
// goroutine per connection.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("WebSocket read error",
					zap.String("clientID", c.ID),
					zap.String("lotID", c.LotID),
					zap.Error(err),
				)
			}
			return
		}

		select {
		case c.Hub.InboundMessages <- &ClientMessage{Client: c, Data: message}:
		default:
			log.Error("Inbound channel full, dropping client message",
				zap.String("clientID", c.ID),
				zap.String("lotID", c.LotID),
			)
		}
	}
}

// WritePump pumps hub messages to the connection and keeps it alive with
// pings. At most one writer per connection.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error("WebSocket write error",
					zap.String("clientID", c.ID),
					zap.String("lotID", c.LotID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
