package stub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/planhub/core/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dev twin: any origin may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// envelope is the wire format shared with the client side.
type envelope struct {
	Type      string         `json:"type"`
	Room      string         `json:"room,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// wsClient is one connected room member.
type wsClient struct {
	id   string
	room string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

type roomMessage struct {
	room    string
	payload []byte
}

// Hub fans envelopes out to every client joined to a room.
type Hub struct {
	log *logging.Logger
	now func() time.Time

	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan roomMessage
	done       chan struct{}
}

// newHub starts the fanout loop.
func newHub(log *logging.Logger, now func() time.Time) *Hub {
	h := &Hub{
		log:        log,
		now:        now,
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan roomMessage, 256),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug("ws client joined", map[string]interface{}{
				"client": client.id,
				"room":   client.room,
				"total":  len(h.clients),
			})

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if client.room != message.room {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					// Slow client, drop the connection.
					close(client.send)
					delete(h.clients, client)
				}
			}

		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// Broadcast sends one envelope to every member of room.
func (h *Hub) Broadcast(room, envelopeType string, data map[string]any) {
	payload, err := json.Marshal(envelope{
		Type:      envelopeType,
		Room:      room,
		Data:      data,
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		h.log.Error("encoding broadcast", err, map[string]interface{}{"type": envelopeType})
		return
	}
	select {
	case h.broadcast <- roomMessage{room: room, payload: payload}:
	case <-h.done:
	}
}

// Close tears the hub down and disconnects every client.
func (h *Hub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// serve upgrades the request and runs the client pumps.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	client := &wsClient{
		id:   fmt.Sprintf("%s-%s", h.now().Format("20060102150405.000"), r.RemoteAddr),
		room: room,
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump consumes client envelopes: join_room gets an ack, ping gets
// a pong, everything else is ignored.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("ws read error", map[string]interface{}{
					"client": c.id,
					"error":  err.Error(),
				})
			}
			return
		}

		var incoming envelope
		if err := json.Unmarshal(raw, &incoming); err != nil {
			c.hub.log.Warn("undecodable ws message", map[string]interface{}{"client": c.id})
			continue
		}

		switch incoming.Type {
		case "join_room":
			c.reply(envelope{Type: "joined", Room: c.room})
		case "ping":
			c.reply(envelope{Type: "pong"})
		}
	}
}

// writePump drains the send channel and keeps the transport alive with
// protocol pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) reply(out envelope) {
	out.Timestamp = c.hub.now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(out)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
