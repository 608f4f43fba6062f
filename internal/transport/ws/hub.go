// Package ws keeps live websocket connections grouped into rooms and pushes
// notifications to them.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/logger"
	"github.com/smartfix-api/internal/pkg/id"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Message is the frame pushed to clients.
type Message struct {
	Event string      `json:"event"`
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
}

// Client is one live connection. Its rooms are fixed at join time.
type Client struct {
	id        string
	accountID string
	rooms     []string
	send      chan []byte
}

func newClient(accountID string, rooms []string) *Client {
	return &Client{
		id:        id.Conn(),
		accountID: accountID,
		rooms:     rooms,
		send:      make(chan []byte, sendBuffer),
	}
}

// Hub routes published notifications to the clients in a room. A slow client
// whose buffer is full misses the message rather than blocking the publisher.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	clients  map[*Client]struct{}
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHub(log *logger.Logger, allowedOrigins []string) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// RoomsFor lists the rooms an account joins on connect.
func RoomsFor(a *domain.Account) []string {
	rooms := []string{domain.UserTopic(a.AccountID), domain.RoleTopic(a.Role), domain.TopicGlobal}
	if domain.CanPerform(a, domain.ActionJoinAdminRoom, "") {
		rooms = append(rooms, domain.TopicAdminRoom)
	}
	return rooms
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) join(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	for _, room := range c.rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
	}
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for _, room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.send)
}

// Connections returns the number of live clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish pushes n to every client in topic. Sent counts the room members,
// Delivered those whose buffer accepted the frame, Failed the rest.
func (h *Hub) Publish(_ context.Context, topic string, n *domain.Notification) (domain.DeliveryReport, error) {
	frame, err := json.Marshal(Message{Event: "new_notification", Topic: topic, Data: n.Push()})
	if err != nil {
		return domain.DeliveryReport{}, fmt.Errorf("marshal ws frame: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	var report domain.DeliveryReport
	for c := range h.rooms[topic] {
		report.Sent++
		select {
		case c.send <- frame:
			report.Delivered++
		default:
			report.Failed++
		}
	}
	return report, nil
}

// Serve upgrades the request and keeps the connection until the peer goes
// away or Shutdown is called.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, a *domain.Account) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	c := newClient(a.AccountID, RoomsFor(a))
	h.join(c)

	log := h.log.With("conn_id", c.id)
	log.Debug().Str("account_id", a.AccountID).Strs("rooms", c.rooms).Msg("websocket connected")

	go h.writePump(conn, c)
	go func() {
		h.readPump(conn, c)
		log.Debug().Str("account_id", a.AccountID).Msg("websocket disconnected")
	}()
	return nil
}

// readPump drains client frames so control messages are processed, and
// unregisters the client when the connection fails.
func (h *Hub) readPump(conn *websocket.Conn, c *Client) {
	defer func() {
		h.leave(c)
		conn.Close()
	}()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("conn_id", c.id).Msg("websocket read")
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.leave(c)
	}
}
