package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is one websocket connection joined to a consultation room.
type Client struct {
	Hub           *Hub
	Conn          *websocket.Conn
	Send          chan []byte
	UserID        uint
	Role          string
	AppointmentID uint
}

// Hub fans messages out to every connection in an appointment's room.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	mu    sync.RWMutex
	rooms map[uint]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[uint]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			room := h.rooms[client.AppointmentID]
			if room == nil {
				room = make(map[*Client]bool)
				h.rooms[client.AppointmentID] = room
			}
			room[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.AppointmentID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.Send)
					if len(room) == 0 {
						delete(h.rooms, client.AppointmentID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToRoom sends to every connection in the appointment's room.
func (h *Hub) BroadcastToRoom(appointmentID uint, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[appointmentID] {
		select {
		case client.Send <- message:
		default:
			// slow consumer, drop the connection
			close(client.Send)
			delete(h.rooms[appointmentID], client)
		}
	}
}

// BroadcastToPeers sends to everyone in the room except the sender.
// Used for signaling relay, where echoing an offer back to its author
// would confuse the caller.
func (h *Hub) BroadcastToPeers(appointmentID uint, sender *Client, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[appointmentID] {
		if client == sender {
			continue
		}
		select {
		case client.Send <- message:
		default:
			close(client.Send)
			delete(h.rooms[appointmentID], client)
		}
	}
}

// RoomSize reports how many connections are in a room.
func (h *Hub) RoomSize(appointmentID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[appointmentID])
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
