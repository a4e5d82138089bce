// Package realtime fans board and project events out to connected browsers.
// Clients join per-project rooms over a websocket; emitters address rooms,
// never individual connections.
package realtime

import (
	"encoding/json"
	"log"
)

// Broadcaster is the emit surface handlers depend on. Emission is best
// effort: a failed or empty room never fails the operation that triggered it.
type Broadcaster interface {
	EmitToRoom(room, event string, payload any)
}

// ProjectRoom names the room all members of a project share.
func ProjectRoom(projectID string) string {
	return "project:" + projectID
}

// UserRoom names the private room a single user's connections share.
func UserRoom(userID string) string {
	return "user:" + userID
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type outbound struct {
	room    string
	message []byte
	exclude *Client
}

type subscription struct {
	client *Client
	room   string
}

// Hub tracks connected clients and the rooms each has joined. All state is
// owned by the Run goroutine; everything else goes through channels.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	join       chan subscription
	leave      chan subscription
	emit       chan outbound
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan subscription),
		leave:      make(chan subscription),
		emit:       make(chan outbound, 64),
	}
}

// EmitToRoom queues an event for every client in the room. Marshal failures
// are logged and dropped; callers never see them.
func (h *Hub) EmitToRoom(room, event string, payload any) {
	message, err := json.Marshal(envelope{Type: event, Data: payload})
	if err != nil {
		log.Printf(`{"level":"error","msg":"marshal realtime event","event":%q,"error":%q}`, event, err.Error())
		return
	}
	h.emit <- outbound{room: room, message: message}
}

func (h *Hub) emitRaw(room string, message []byte, exclude *Client) {
	h.emit <- outbound{room: room, message: message, exclude: exclude}
}

// Run owns the client and room registries. Start it once, before serving
// connections.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			h.drop(client)
		case sub := <-h.join:
			if !h.clients[sub.client] {
				continue
			}
			members := h.rooms[sub.room]
			if members == nil {
				members = make(map[*Client]bool)
				h.rooms[sub.room] = members
			}
			members[sub.client] = true
			sub.client.rooms[sub.room] = true
		case sub := <-h.leave:
			h.dropFromRoom(sub.room, sub.client)
			delete(sub.client.rooms, sub.room)
		case out := <-h.emit:
			for client := range h.rooms[out.room] {
				if client == out.exclude {
					continue
				}
				select {
				case client.send <- out.message:
				default:
					// Slow consumer: drop the connection rather than block
					// the hub loop.
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	for room := range client.rooms {
		h.dropFromRoom(room, client)
	}
	close(client.send)
}

func (h *Hub) dropFromRoom(room string, client *Client) {
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}
