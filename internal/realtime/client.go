package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"omnihub/api/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one websocket connection owned by an authenticated user.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	// rooms is touched only from the hub's Run goroutine.
	rooms map[string]bool
}

// inboundMessage covers everything browsers send: room control plus typing
// passthrough. Anything else is ignored.
type inboundMessage struct {
	Type string `json:"type"`
	Data struct {
		ProjectID string `json:"projectId"`
	} `json:"data"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf(`{"level":"warn","msg":"websocket read","user":%q,"error":%q}`, c.userID, err.Error())
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Data.ProjectID == "" {
			continue
		}
		room := ProjectRoom(msg.Data.ProjectID)

		switch msg.Type {
		case "join_project":
			c.hub.join <- subscription{client: c, room: room}
		case "leave_project":
			c.hub.leave <- subscription{client: c, room: room}
		case "typing", "stop_typing":
			// Relayed to roommates with the sender attached, sender excluded.
			message, err := json.Marshal(envelope{Type: msg.Type, Data: map[string]string{
				"projectId": msg.Data.ProjectID,
				"userId":    c.userID,
			}})
			if err != nil {
				continue
			}
			c.hub.emitRaw(room, message, c)
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

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the HTTP layer's CORS config; the
	// upgrade itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests to hub connections. The browser
// passes its access token as a query parameter because the websocket API
// cannot set headers.
func Handler(hub *Hub, parseToken func(string) (auth.Claims, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := parseToken(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf(`{"level":"warn","msg":"websocket upgrade","error":%q}`, err.Error())
			return
		}
		client := &Client{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, 256),
			userID: claims.Sub,
			rooms:  make(map[string]bool),
		}
		hub.register <- client
		// Everyone sits in their own room so per-user pushes (notifications)
		// need no explicit join.
		hub.join <- subscription{client: client, room: UserRoom(claims.Sub)}
		go client.writePump()
		go client.readPump()
	}
}
