package server

import (
	"encoding/json"
	"net/http"

	"tradeapi-connector/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *FastAPIServer) handleWebsockets() {
	for {
		select {
		case <-s.quit:
			s.stateMutex.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.stateMutex.Unlock()
			return

		case client := <-s.register:
			s.stateMutex.Lock()
			s.clients[client] = struct{}{}
			s.stateMutex.Unlock()
			// Send recent events on connect
			for _, message := range s.recentFor(client) {
				if !s.deliver(client, message) {
					break
				}
			}

		case client := <-s.unregister:
			s.stateMutex.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.stateMutex.Unlock()

		case message := <-s.broadcast:
			s.recent.AddDataPoint(string(message.Kind), message)

			s.stateMutex.Lock()
			s.latest = message.ReceivedAt
			s.stateMutex.Unlock()

			for client := range s.clients {
				if client.wants(message.Kind) {
					s.deliver(client, message)
				}
			}
		}
	}
}

// deliver runs on the hub goroutine. A client whose buffer is full is dropped
// so that it cannot block the hub.
func (s *FastAPIServer) deliver(client *Client, message models.MRelayMessage) bool {
	select {
	case client.send <- message:
		return true
	default:
		s.stateMutex.Lock()
		if _, ok := s.clients[client]; ok {
			delete(s.clients, client)
			close(client.send)
		}
		s.stateMutex.Unlock()
		return false
	}
}

// recentFor returns the buffered events a client asked for, marked INITIAL.
func (s *FastAPIServer) recentFor(client *Client) []models.MRelayMessage {
	var out []models.MRelayMessage
	for _, kind := range s.recent.Keys() {
		if !client.wants(models.StreamKind(kind)) {
			continue
		}
		for _, message := range s.recent.GetLatest(kind, 0) {
			message.Type = "INITIAL"
			out = append(out, message)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Event Relay Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues one event for the hub. Events are dropped when the queue
// is full so that stream dispatch never blocks.
func (s *FastAPIServer) Broadcast(event models.MStreamEvent) {
	message, err := toRelayMessage(event)
	if err != nil {
		s.Logger.Warning("cannot relay %s event: %v", event.Kind, err)
		return
	}

	select {
	case s.broadcast <- message:
	default:
		s.stateMutex.Lock()
		s.dropped++
		s.stateMutex.Unlock()
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// room for the initial replay of all five kinds plus live traffic
		send: make(chan models.MRelayMessage, 256+5*s.Config.RecentEvents),
	}
	if kinds := c.QueryArray("kind"); len(kinds) > 0 {
		client.setKinds(kinds)
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage applies a {"command":"subscribe","kinds":[...]} filter.
// An empty kind list selects every kind.
func (s *FastAPIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	kinds := make([]string, 0, len(cmd.Kinds))
	for _, k := range cmd.Kinds {
		kinds = append(kinds, string(k))
	}
	client.setKinds(kinds)
}
