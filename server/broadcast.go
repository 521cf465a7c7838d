package server

// This file contains the websocket side of the server: client
// registration, the per-client write pump, and the broadcaster that
// relays scheduler lifecycle events to every connected client.

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket timeout constants following Gorilla best practices
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4 * 1024
)

// Client represents a WebSocket client connection
type Client struct {
	server    *RSVPServer
	conn      *websocket.Conn
	send      chan interface{}
	done      chan struct{}
	id        string
	closeOnce sync.Once
}

// HandleWebSocket upgrades a connection and registers the client for
// job event broadcasts.
// GET /ws
func (s *RSVPServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.mu.RLock()
	count := len(s.clients)
	s.mu.RUnlock()
	if count >= MaxClients {
		writeError(w, http.StatusServiceUnavailable, "Too many connected clients")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan interface{}, MaxClientMessageQueueSize),
		done:   make(chan struct{}),
		id:     uuid.NewString(),
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	s.logger.Debugw("WebSocket client connected", "client_id", client.id)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
}

// readPump drains the connection so control frames are processed and
// disconnects are noticed
func (c *Client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debugw("WebSocket read error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

// writePump serializes queued messages onto the connection and keeps
// the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Debugw("WebSocket write error", "client_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (s *RSVPServer) removeClient(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	s.logger.Debugw("WebSocket client disconnected", "client_id", c.id)
}

// ClientCount returns the number of connected websocket clients
func (s *RSVPServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// broadcastMessage sends a message to all connected clients.
// Returns the number of clients that accepted the message (channel not
// full).
func (s *RSVPServer) broadcastMessage(msg interface{}) int {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		select {
		case client.send <- msg:
			sent++
		default:
			// Channel full - skip
		}
	}
	return sent
}

// startJobEventBroadcaster subscribes to scheduler lifecycle events and
// relays them to WebSocket clients
func (s *RSVPServer) startJobEventBroadcaster() {
	events := s.scheduler.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.scheduler.Unsubscribe(events)

		for {
			select {
			case <-s.ctx.Done():
				s.logger.Debugw("Job event broadcaster stopping due to context cancellation")
				return
			case ev := <-events:
				s.broadcastMessage(ev)
			}
		}
	}()

	s.logger.Infow("Job event broadcaster started")
}

// closeAllClients disconnects every websocket client during shutdown
func (s *RSVPServer) closeAllClients() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.clients = make(map[*Client]bool)
	s.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}
