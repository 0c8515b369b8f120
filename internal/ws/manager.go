package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one websocket connection bound to a studio session.
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	send      chan []byte
}

// NewClient wraps an upgraded connection.
func NewClient(sessionID string, conn *websocket.Conn) *Client {
	return &Client{
		SessionID: sessionID,
		Conn:      conn,
		send:      make(chan []byte, 256),
	}
}

// Manager tracks active websocket connections by session id. One connection
// per session; a reconnect displaces the previous one.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewManager creates a Manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		logger:  logger.Named("WSManager"),
	}
}

// Register adds the client and starts its read/write pumps. An existing
// connection for the same session is closed first.
func (m *Manager) Register(client *Client) {
	m.mu.Lock()
	if old, ok := m.clients[client.SessionID]; ok {
		m.logger.Info("Replacing existing connection", zap.String("session_id", client.SessionID))
		close(old.send)
		_ = old.Conn.Close()
	}
	m.clients[client.SessionID] = client
	m.mu.Unlock()

	m.logger.Info("WebSocket client registered", zap.String("session_id", client.SessionID))
	go client.writePump(m)
	go client.readPump(m)
}

// Unregister removes the client for the session if it is the given one.
func (m *Manager) Unregister(client *Client) {
	m.mu.Lock()
	if current, ok := m.clients[client.SessionID]; ok && current == client {
		delete(m.clients, client.SessionID)
		close(client.send)
	}
	m.mu.Unlock()
}

// SendToSession queues a message for the session's connection. Returns false
// when the session is offline or the queue is full.
func (m *Manager) SendToSession(sessionID string, message []byte) bool {
	m.mu.RLock()
	client, ok := m.clients[sessionID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		m.logger.Warn("Send queue full, dropping message", zap.String("session_id", sessionID))
		return false
	}
}

// CloseAll closes every connection, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, client := range m.clients {
		close(client.send)
		_ = client.Conn.Close()
		delete(m.clients, id)
	}
}

// readPump drains (and ignores) client messages to keep the connection's
// control frames flowing.
func (c *Client) readPump(m *Manager) {
	defer func() {
		m.Unregister(c)
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("WebSocket read error",
					zap.String("session_id", c.SessionID), zap.Error(err))
			}
			return
		}
	}
}

// writePump pushes queued messages to the connection and keeps it alive
// with pings.
func (c *Client) writePump(m *Manager) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				m.logger.Warn("WebSocket write error",
					zap.String("session_id", c.SessionID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
