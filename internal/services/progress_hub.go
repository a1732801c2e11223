package services

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message types pushed to progress subscribers.
const (
	MessageProgress = "simulation_progress"
	MessageComplete = "simulation_complete"
	MessageFailed   = "simulation_failed"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope written to every subscriber.
type Message struct {
	Type  string      `json:"type"`
	RunID string      `json:"run_id"`
	Data  interface{} `json:"data,omitempty"`
}

// Client is one websocket subscribed to a run.
type Client struct {
	RunID string
	Conn  *websocket.Conn
	Send  chan []byte
	Hub   *ProgressHub
}

// ProgressHub fans Monte Carlo progress out to the websockets watching a run.
type ProgressHub struct {
	clients    map[*Client]bool
	runClients map[string][]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *logrus.Logger
	mutex      sync.RWMutex
}

func NewProgressHub(logger *logrus.Logger) *ProgressHub {
	return &ProgressHub{
		clients:    make(map[*Client]bool),
		runClients: make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run handles client registration until Stop is called.
func (h *ProgressHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.runClients[client.RunID] = append(h.runClients[client.RunID], client)
			total := len(h.clients)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"run_id":        client.RunID,
				"total_clients": total,
			}).Debug("Progress subscriber connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			h.removeLocked(client)
			total := len(h.clients)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"run_id":        client.RunID,
				"total_clients": total,
			}).Debug("Progress subscriber disconnected")

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every subscriber.
func (h *ProgressHub) Stop() {
	close(h.done)
}

// removeLocked drops a client and closes its send channel. Callers hold the
// write lock.
func (h *ProgressHub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)

	runClients := h.runClients[client.RunID]
	for i, c := range runClients {
		if c == client {
			h.runClients[client.RunID] = append(runClients[:i], runClients[i+1:]...)
			break
		}
	}
	if len(h.runClients[client.RunID]) == 0 {
		delete(h.runClients, client.RunID)
	}
}

// HandleWebSocket upgrades GET /ws/simulations/:id and subscribes the
// connection to that run.
func (h *ProgressHub) HandleWebSocket(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		RunID: runID.String(),
		Conn:  conn,
		Send:  make(chan []byte, 256),
		Hub:   h,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// BroadcastToRun sends a message to every subscriber of a run. Slow
// subscribers are dropped instead of blocking the simulation.
func (h *ProgressHub) BroadcastToRun(runID, messageType string, data interface{}) {
	h.mutex.RLock()
	n := len(h.runClients[runID])
	h.mutex.RUnlock()
	if n == 0 {
		return
	}

	payload, err := json.Marshal(Message{Type: messageType, RunID: runID, Data: data})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, client := range append([]*Client(nil), h.runClients[runID]...) {
		select {
		case client.Send <- payload:
		default:
			h.removeLocked(client)
		}
	}
}

// SubscriberCount returns the number of connections watching a run.
func (h *ProgressHub) SubscriberCount(runID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.runClients[runID])
}

// GetConnectionCount returns the total number of active connections
func (h *ProgressHub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).Error("WebSocket error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.Hub.logger.WithError(err).Error("Failed to write WebSocket message")
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
