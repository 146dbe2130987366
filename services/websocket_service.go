package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"finite-life/finitelife/broker"
	"finite-life/finitelife/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketServiceInterface defines the operations provided by the WebSocket service
type WebSocketServiceInterface interface {
	Start()
	Stop()
	HandleConnection(c *gin.Context)
	SetMessageInput(ch <-chan broker.Message)
}

// Client represents a connected WebSocket client
type Client struct {
	ID        string
	UserID    uuid.UUID
	SessionID uuid.UUID
	Hub       *WebSocketService
	Conn      *websocket.Conn
	Send      chan []byte
}

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WebSocketService pushes each user's own broker events to that user's connections
type WebSocketService struct {
	clients      map[string]*Client
	register     chan *Client
	unregister   chan *Client
	clientsMutex sync.RWMutex

	upgrader websocket.Upgrader
	tracker  *SessionTracker

	messages     chan broker.Message
	input        <-chan broker.Message
	unsubscribe  func()
	isRunning    bool
	stopChan     chan struct{}
	runningMutex sync.Mutex
}

// NewWebSocketService creates a hub fed by input. A nil tracker disables
// disconnect-on-signout.
func NewWebSocketService(tracker *SessionTracker, input <-chan broker.Message) *WebSocketService {
	return &WebSocketService{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		tracker:  tracker,
		messages: make(chan broker.Message, 256),
		input:    input,
		stopChan: make(chan struct{}),
	}
}

// SetMessageInput replaces the broker channel; it must be called before Start
func (ws *WebSocketService) SetMessageInput(ch <-chan broker.Message) {
	ws.input = ch
}

func (ws *WebSocketService) Start() {
	ws.runningMutex.Lock()
	defer ws.runningMutex.Unlock()
	if ws.isRunning {
		return
	}
	ws.isRunning = true

	go ws.run()
	if ws.input != nil {
		go ws.forwardMessages(ws.input)
	} else {
		log.Println("WebSocket service has no broker input, realtime events are disabled")
	}

	if ws.tracker != nil {
		ws.unsubscribe = ws.tracker.Subscribe(func(change AuthChange) {
			if !change.Started {
				ws.dropSession(change.UserID, change.SessionID)
			}
		})
	}

	log.Println("WebSocket service started")
}

func (ws *WebSocketService) Stop() {
	ws.runningMutex.Lock()
	defer ws.runningMutex.Unlock()
	if !ws.isRunning {
		return
	}
	ws.isRunning = false
	close(ws.stopChan)

	if ws.unsubscribe != nil {
		ws.unsubscribe()
		ws.unsubscribe = nil
	}

	ws.clientsMutex.Lock()
	for id, client := range ws.clients {
		ws.removeClientLocked(id, client)
	}
	ws.clientsMutex.Unlock()

	log.Println("WebSocket service stopped")
}

func (ws *WebSocketService) forwardMessages(input <-chan broker.Message) {
	for {
		select {
		case <-ws.stopChan:
			return
		case msg, ok := <-input:
			if !ok {
				log.Println("Broker channel closed, WebSocket service will no longer receive events")
				return
			}
			select {
			case ws.messages <- msg:
			default:
				log.Printf("Warning: WebSocket message channel is full, discarding %s", msg.Key)
			}
		}
	}
}

func (ws *WebSocketService) run() {
	for {
		select {
		case <-ws.stopChan:
			return

		case client := <-ws.register:
			ws.clientsMutex.Lock()
			ws.clients[client.ID] = client
			ws.clientsMutex.Unlock()
			log.Printf("Client connected: %s (user: %s)", client.ID, client.UserID)

		case client := <-ws.unregister:
			ws.clientsMutex.Lock()
			if existing, ok := ws.clients[client.ID]; ok {
				ws.removeClientLocked(client.ID, existing)
				log.Printf("Client disconnected: %s", client.ID)
			}
			ws.clientsMutex.Unlock()

		case msg := <-ws.messages:
			ws.deliver(msg)
		}
	}
}

// deliver routes a broker message to the connections of the user who owns the event
// and returns how many clients received it
func (ws *WebSocketService) deliver(msg broker.Message) int {
	outgoing, userID, err := toStandardMessage(msg)
	if err != nil {
		log.Printf("Error parsing broker message on %s: %v", msg.Subject, err)
		return 0
	}

	jsonData, err := json.Marshal(outgoing)
	if err != nil {
		log.Printf("Error serializing websocket message: %v", err)
		return 0
	}

	sent := 0
	ws.clientsMutex.Lock()
	defer ws.clientsMutex.Unlock()
	for id, client := range ws.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.Send <- jsonData:
			sent++
		default:
			log.Printf("Client %s send buffer full, removing client", id)
			ws.removeClientLocked(id, client)
		}
	}
	return sent
}

// dropSession disconnects every client opened with a session that has ended
func (ws *WebSocketService) dropSession(userID, sessionID uuid.UUID) {
	ws.clientsMutex.Lock()
	defer ws.clientsMutex.Unlock()
	for id, client := range ws.clients {
		if client.UserID == userID && client.SessionID == sessionID {
			log.Printf("Session %s ended, closing client %s", sessionID, id)
			ws.removeClientLocked(id, client)
		}
	}
}

func (ws *WebSocketService) removeClientLocked(id string, client *Client) {
	delete(ws.clients, id)
	close(client.Send)
	if client.Conn != nil {
		client.Conn.Close()
	}
}

func toStandardMessage(msg broker.Message) (*models.StandardMessage, uuid.UUID, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return nil, uuid.Nil, err
	}
	userID, err := uuid.Parse(envelope.Payload.UserID)
	if err != nil {
		return nil, uuid.Nil, err
	}

	eventType := envelope.Type
	if eventType == "" {
		eventType = msg.Key
	}

	var data map[string]interface{}
	if len(envelope.Payload.Data) > 0 {
		if err := json.Unmarshal(envelope.Payload.Data, &data); err != nil {
			return nil, uuid.Nil, err
		}
	}

	outgoing := models.NewStandardMessage(models.EventMessage, eventType, map[string]interface{}{
		"event_id":  envelope.Payload.EventID,
		"timestamp": envelope.Payload.Timestamp,
		"data":      data,
	}).ForUser(userID.String())

	if id, ok := data["id"].(string); ok {
		outgoing.WithResource(envelope.Payload.Entity, id)
	}
	return outgoing, userID, nil
}

// HandleConnection upgrades an authenticated request. AuthMiddleware must have set
// userID and claims on the context.
func (ws *WebSocketService) HandleConnection(c *gin.Context) {
	userIDValue, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userID, ok := userIDValue.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var sessionID uuid.UUID
	if claimsValue, exists := c.Get("claims"); exists {
		if claims, ok := claimsValue.(*JWTClaims); ok {
			if id, err := claims.SessionID(); err == nil {
				sessionID = id
			}
		}
	}

	conn, err := ws.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	client := &Client{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: sessionID,
		Hub:       ws,
		Conn:      conn,
		Send:      make(chan []byte, 256),
	}

	select {
	case ws.register <- client:
	case <-ws.stopChan:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.stopChan:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Error reading from WebSocket: %v", err)
			}
			break
		}
		c.processMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage answers client pings; the stream is otherwise server to client only
func (c *Client) processMessage(msg []byte) {
	var clientMsg ClientMessage
	if err := json.Unmarshal(msg, &clientMsg); err != nil {
		log.Printf("Error parsing client message: %v", err)
		return
	}

	switch clientMsg.Type {
	case "ping":
		pong, err := json.Marshal(models.NewStandardMessage(models.SessionMessage, "pong", map[string]interface{}{}))
		if err != nil {
			return
		}
		c.Hub.clientsMutex.RLock()
		defer c.Hub.clientsMutex.RUnlock()
		if _, live := c.Hub.clients[c.ID]; live {
			select {
			case c.Send <- pong:
			default:
			}
		}
	default:
		log.Printf("Unknown message type: %s", clientMsg.Type)
	}
}

var WebSocketServiceInstance WebSocketServiceInterface
