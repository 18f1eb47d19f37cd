package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ayusman/backflip/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// clientBuffer is how many messages may queue for one slow client before it
// is dropped.
const clientBuffer = 16

// EventHub pushes confirmed flips to websocket clients.
type EventHub struct {
	clients map[*websocket.Conn]chan []byte
	mu      sync.RWMutex
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*websocket.Conn]chan []byte)}
}

// Publish queues n for every connected client. It never blocks; a client
// whose queue is full is disconnected.
func (h *EventHub) Publish(n app.Notification) {
	msg, err := json.Marshal(n)
	if err != nil {
		log.Printf("websocket encode error: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, queue := range h.clients {
		select {
		case queue <- msg:
		default:
			log.Printf("websocket client %s too slow, dropping", conn.RemoteAddr())
			close(queue)
			delete(h.clients, conn)
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	queue := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = queue
	h.mu.Unlock()

	go h.write(conn, queue)

	// Reads only detect the close; clients have nothing to send.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(conn)
}

func (h *EventHub) write(conn *websocket.Conn, queue <-chan []byte) {
	for msg := range queue {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	// The hub dropped this client.
	conn.Close()
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if queue, ok := h.clients[conn]; ok {
		close(queue)
		delete(h.clients, conn)
	}
}
