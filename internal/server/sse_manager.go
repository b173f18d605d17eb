package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pluginhub/internal/logging"
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	Messages chan string
	Close    chan bool
}

// NewSSEClient creates a client with a buffered message queue
func NewSSEClient() *SSEClient {
	return &SSEClient{
		Messages: make(chan string, 256),
		Close:    make(chan bool, 1),
	}
}

// SSEManager fans store events out to every connected UI.
type SSEManager struct {
	clients map[*SSEClient]bool
	mu      sync.RWMutex

	sendTimeout time.Duration
}

// NewSSEManager creates a new SSE manager
func NewSSEManager() *SSEManager {
	return &SSEManager{
		clients:     make(map[*SSEClient]bool),
		sendTimeout: 500 * time.Millisecond,
	}
}

// RegisterClient adds a new SSE client
func (m *SSEManager) RegisterClient(client *SSEClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client] = true
}

// UnregisterClient removes an SSE client
func (m *SSEManager) UnregisterClient(client *SSEClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, client)
}

// ClientCount returns the number of connected clients
func (m *SSEManager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Publish sends an event to all clients. Clients that stop reading are dropped.
func (m *SSEManager) Publish(event string, data interface{}) {
	m.mu.RLock()
	clients := make([]*SSEClient, 0, len(m.clients))
	for client := range m.clients {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		logging.Errorf("Failed to marshal SSE message: %v", err)
		return
	}

	sseMessage := fmt.Sprintf("event: %s\ndata: %s\n\n", event, string(jsonData))

	clientsToRemove := []*SSEClient{}
	for _, client := range clients {
		select {
		case client.Messages <- sseMessage:
		case <-time.After(m.sendTimeout):
			clientsToRemove = append(clientsToRemove, client)
		}
	}

	if len(clientsToRemove) > 0 {
		m.mu.Lock()
		for _, client := range clientsToRemove {
			delete(m.clients, client)
			select {
			case client.Close <- true:
			default:
			}
		}
		m.mu.Unlock()
		logging.Warnf("Cleaned up %d unresponsive SSE clients", len(clientsToRemove))
	}
}

// CloseAll disconnects every client, used on shutdown
func (m *SSEManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for client := range m.clients {
		select {
		case client.Close <- true:
		default:
		}
		delete(m.clients, client)
	}
}
