package ws

import (
	"context"
	"sync"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
)

// Message is the envelope pushed to browser clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const MessageOcrCompleted = "ocr.completed"

// WebSocketManager tracks live connections per user. One user may have
// several tabs open, so each user maps to a set of clients.
type WebSocketManager struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns registration until ctx is done, then closes every client.
func (manager *WebSocketManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(manager.done)
			manager.closeAll()
			return

		case client := <-manager.register:
			manager.mu.Lock()
			set, ok := manager.clients[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				manager.clients[client.UserID] = set
			}
			set[client] = struct{}{}
			manager.mu.Unlock()
			logger.Debug("websocket client registered", "user_id", client.UserID, "connections", len(set))

		case client := <-manager.unregister:
			manager.remove(client)
		}
	}
}

func (manager *WebSocketManager) remove(client *Client) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	set, ok := manager.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	close(client.Send)
	delete(set, client)
	if len(set) == 0 {
		delete(manager.clients, client.UserID)
	}
	logger.Debug("websocket client unregistered", "user_id", client.UserID)
}

func (manager *WebSocketManager) closeAll() {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	for userID, set := range manager.clients {
		for client := range set {
			close(client.Send)
		}
		delete(manager.clients, userID)
	}
}

// SendToUser queues msg for every connection of userID and reports whether
// at least one connection took it. Slow clients are dropped.
func (manager *WebSocketManager) SendToUser(userID string, msg any) bool {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	delivered := false
	for client := range manager.clients[userID] {
		select {
		case client.Send <- msg:
			delivered = true
		default:
			go manager.drop(client)
		}
	}
	return delivered
}

func (manager *WebSocketManager) drop(client *Client) {
	logger.Warn("websocket client too slow, disconnecting", "user_id", client.UserID)
	manager.leave(client)
}

// join reports false once the manager has stopped.
func (manager *WebSocketManager) join(client *Client) bool {
	select {
	case manager.register <- client:
		return true
	case <-manager.done:
		return false
	}
}

func (manager *WebSocketManager) leave(client *Client) {
	select {
	case manager.unregister <- client:
	case <-manager.done:
	}
}

// sendToClient is used for replies on a single connection.
func (manager *WebSocketManager) sendToClient(client *Client, msg any) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	if _, ok := manager.clients[client.UserID][client]; !ok {
		return
	}
	select {
	case client.Send <- msg:
	default:
	}
}

func (manager *WebSocketManager) IsUserConnected(userID string) bool {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return len(manager.clients[userID]) > 0
}

func (manager *WebSocketManager) GetClientCount() int {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	n := 0
	for _, set := range manager.clients {
		n += len(set)
	}
	return n
}
