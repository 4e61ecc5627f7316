package main

import (
	"context"
	"log"
	"sync"
)

// Hub maintains the set of active clients and broadcasts tick summaries to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Summaries published by the profiler
	broadcast chan *TickSummary

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Maximum number of clients
	maxClients int

	// Mutex for client map
	mutex sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(maxClients int) *Hub {
	return &Hub{
		broadcast:  make(chan *TickSummary, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		maxClients: maxClients,
	}
}

// Run starts the hub's main event loop; it stops all clients when ctx ends
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case summary := <-h.broadcast:
			h.broadcastSummary(summary)
		}
	}
}

func (h *Hub) shutdown() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		client.close()
	}
	close(h.done)
}

// Register hands a new client to the hub; false once the hub has stopped
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client; a stopped hub has already released it
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// registerClient adds a new client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// Check if we've reached the max client limit
	if len(h.clients) >= h.maxClients {
		log.Printf("Maximum client limit reached (%d), rejecting new client", h.maxClients)
		client.sendMessage(newErrorMessage("too_many_clients", "maximum number of clients reached"))
		client.close()
		return
	}

	h.clients[client] = true
	log.Printf("Client registered, total clients: %d/%d", len(h.clients), h.maxClients)
}

// unregisterClient removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
		log.Printf("Client unregistered, remaining clients: %d/%d", len(h.clients), h.maxClients)
	}
}

// broadcastSummary hands a summary to every client; clients never block
func (h *Hub) broadcastSummary(summary *TickSummary) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		client.ProcessSummary(summary)
	}
}

// PublishSummary queues a summary for broadcasting, called by the profiler
func (h *Hub) PublishSummary(summary *TickSummary) {
	select {
	case h.broadcast <- summary:
	default:
		// Broadcast channel is full, drop summary
		log.Printf("Hub broadcast channel full, dropping summary of tick %d", summary.Tick)
	}
}

// clientCount returns the current number of connected clients
func (h *Hub) clientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// GetStats returns hub statistics
func (h *Hub) GetStats() map[string]interface{} {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return map[string]interface{}{
		"connected_clients": len(h.clients),
		"max_clients":       h.maxClients,
		"broadcast_buffer":  len(h.broadcast),
	}
}
