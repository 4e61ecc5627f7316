package main

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period, must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 4096
	// Outbound buffer per client
	sendBufferSize = 64
)

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	sendMutex sync.Mutex
	send      chan []byte
	closed    bool

	subMutex     sync.RWMutex
	subscription *ClientSubscription
	filter       *SummaryFilter
	rateLimiter  *rate.Limiter

	statsMutex      sync.Mutex
	messagesSent    int
	messagesDropped int
}

// NewClient creates a new WebSocket client with the default subscription
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if err := client.UpdateSubscription(GetDefaultSubscription()); err != nil {
		log.Printf("Error creating default filter: %v", err)
	}
	return client
}

// UpdateSubscription updates the client's subscription and recompiles filters
func (c *Client) UpdateSubscription(sub *ClientSubscription) error {
	filter, err := NewSummaryFilter(sub)
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if sub.MaxMessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(sub.MaxMessagesPerSecond), sub.MaxMessagesPerSecond)
	}

	c.subMutex.Lock()
	defer c.subMutex.Unlock()
	c.subscription = sub
	c.filter = filter
	c.rateLimiter = limiter
	return nil
}

// ProcessSummary filters a tick summary and queues it for this client
func (c *Client) ProcessSummary(summary *TickSummary) {
	c.subMutex.RLock()
	filter, limiter := c.filter, c.rateLimiter
	c.subMutex.RUnlock()

	if limiter != nil && !limiter.Allow() {
		c.countDropped()
		return
	}

	msg := &ServerMessage{Type: "summary", Data: TransformSummary(summary, filter)}
	if !c.sendMessage(msg) {
		c.countDropped()
		return
	}
	c.statsMutex.Lock()
	c.messagesSent++
	c.statsMutex.Unlock()
}

func (c *Client) countDropped() {
	c.statsMutex.Lock()
	c.messagesDropped++
	c.statsMutex.Unlock()
}

// sendMessage queues msg without blocking; false if it was dropped
func (c *Client) sendMessage(msg *ServerMessage) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error encoding %s message: %v", msg.Type, err)
		return false
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close stops the write pump; safe to call more than once
func (c *Client) close() {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Stats returns the counters of this client
func (c *Client) Stats() *StatsMessage {
	connected := c.hub.clientCount()

	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	return &StatsMessage{
		Connected:  connected,
		MaxClients: c.hub.maxClients,
		Queued:     len(c.send),
		Sent:       c.messagesSent,
		Dropped:    c.messagesDropped,
	}
}

// handleClientMessage runs one action sent by the client
func (c *Client) handleClientMessage(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendMessage(newErrorMessage("bad_message", err.Error()))
		return
	}

	switch msg.Action {
	case "subscribe", "update":
		sub := GetDefaultSubscription()
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, sub); err != nil {
				c.sendMessage(newErrorMessage("bad_subscription", err.Error()))
				return
			}
		}
		if err := c.UpdateSubscription(sub); err != nil {
			c.sendMessage(newErrorMessage("bad_subscription", err.Error()))
			return
		}
		c.sendMessage(&ServerMessage{Type: "subscribed", Data: sub})
	case "stats":
		c.sendMessage(&ServerMessage{Type: "stats", Data: c.Stats()})
	case "ping":
		c.sendMessage(&ServerMessage{Type: "pong"})
	default:
		c.sendMessage(newErrorMessage("unknown_action", "unknown action: "+msg.Action))
	}
}

// readPump reads client messages until the connection fails
func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		c.handleClientMessage(message)
	}
}

// writePump writes queued messages and pings until the send channel closes
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
