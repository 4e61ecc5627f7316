package main

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// SetupWebSocketRoutes adds WebSocket routes to the Fiber app
func SetupWebSocketRoutes(app *fiber.App, hub *Hub) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		handleWebSocketConnection(c, hub)
	}))
}

// handleWebSocketConnection serves one client until it disconnects
func handleWebSocketConnection(conn *websocket.Conn, hub *Hub) {
	client := NewClient(hub, conn)
	if !hub.Register(client) {
		client.close()
	}

	// the connection is released when this handler returns, so wait for
	// the write pump as well
	written := make(chan struct{})
	go func() {
		defer close(written)
		client.writePump()
	}()
	client.readPump()
	<-written
}
