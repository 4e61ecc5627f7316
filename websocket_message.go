package main

import (
	"encoding/json"
	"time"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Action string          `json:"action"` // "subscribe", "update", "stats", "ping"
	Data   json.RawMessage `json:"data"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type string      `json:"type"` // "summary", "stats", "error", "pong", "subscribed"
	Data interface{} `json:"data"`
}

// SummaryMessage is the per-tick ranking sent to a client
type SummaryMessage struct {
	Tick      int64        `json:"tick"`
	Timestamp string       `json:"timestamp"`
	Window    int          `json:"window"`
	Samples   int          `json:"samples"`
	Queries   []QueryCount `json:"queries"`
}

// StatsMessage provides client statistics
type StatsMessage struct {
	Connected  int `json:"connected"`   // Number of connected clients
	MaxClients int `json:"max_clients"` // Client limit of the hub
	Queued     int `json:"queued"`      // Messages in send buffer
	Sent       int `json:"sent"`        // Summaries queued for this client
	Dropped    int `json:"dropped"`     // Summaries dropped by rate limit or full buffer
}

// ErrorMessage provides error information
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TransformSummary converts a tick summary into the message for one client
func TransformSummary(summary *TickSummary, filter *SummaryFilter) *SummaryMessage {
	rows := summary.Top
	if filter != nil && filter.subscription.Total {
		rows = summary.Total
	}
	if filter != nil {
		rows = filter.Apply(rows)
	}
	if rows == nil {
		rows = []QueryCount{}
	}
	return &SummaryMessage{
		Tick:      summary.Tick,
		Timestamp: summary.Timestamp.Format(time.RFC3339),
		Window:    summary.Window,
		Samples:   summary.Samples,
		Queries:   rows,
	}
}

func newErrorMessage(code, message string) *ServerMessage {
	return &ServerMessage{Type: "error", Data: &ErrorMessage{Code: code, Message: message}}
}
