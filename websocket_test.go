package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummary(tick int64) *TickSummary {
	return &TickSummary{
		Tick:      tick,
		Timestamp: time.Date(2024, 12, 7, 14, 33, 34, 0, time.UTC),
		Window:    10,
		Samples:   9,
		Top: []QueryCount{
			{"SELECT * FROM orders WHERE id = N", 5},
			{"UPDATE orders SET state = S WHERE id = N", 3},
			{"SELECT * FROM users WHERE id = N", 1},
		},
		Total: []QueryCount{
			{"SELECT * FROM orders WHERE id = N", 50},
		},
	}
}

// receive decodes the next queued message of a client
func receive(t *testing.T, client *Client) (string, json.RawMessage) {
	t.Helper()
	select {
	case payload, ok := <-client.send:
		require.True(t, ok, "send channel closed")
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg.Type, msg.Data
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return "", nil
	}
}

func receiveSummary(t *testing.T, client *Client) *SummaryMessage {
	t.Helper()
	typ, data := receive(t, client)
	require.Equal(t, "summary", typ)
	var summary SummaryMessage
	require.NoError(t, json.Unmarshal(data, &summary))
	return &summary
}

func TestSummaryFilter(t *testing.T) {
	filter, err := NewSummaryFilter(&ClientSubscription{
		Patterns: []string{"SELECT*", "UPDATE*"},
		Excludes: []string{"*users*"},
	})
	require.NoError(t, err)

	assert.True(t, filter.Matches("SELECT * FROM orders WHERE id = N"))
	assert.False(t, filter.Matches("SELECT * FROM users WHERE id = N"))
	assert.False(t, filter.Matches("DELETE FROM orders"))

	rows := filter.Apply(testSummary(1).Top)
	assert.Equal(t, []QueryCount{
		{"SELECT * FROM orders WHERE id = N", 5},
		{"UPDATE orders SET state = S WHERE id = N", 3},
	}, rows)

	filter, err = NewSummaryFilter(&ClientSubscription{TopN: 2})
	require.NoError(t, err)
	assert.Len(t, filter.Apply(testSummary(1).Top), 2)

	_, err = NewSummaryFilter(&ClientSubscription{Excludes: []string{"[oops"}})
	assert.Error(t, err)
}

func TestTransformSummary(t *testing.T) {
	msg := TransformSummary(testSummary(7), nil)
	assert.Equal(t, int64(7), msg.Tick)
	assert.Equal(t, "2024-12-07T14:33:34Z", msg.Timestamp)
	assert.Len(t, msg.Queries, 3)

	filter, err := NewSummaryFilter(&ClientSubscription{Total: true})
	require.NoError(t, err)
	msg = TransformSummary(testSummary(7), filter)
	assert.Equal(t, []QueryCount{{"SELECT * FROM orders WHERE id = N", 50}}, msg.Queries)

	filter, err = NewSummaryFilter(&ClientSubscription{Patterns: []string{"INSERT*"}})
	require.NoError(t, err)
	msg = TransformSummary(testSummary(7), filter)
	assert.NotNil(t, msg.Queries)
	assert.Empty(t, msg.Queries)
}

func TestClientProcessSummary(t *testing.T) {
	client := NewClient(NewHub(2), nil)
	require.NoError(t, client.UpdateSubscription(&ClientSubscription{Patterns: []string{"UPDATE*"}}))

	client.ProcessSummary(testSummary(1))
	summary := receiveSummary(t, client)
	assert.Equal(t, []QueryCount{{"UPDATE orders SET state = S WHERE id = N", 3}}, summary.Queries)
	assert.Equal(t, 1, client.Stats().Sent)
}

func TestClientRateLimit(t *testing.T) {
	client := NewClient(NewHub(2), nil)
	require.NoError(t, client.UpdateSubscription(&ClientSubscription{MaxMessagesPerSecond: 1}))

	client.ProcessSummary(testSummary(1))
	client.ProcessSummary(testSummary(2))

	assert.Equal(t, int64(1), receiveSummary(t, client).Tick)
	stats := client.Stats()
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Dropped)
}

func TestClientFullBufferDrops(t *testing.T) {
	client := NewClient(NewHub(2), nil)
	for tick := 1; tick <= sendBufferSize+5; tick++ {
		client.ProcessSummary(testSummary(int64(tick)))
	}
	stats := client.Stats()
	assert.Equal(t, sendBufferSize, stats.Sent)
	assert.Equal(t, 5, stats.Dropped)
	assert.Equal(t, sendBufferSize, stats.Queued)

	client.close()
	client.close()
	client.ProcessSummary(testSummary(99))
	assert.Equal(t, 6, client.Stats().Dropped)
}

func TestClientMessages(t *testing.T) {
	client := NewClient(NewHub(2), nil)

	client.handleClientMessage([]byte(`{"action":"ping"}`))
	typ, _ := receive(t, client)
	assert.Equal(t, "pong", typ)

	client.handleClientMessage([]byte(`{"action":"subscribe","data":{"patterns":["SELECT*"],"top_n":1}}`))
	typ, data := receive(t, client)
	assert.Equal(t, "subscribed", typ)
	assert.JSONEq(t, `{"patterns":["SELECT*"],"excludes":null,"top_n":1,"total":false,"max_rate":0}`, string(data))

	client.ProcessSummary(testSummary(1))
	assert.Equal(t, []QueryCount{{"SELECT * FROM orders WHERE id = N", 5}}, receiveSummary(t, client).Queries)

	client.handleClientMessage([]byte(`{"action":"update","data":{"patterns":["[oops"]}}`))
	typ, data = receive(t, client)
	assert.Equal(t, "error", typ)
	assert.Contains(t, string(data), "bad_subscription")

	client.handleClientMessage([]byte(`{"action":"dance"}`))
	typ, data = receive(t, client)
	assert.Equal(t, "error", typ)
	assert.Contains(t, string(data), "unknown_action")

	client.handleClientMessage([]byte(`not json`))
	typ, data = receive(t, client)
	assert.Equal(t, "error", typ)
	assert.Contains(t, string(data), "bad_message")

	client.handleClientMessage([]byte(`{"action":"stats"}`))
	typ, data = receive(t, client)
	assert.Equal(t, "stats", typ)
	assert.Contains(t, string(data), `"max_clients":2`)
}

func TestHubBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(1)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	first := NewClient(hub, nil)
	require.True(t, hub.Register(first))
	hub.PublishSummary(testSummary(1))
	assert.Equal(t, int64(1), receiveSummary(t, first).Tick)
	assert.Equal(t, 1, hub.GetStats()["connected_clients"])

	// over the limit: told so, then closed
	second := NewClient(hub, nil)
	require.True(t, hub.Register(second))
	typ, data := receive(t, second)
	assert.Equal(t, "error", typ)
	assert.Contains(t, string(data), "too_many_clients")
	_, ok := <-second.send
	assert.False(t, ok)

	cancel()
	<-stopped
	_, ok = <-first.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.clientCount())

	// a stopped hub refuses new clients and ignores leaving ones
	assert.False(t, hub.Register(NewClient(hub, nil)))
	hub.Unregister(first)
}

func TestHubUnregister(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(4)
	go hub.Run(ctx)

	client := NewClient(hub, nil)
	require.True(t, hub.Register(client))
	hub.Unregister(client)

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.clientCount())
}
