package main

import (
	"fmt"
	"time"
)

// QueryCount is one row of a ranked summary: a normalized query and how
// often it was seen
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// String returns the summary line format, e.g. "  12 SELECT * FROM t WHERE id = N"
func (qc QueryCount) String() string {
	return fmt.Sprintf("%4d %s", qc.Count, qc.Query)
}

// Sample is one raw query observed during a tick
type Sample struct {
	Tick       int64     `json:"tick"`       // tick number, starting at 1
	Timestamp  time.Time `json:"timestamp"`  // when the process list was fetched
	Query      string    `json:"query"`      // raw query text as reported by the server
	Normalized string    `json:"normalized"` // normalizeQuery(Query)
}

// TickSummary is the immutable view published after every tick
type TickSummary struct {
	Tick      int64        `json:"tick"`
	Timestamp time.Time    `json:"timestamp"`
	Window    int          `json:"window"`  // window cap in ticks, 0 = unbounded
	Samples   int          `json:"samples"` // queries aggregated during this tick
	Top       []QueryCount `json:"top"`     // windowed top-K
	Total     []QueryCount `json:"total"`   // cumulative top-K since start
}

// String returns a one-line description used in verbose logging
func (ts *TickSummary) String() string {
	return fmt.Sprintf("Tick:%d | Samples:%d | Window:%d | Shapes:%d", ts.Tick, ts.Samples, ts.Window, len(ts.Top))
}
