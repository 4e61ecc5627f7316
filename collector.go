package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/emirpasic/gods/queues/circularbuffer"
)

// Collector accumulates normalized queries tick by tick and ranks them.
// A Collector is owned by a single goroutine; it does no locking.
type Collector interface {
	// Append counts one occurrence of query in the current tick
	Append(query string)
	// Turn closes the current tick and starts a new one
	Turn()
	// Summary ranks every query with a positive count, most frequent first.
	// Equal counts keep the order in which the queries were first seen.
	Summary() []QueryCount
}

// NewCollector returns a CappedCollector remembering the last limit ticks,
// or a SummingCollector when limit is 0
func NewCollector(limit int) Collector {
	if limit > 0 {
		return NewCappedCollector(limit)
	}
	return NewSummingCollector()
}

// tally is a table of positive counts that remembers first-seen order
type tally struct {
	counts map[string]int64
	seen   map[string]uint64
	seq    uint64
}

func newTally() *tally {
	return &tally{
		counts: make(map[string]int64),
		seen:   make(map[string]uint64),
	}
}

// add changes the count of query by delta, dropping it once it reaches 0
func (t *tally) add(query string, delta int64) {
	count := t.counts[query] + delta
	if count <= 0 {
		delete(t.counts, query)
		delete(t.seen, query)
		return
	}
	if _, ok := t.seen[query]; !ok {
		t.seq++
		t.seen[query] = t.seq
	}
	t.counts[query] = count
}

func (t *tally) summary() []QueryCount {
	ranked := make([]QueryCount, 0, len(t.counts))
	for q, c := range t.counts {
		ranked = append(ranked, QueryCount{Query: q, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return t.seen[ranked[i].Query] < t.seen[ranked[j].Query]
	})
	return ranked
}

// SummingCollector counts every query since start
type SummingCollector struct {
	totals *tally
}

// NewSummingCollector initializes an empty `SummingCollector`
func NewSummingCollector() *SummingCollector {
	return &SummingCollector{totals: newTally()}
}

// Append counts one occurrence of query
func (s *SummingCollector) Append(query string) {
	s.totals.add(query, 1)
}

// Turn is a noop, a SummingCollector never forgets
func (s *SummingCollector) Turn() {}

// Summary ranks all queries seen since start
func (s *SummingCollector) Summary() []QueryCount {
	return s.totals.summary()
}

// CappedCollector counts queries over the trailing `limit` ticks.
//
// The window is a ring of per-tick buckets, always full, whose newest
// bucket is `current`. Turn evicts the oldest bucket and subtracts its
// counts from `totals`, so the cost of a turn is the number of distinct
// queries of one tick, regardless of the window length.
type CappedCollector struct {
	limit   int
	totals  *tally
	window  *circularbuffer.Queue
	current map[string]int64
}

// NewCappedCollector initializes a `CappedCollector` with `limit` empty buckets
func NewCappedCollector(limit int) *CappedCollector {
	if limit < 1 {
		limit = 1
	}
	c := &CappedCollector{
		limit:  limit,
		totals: newTally(),
		window: circularbuffer.New(limit),
	}
	for b := 0; b < limit; b++ {
		c.current = make(map[string]int64)
		c.window.Enqueue(c.current)
	}
	return c
}

// Append counts one occurrence of query in the newest bucket
func (c *CappedCollector) Append(query string) {
	c.current[query]++
	c.totals.add(query, 1)
}

// Turn drops the oldest bucket from the totals and opens a new bucket
func (c *CappedCollector) Turn() {
	if oldest, ok := c.window.Dequeue(); ok {
		if bucket, ok := oldest.(map[string]int64); ok {
			for q, n := range bucket {
				c.totals.add(q, -n)
			}
		}
	}
	c.current = make(map[string]int64)
	c.window.Enqueue(c.current)
}

// Summary ranks the queries of the ticks still in the window
func (c *CappedCollector) Summary() []QueryCount {
	return c.totals.summary()
}

// Limit is the window length in ticks
func (c *CappedCollector) Limit() int {
	return c.limit
}

// buckets is the number of buckets in the ring, always `limit`
func (c *CappedCollector) buckets() int {
	return c.window.Size()
}

// topN cuts a ranked summary down to its first n rows; n <= 0 keeps all
func topN(ranked []QueryCount, n int) []QueryCount {
	if n > 0 && len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}

// showSummary writes the first n rows of ranked, one "%4d %s" line each
func showSummary(w io.Writer, ranked []QueryCount, n int) error {
	for _, qc := range topN(ranked, n) {
		if _, err := fmt.Fprintln(w, qc.String()); err != nil {
			return err
		}
	}
	return nil
}
