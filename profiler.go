package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"
)

// ProfilerConfig holds the sampling settings
type ProfilerConfig struct {
	NumSummary int           // rows per summary (top-K)
	Limit      int           // window length in ticks, 0 = since start
	Interval   time.Duration // pause between two samples
	Delay      int           // print the summary every Delay ticks
	Verbose    bool
}

// SummaryPublisher is told about every tick, e.g. the websocket hub
type SummaryPublisher interface {
	PublishSummary(summary *TickSummary)
}

// Profiler samples a QuerySource, aggregates the normalized queries and
// prints the ranking after every tick. The collectors belong to the
// goroutine running Run; other goroutines only see published snapshots.
type Profiler struct {
	cfg        ProfilerConfig
	source     QuerySource
	filter     *QueryFilter
	window     Collector
	total      *SummingCollector
	out        io.Writer
	rawLog     RawLogSink
	publishers []SummaryPublisher

	tick   int64
	latest atomic.Pointer[TickSummary]

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewProfiler initializes a `Profiler` printing to out; rawLog may be nil
func NewProfiler(cfg ProfilerConfig, source QuerySource, filter *QueryFilter, out io.Writer, rawLog RawLogSink) *Profiler {
	if cfg.Delay < 1 {
		cfg.Delay = 1
	}
	return &Profiler{
		cfg:    cfg,
		source: source,
		filter: filter,
		window: NewCollector(cfg.Limit),
		total:  NewSummingCollector(),
		out:    out,
		rawLog: rawLog,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// AddPublisher registers p to receive every tick summary; call before Run
func (p *Profiler) AddPublisher(pub SummaryPublisher) {
	p.publishers = append(p.publishers, pub)
}

// Latest returns the summary of the last tick, nil before the first one
func (p *Profiler) Latest() *TickSummary {
	return p.latest.Load()
}

// Config returns the sampling settings
func (p *Profiler) Config() ProfilerConfig {
	return p.cfg
}

// Run samples until ctx is cancelled or the source fails. Cancellation
// is a normal stop and returns nil. In every case the raw log receives
// the cumulative summary and is closed before Run returns.
func (p *Profiler) Run(ctx context.Context) (err error) {
	defer func() {
		if p.rawLog == nil {
			return
		}
		if cerr := p.rawLog.Close(topN(p.total.Summary(), p.cfg.NumSummary)); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close raw log: %w", cerr))
		}
	}()

	for {
		if err := p.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			return nil
		}
		p.window.Turn()
	}
}

// Step runs one tick: fetch, normalize and count, then summarize
func (p *Profiler) Step(ctx context.Context) error {
	queries, err := p.source.Fetch(ctx)
	if err != nil {
		return err
	}
	p.tick++
	now := p.now()

	samples := make([]Sample, 0, len(queries))
	for _, raw := range queries {
		if raw == "" || raw == ProcessListCommand || p.filter.Ignored(raw) {
			continue
		}
		normalized := normalizeQuery(raw)
		p.window.Append(normalized)
		p.total.Append(normalized)
		samples = append(samples, Sample{Tick: p.tick, Timestamp: now, Query: raw, Normalized: normalized})
	}

	if p.rawLog != nil {
		if err := p.rawLog.RecordTick(samples); err != nil {
			log.Printf("Error writing raw log: %v\n", err)
		}
	}

	summary := &TickSummary{
		Tick:      p.tick,
		Timestamp: now,
		Window:    p.cfg.Limit,
		Samples:   len(samples),
		Top:       topN(p.window.Summary(), p.cfg.NumSummary),
		Total:     topN(p.total.Summary(), p.cfg.NumSummary),
	}
	p.latest.Store(summary)
	for _, pub := range p.publishers {
		pub.PublishSummary(summary)
	}
	if p.cfg.Verbose {
		log.Println(summary.String())
	}

	if p.tick%int64(p.cfg.Delay) == 0 {
		if err := p.show(summary); err != nil {
			log.Printf("Error writing summary: %v\n", err)
		}
	}
	return nil
}

func (p *Profiler) show(summary *TickSummary) error {
	if _, err := fmt.Fprintln(p.out, "## ", summary.Timestamp.Local().Format("2006-01-02 15:04:05.00 -0700")); err != nil {
		return err
	}
	return showSummary(p.out, summary.Top, p.cfg.NumSummary)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
