package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

// RawLogSink receives every raw query the profiler aggregates, and the
// cumulative summary when the profiler stops
type RawLogSink interface {
	// RecordTick stores the samples of one tick
	RecordTick(samples []Sample) error
	// Close writes the final summary and releases the sink
	Close(total []QueryCount) error
}

// TextRawLog writes raw queries to a text file, one per line
type TextRawLog struct {
	file *os.File
	w    *bufio.Writer
}

// CreateTextRawLog truncates or creates path
func CreateTextRawLog(path string) (*TextRawLog, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create raw log: %w", err)
	}
	return &TextRawLog{file: file, w: bufio.NewWriter(file)}, nil
}

// RecordTick appends the raw queries and flushes, so the file can be followed
func (l *TextRawLog) RecordTick(samples []Sample) error {
	for _, s := range samples {
		if _, err := l.w.WriteString(s.Query); err != nil {
			return err
		}
		if err := l.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return l.w.Flush()
}

// Close appends the "Summary" section and closes the file
func (l *TextRawLog) Close(total []QueryCount) error {
	_, err := fmt.Fprint(l.w, "\nSummary\n---\n")
	if err == nil {
		err = showSummary(l.w, total, 0)
	}
	if err == nil {
		err = l.w.Flush()
	}
	return errors.Join(err, l.file.Close())
}

// multiRawLog fans out to several sinks
type multiRawLog []RawLogSink

func (m multiRawLog) RecordTick(samples []Sample) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.RecordTick(samples))
	}
	return errors.Join(errs...)
}

func (m multiRawLog) Close(total []QueryCount) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.Close(total))
	}
	return errors.Join(errs...)
}

// combineRawLogs returns nil for no sinks, the sink itself for one
func combineRawLogs(sinks ...RawLogSink) RawLogSink {
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return multiRawLog(sinks)
	}
}
