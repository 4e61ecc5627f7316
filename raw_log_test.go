package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextRawLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.log")
	rawLog, err := CreateTextRawLog(path)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, rawLog.RecordTick([]Sample{
		{Tick: 1, Timestamp: now, Query: "SELECT 1", Normalized: "SELECT N"},
		{Tick: 1, Timestamp: now, Query: "SELECT 2", Normalized: "SELECT N"},
	}))

	// flushed after every tick
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1\nSELECT 2\n", string(content))

	require.NoError(t, rawLog.Close([]QueryCount{{"SELECT N", 2}}))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1\nSELECT 2\n\nSummary\n---\n   2 SELECT N\n", string(content))
}

func TestCreateTextRawLogError(t *testing.T) {
	_, err := CreateTextRawLog(filepath.Join(t.TempDir(), "missing", "raw.log"))
	assert.ErrorContains(t, err, "create raw log")
}

type recordingRawLog struct {
	samples []Sample
	total   []QueryCount
	closed  bool
	err     error
}

func (r *recordingRawLog) RecordTick(samples []Sample) error {
	r.samples = append(r.samples, samples...)
	return r.err
}

func (r *recordingRawLog) Close(total []QueryCount) error {
	r.total = total
	r.closed = true
	return r.err
}

func TestCombineRawLogs(t *testing.T) {
	assert.Nil(t, combineRawLogs())

	one := &recordingRawLog{}
	assert.Same(t, one, combineRawLogs(one))

	failing := &recordingRawLog{err: errors.New("disk full")}
	multi := combineRawLogs(one, failing)
	err := multi.RecordTick([]Sample{{Query: "q"}})
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, one.samples, 1)
	assert.Len(t, failing.samples, 1)

	err = multi.Close([]QueryCount{{"q", 1}})
	assert.ErrorContains(t, err, "disk full")
	assert.True(t, one.closed)
	assert.True(t, failing.closed)
	assert.Equal(t, []QueryCount{{"q", 1}}, one.total)
}
