package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// logWriter prefixes every log line with a timestamp
type logWriter struct {
	writer io.Writer
	now    func() time.Time
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	timestamp := w.now().Format("2006-01-02 15:04:05")
	if _, err := fmt.Fprintf(w.writer, "[%s] %s", timestamp, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// setupLogging sends the log to stderr and, when logFilePath is set, to a
// rotating file. The returned closer releases the file.
func setupLogging(logFilePath string) io.Closer {
	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)

	if logFilePath != "" {
		fileLogger := &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     0, // don't delete by age
			Compress:   false,
		}
		out = io.MultiWriter(os.Stderr, fileLogger)
		closer = fileLogger
	}

	log.SetOutput(&logWriter{writer: out, now: time.Now})
	log.SetFlags(0) // timestamps come from logWriter
	return closer
}
