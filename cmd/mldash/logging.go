package main

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	logLevel  string
	logFile   string
	logFormat string

	logger  = zerolog.Nop()
	logSink = &heldWriter{out: os.Stderr}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "trace, debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "console or json")
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrap(err, "log level")
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}
		logSink = &heldWriter{out: f}
	}

	var w io.Writer = logSink
	switch logFormat {
	case "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: logSink, TimeFormat: time.Kitchen, NoColor: logFile != ""}
	default:
		return errors.Errorf("unknown log format %q", logFormat)
	}
	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return nil
}

// holdLogs buffers log output while a full-screen UI owns the terminal.
// A log file is never held.
func holdLogs() {
	if logFile == "" {
		logSink.hold()
	}
}

func flushLogs() {
	logSink.release()
}

type heldWriter struct {
	mu   sync.Mutex
	out  io.Writer
	held bool
	buf  bytes.Buffer
}

func (w *heldWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.held {
		return w.buf.Write(p)
	}
	return w.out.Write(p)
}

func (w *heldWriter) hold() {
	w.mu.Lock()
	w.held = true
	w.mu.Unlock()
}

func (w *heldWriter) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.held = false
	if w.buf.Len() > 0 {
		_, _ = w.out.Write(w.buf.Bytes())
		w.buf.Reset()
	}
}
