package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// StdoutSink appends events to w as newline-delimited JSON. Intended
// for w == os.Stdout in development; production deployments typically
// prefer FileSink or ship stdout to a log aggregator.
type StdoutSink struct {
	mu sync.Mutex
	w  io.Writer
	enc *json.Encoder
}

// NewStdoutSink builds a Sink writing to w.
func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{w: w, enc: json.NewEncoder(w)}
}

// Append writes each event as one JSON line. It stops at the first
// encode or write error and returns it.
func (s *StdoutSink) Append(_ context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if err := s.enc.Encode(e); err != nil {
			return fmt.Errorf("encode audit event: %w", err)
		}
	}
	return nil
}

// FileSink appends events as newline-delimited JSON to a file opened
// in append mode, flushed on every call.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
}

// NewFileSink opens (creating if necessary) the file at path for
// append.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &FileSink{f: f, enc: json.NewEncoder(f)}, nil
}

// Append writes each event as one JSON line and syncs to disk.
func (s *FileSink) Append(_ context.Context, events ...Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if err := s.enc.Encode(e); err != nil {
			return fmt.Errorf("encode audit event: %w", err)
		}
	}
	return s.f.Sync()
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// NewSinkFromOutput builds a Sink from a config.AuditConfig.Output
// value ("stdout" or "file://<absolute-path>"), matching the format
// internal/config's audit_output validator accepts.
func NewSinkFromOutput(output string) (Sink, error) {
	if output == "stdout" || output == "" {
		return NewStdoutSink(os.Stdout), nil
	}
	if path, ok := strings.CutPrefix(output, "file://"); ok {
		return NewFileSink(path)
	}
	return nil, fmt.Errorf("unrecognized audit output: %q", output)
}
