// SPDX-License-Identifier: MIT

// Package sink writes parsed log entries to an output stream.
package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kolapsis/clf-agent/agent/parser"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the supported output formats.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

// Sink receives parsed entries.
// Implementations are safe for concurrent use.
type Sink interface {
	Write(entry parser.LogEntry) error
}

// New creates a sink writing to w in the given format.
func New(format string, w io.Writer) (Sink, error) {
	switch format {
	case FormatText:
		return &textSink{w: w}, nil
	case FormatJSON:
		return &jsonSink{enc: json.NewEncoder(w)}, nil
	case FormatYAML:
		return &yamlSink{w: w}, nil
	default:
		return nil, &UnsupportedFormatError{Format: format}
	}
}

// UnsupportedFormatError is returned when an unsupported format is requested.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return "unsupported output format: " + e.Format
}

type textSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *textSink) Write(entry parser.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintln(s.w, entry.String())
	return err
}

// jsonSink writes one JSON object per line.
type jsonSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (s *jsonSink) Write(entry parser.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(entry); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// yamlSink writes a stream of YAML documents. A fresh encoder per entry keeps
// every document flushed as soon as it is written.
type yamlSink struct {
	mu      sync.Mutex
	w       io.Writer
	written bool
}

func (s *yamlSink) Write(entry parser.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.written {
		if _, err := io.WriteString(s.w, "---\n"); err != nil {
			return err
		}
	}

	enc := yaml.NewEncoder(s.w)
	enc.SetIndent(2)
	if err := enc.Encode(entry); err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}

	s.written = true
	return nil
}

// Func adapts a function to the Sink interface.
type Func func(entry parser.LogEntry) error

// Write calls f(entry).
func (f Func) Write(entry parser.LogEntry) error {
	return f(entry)
}

// Discard is a Sink that drops every entry.
var Discard Sink = Func(func(parser.LogEntry) error { return nil })
