// SPDX-License-Identifier: MIT

package parser

import (
	"fmt"
	"time"
)

// LogEntry is a parsed access log record.
type LogEntry struct {
	IP        string    `json:"ip" yaml:"ip"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"` // always UTC
	Method    string    `json:"method" yaml:"method"`
	Path      string    `json:"path" yaml:"path"`
	Status    uint16    `json:"status" yaml:"status"`
	Size      uint64    `json:"size" yaml:"size"`
}

// String returns the entry on a single line.
func (e LogEntry) String() string {
	return fmt.Sprintf("%s %s %s %s %d %d",
		e.IP, e.Timestamp.Format(time.RFC3339), e.Method, e.Path, e.Status, e.Size)
}

// Fields holds the raw text captured by Match.
type Fields struct {
	IP        string
	Timestamp string
	Method    string
	Path      string
	Protocol  string // matched but not part of LogEntry
	Status    string
	Size      string
}
