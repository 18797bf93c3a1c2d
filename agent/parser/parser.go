// SPDX-License-Identifier: MIT

// Package parser parses Common Log Format access log lines.
//
// Parsing runs in two stages. Match checks the overall shape of a line and
// captures its fields as text. Fields.Convert validates and converts those
// captures into a LogEntry. Parse runs both.
package parser

import (
	"regexp"
	"strconv"
	"time"
)

// TimestampLayout is the layout of the bracketed timestamp, e.g.
// "01/Jan/2024:12:00:00 +0000".
const TimestampLayout = "02/Jan/2006:15:04:05 -0700"

// clfPattern matches a whole line:
//
//	<ip> - - [<timestamp>] "<method> <path> <protocol>" <status> <size>
var clfPattern = regexp.MustCompile(
	`^(?P<ip>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}) - - ` +
		`\[(?P<timestamp>[^\[\]]+)\] ` +
		`"(?P<method>[^ "]+) (?P<path>/[^"]*) (?P<protocol>[^ "]+)" ` +
		`(?P<status>\d{3}) (?P<size>.+)$`,
)

// timestampShape is the exact shape of TimestampLayout, which time.Parse
// alone does not enforce.
var timestampShape = regexp.MustCompile(`^\d{2}/[A-Za-z]{3}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4}$`)

var (
	ipIndex        = clfPattern.SubexpIndex("ip")
	timestampIndex = clfPattern.SubexpIndex("timestamp")
	methodIndex    = clfPattern.SubexpIndex("method")
	pathIndex      = clfPattern.SubexpIndex("path")
	protocolIndex  = clfPattern.SubexpIndex("protocol")
	statusIndex    = clfPattern.SubexpIndex("status")
	sizeIndex      = clfPattern.SubexpIndex("size")
)

// Parse parses a single log line.
// On failure the returned error is one of InvalidFormat, InvalidTimestamp,
// InvalidStatus or InvalidSize, and the LogEntry is the zero value.
func Parse(line string) (LogEntry, error) {
	f, err := Match(line)
	if err != nil {
		return LogEntry{}, err
	}
	return f.Convert()
}

// Match checks that line has the Common Log Format shape and returns the
// captured fields without validating their content.
// Returns InvalidFormat if the line does not match.
func Match(line string) (Fields, error) {
	m := clfPattern.FindStringSubmatch(line)
	if m == nil {
		return Fields{}, InvalidFormat
	}

	return Fields{
		IP:        m[ipIndex],
		Timestamp: m[timestampIndex],
		Method:    m[methodIndex],
		Path:      m[pathIndex],
		Protocol:  m[protocolIndex],
		Status:    m[statusIndex],
		Size:      m[sizeIndex],
	}, nil
}

// Convert validates the captured fields and builds a LogEntry.
// Fields are checked in order: timestamp, status, size. The first failure
// is returned.
func (f Fields) Convert() (LogEntry, error) {
	ts, err := parseTimestamp(f.Timestamp)
	if err != nil {
		return LogEntry{}, InvalidTimestamp
	}

	status, err := strconv.ParseUint(f.Status, 10, 16)
	if err != nil {
		return LogEntry{}, InvalidStatus
	}

	size, err := strconv.ParseUint(f.Size, 10, 64)
	if err != nil {
		return LogEntry{}, InvalidSize
	}

	return LogEntry{
		IP:        f.IP,
		Timestamp: ts.UTC(),
		Method:    f.Method,
		Path:      f.Path,
		Status:    uint16(status),
		Size:      size,
	}, nil
}

// parseTimestamp parses s with TimestampLayout, requiring two-digit day and
// time components and an offset below 24 hours with minutes below 60.
func parseTimestamp(s string) (time.Time, error) {
	if !timestampShape.MatchString(s) {
		return time.Time{}, InvalidTimestamp
	}

	offset := s[len(s)-4:]
	hours, _ := strconv.Atoi(offset[:2])
	minutes, _ := strconv.Atoi(offset[2:])
	if hours >= 24 || minutes >= 60 {
		return time.Time{}, InvalidTimestamp
	}

	return time.Parse(TimestampLayout, s)
}
