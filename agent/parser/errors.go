// SPDX-License-Identifier: MIT

package parser

// ParseError classifies why a line could not be parsed.
type ParseError uint8

const (
	// InvalidFormat means the line does not have the Common Log Format shape.
	InvalidFormat ParseError = iota + 1
	// InvalidTimestamp means the bracketed timestamp does not match TimestampLayout.
	InvalidTimestamp
	// InvalidStatus means the status is not a valid 16-bit unsigned integer.
	InvalidStatus
	// InvalidSize means the size is not a valid 64-bit unsigned integer.
	InvalidSize
)

// Kinds lists every ParseError value in validation order.
var Kinds = [...]ParseError{InvalidFormat, InvalidTimestamp, InvalidStatus, InvalidSize}

func (e ParseError) Error() string {
	switch e {
	case InvalidFormat:
		return "invalid log format"
	case InvalidTimestamp:
		return "invalid timestamp"
	case InvalidStatus:
		return "invalid status code"
	case InvalidSize:
		return "invalid size"
	default:
		return "unknown parse error"
	}
}

// Name returns a short identifier for the error kind, suitable for log keys.
func (e ParseError) Name() string {
	switch e {
	case InvalidFormat:
		return "format"
	case InvalidTimestamp:
		return "timestamp"
	case InvalidStatus:
		return "status"
	case InvalidSize:
		return "size"
	default:
		return "unknown"
	}
}
