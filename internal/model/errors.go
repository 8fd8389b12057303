package model

import "errors"

// Pipeline error classes. Fetch and parse errors are fatal to a revision
// pair; resolution and format errors only skip one row.
var (
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
	ErrParse               = errors.New("snapshot parse failed")
	ErrResolutionMiss      = errors.New("reification id not found")
	ErrFormat              = errors.New("term cannot be rendered")
)

// DiagnosticKindFor maps a pipeline error to its diagnostic kind
func DiagnosticKindFor(err error) DiagnosticKind {
	switch {
	case errors.Is(err, ErrSnapshotUnavailable):
		return DiagFetchError
	case errors.Is(err, ErrParse):
		return DiagParseError
	case errors.Is(err, ErrResolutionMiss):
		return DiagResolutionMiss
	case errors.Is(err, ErrFormat):
		return DiagFormatError
	default:
		return DiagFetchError
	}
}
