package core

// # Error Codes Reference
//
// Every error that reaches a client carries a stable category, a detail
// message and a code that can be quoted to operators.
//
//	VAL001 - Validation failed: a query parameter or path value is unusable
//	NF001  - Country not found: no record matches the request
//	UPS001 - External data source unavailable: the attributes provider failed
//	REF001 - Refresh in progress: another cycle held the lock past the wait limit
//	DB001  - Unique constraint: a record with this name already exists
//	DB004  - Connection refused: unable to connect to database
//	DB005  - Connection reset: database connection was interrupted
//	DB006  - Timeout: the database did not answer in time
//	DB007  - Deadlock: the database was busy with conflicting operations
//	CTX001 - Request cancelled
//	CTX002 - Request timed out
//	ERR000 - Internal server error (check logs for the original error)
//
// Sentinel matches (errors.Is) take priority. Storage failures are then
// refined by matching the driver text case-insensitively; the first pattern
// wins.

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUpstreamUnavailable is returned when the attributes provider cannot
	// be reached or answers with an unusable payload. No write happens.
	ErrUpstreamUnavailable = errors.New("external data source unavailable")

	// ErrInvalidParameter is returned for unusable client input.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("country not found")

	// ErrStorage wraps every persistent store failure.
	ErrStorage = errors.New("storage failure")

	// ErrRefreshInProgress is returned when another refresh holds the lock
	// for longer than the configured wait.
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

// detailError pairs a sentinel with a message that is safe to show clients.
type detailError struct {
	kind   error
	detail string
}

func (e *detailError) Error() string { return e.kind.Error() + ": " + e.detail }
func (e *detailError) Unwrap() error { return e.kind }

func invalidParameter(format string, args ...any) error {
	return &detailError{kind: ErrInvalidParameter, detail: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &detailError{kind: ErrNotFound, detail: fmt.Sprintf(format, args...)}
}

// UserMessage describes an error in client-facing terms.
type UserMessage struct {
	Category string // Stable error category
	Message  string // What happened
	Code     string // Reference code
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrInvalidParameter, UserMessage{Category: "Validation failed", Message: "Invalid request parameter", Code: "VAL001"}},
	{ErrNotFound, UserMessage{Category: "Country not found", Message: "No country matches the request", Code: "NF001"}},
	{ErrUpstreamUnavailable, UserMessage{Category: "External data source unavailable", Message: "Could not fetch data from the countries provider", Code: "UPS001"}},
	{ErrRefreshInProgress, UserMessage{Category: "Refresh in progress", Message: "Another refresh is running, try again shortly", Code: "REF001"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns refine storage and transport failures by driver text.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{Category: "Internal server error", Message: "A record with this name already exists", Code: "DB001"}},
	{"violates unique", UserMessage{Category: "Internal server error", Message: "A record with this name already exists", Code: "DB001"}},
	{"connection refused", UserMessage{Category: "Internal server error", Message: "Unable to connect to database", Code: "DB004"}},
	{"connection reset", UserMessage{Category: "Internal server error", Message: "Database connection was interrupted", Code: "DB005"}},
	{"deadlock", UserMessage{Category: "Internal server error", Message: "Database was busy with conflicting operations", Code: "DB007"}},
	{"context canceled", UserMessage{Category: "Internal server error", Message: "Request was cancelled", Code: "CTX001"}},
	{"context deadline exceeded", UserMessage{Category: "Internal server error", Message: "Request timed out", Code: "CTX002"}},
	{"timeout", UserMessage{Category: "Internal server error", Message: "The database did not answer in time", Code: "DB006"}},
}

var defaultMessage = UserMessage{
	Category: "Internal server error",
	Message:  "An unexpected error occurred",
	Code:     "ERR000",
}

// MapError converts an error into its client-facing description.
//
//	msg := MapError(fmt.Errorf("lookup: %w", ErrNotFound))
//	// msg.Code == "NF001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if !errors.Is(err, sm.target) {
			continue
		}
		msg := sm.msg
		var de *detailError
		if errors.As(err, &de) && de.detail != "" {
			msg.Message = de.detail
		}
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}
