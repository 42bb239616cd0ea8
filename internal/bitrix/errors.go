package bitrix

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// APIError means Bitrix24 answered but did not report success.
type APIError struct {
	Endpoint   string
	Domain     string
	StatusCode int
	Payload    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitrix %s rejected the request (status %d): %s", e.Endpoint, e.StatusCode, truncate(string(e.Payload), 200))
}

// TransportError covers timeouts, connection failures, 5xx answers and
// unreadable bodies. StatusCode is 0 when no response was received.
type TransportError struct {
	Endpoint   string
	Domain     string
	StatusCode int
	Message    string
	err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("bitrix %s: %s (status %d)", e.Endpoint, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("bitrix %s: %s", e.Endpoint, e.Message)
}

func (e *TransportError) Unwrap() error { return e.err }

func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
