package api

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// PageParams are the cursor/limit query parameters of the paged log views.
// Cursor is a byte offset into the log.
type PageParams struct {
	Cursor int64
	Limit  int
}

func ValidationError(details map[string]string) *APIError {
	return &APIError{
		Status: http.StatusBadRequest,
		Err: Error{
			Code:    "validation_error",
			Message: "invalid query parameters",
			Details: details,
		},
	}
}

// PageParamsFromQuery reports every bad parameter at once and clamps limit
// to maxLimit.
func PageParamsFromQuery(q url.Values, defaultLimit, maxLimit int) (PageParams, *APIError) {
	p := PageParams{Limit: defaultLimit}
	details := map[string]string{}

	if s := strings.TrimSpace(q.Get("cursor")); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			details["cursor"] = "must be a non-negative integer"
		} else {
			p.Cursor = v
		}
	}

	if s := strings.TrimSpace(q.Get("limit")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			details["limit"] = "must be a positive integer"
		} else {
			p.Limit = v
		}
	}

	if len(details) > 0 {
		return PageParams{}, ValidationError(details)
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p, nil
}

// Enum returns q[key] when it is one of allowed, def when the key is absent.
func Enum(q url.Values, key, def string, allowed ...string) (string, *APIError) {
	v := strings.ToLower(strings.TrimSpace(q.Get(key)))
	if v == "" {
		return def, nil
	}
	if !slices.Contains(allowed, v) {
		return "", ValidationError(map[string]string{key: "must be one of " + strings.Join(allowed, ", ")})
	}
	return v, nil
}
