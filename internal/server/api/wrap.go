package api

import (
	"encoding/json"
	"net/http"
)

// Error is the error half of the response envelope.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"` // per-parameter problems
}

// Response is the {ok,data,error} envelope every JSON view returns.
type Response struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

type APIError struct {
	Status int
	Err    Error
}

type Handler func(r *http.Request) (any, *APIError)

// WriteJSON writes v as the whole response body, without the envelope.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Wrap(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, apiErr := h(r)
		if apiErr != nil {
			WriteJSON(w, apiErr.Status, Response{OK: false, Error: &apiErr.Err})
			return
		}
		WriteJSON(w, http.StatusOK, Response{OK: true, Data: data})
	}
}

func WrapMethod(method string, h Handler) http.HandlerFunc {
	return Wrap(func(r *http.Request) (any, *APIError) {
		if r.Method != method {
			return nil, &APIError{
				Status: http.StatusMethodNotAllowed,
				Err:    Error{Code: "method_not_allowed", Message: "method not allowed"},
			}
		}
		return h(r)
	})
}

func Internal(msg string) *APIError {
	return &APIError{
		Status: http.StatusInternalServerError,
		Err:    Error{Code: "internal_error", Message: msg},
	}
}
