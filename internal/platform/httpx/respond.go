// Package httpx provides JSON response utilities shared by all handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the standard response body for API endpoints.
type Envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Context map[string]any `json:"-"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a success envelope wrapping data.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// Fail sends a failure envelope with message plus arbitrary context fields
// merged at the top level of the body.
func Fail(w http.ResponseWriter, status int, message string, context map[string]any) {
	body := map[string]any{
		"success": false,
		"message": message,
	}
	for k, v := range context {
		if k == "success" || k == "message" {
			continue
		}
		body[k] = v
	}
	JSON(w, status, body)
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
