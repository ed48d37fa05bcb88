// Package httpjson is the shared response envelope used by the API router,
// its middleware, and its handlers. It is a standalone leaf package (rather
// than living in internal/api) so middleware can write structured error
// bodies without importing the router package that wires it in.
package httpjson

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as an application/json body with the given status.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes {error, code?, ...extra} per spec §7's propagation policy:
// structured JSON, no stack traces, extra context (e.g. quotaBytes) merged
// flat into the top-level object.
func Error(w http.ResponseWriter, status int, message, code string, extra map[string]any) {
	body := map[string]any{"error": message}
	if code != "" {
		body["code"] = code
	}
	for k, v := range extra {
		body[k] = v
	}
	JSON(w, status, body)
}
