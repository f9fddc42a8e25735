package controllertraits

import (
	"encoding/json"
	"net/http"
)

// Pagination describes a paginated listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// WriteResponse writes data as a JSON 200 response.
func WriteResponse(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSON writes data as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteErrorResponse writes a JSON error envelope.
func WriteErrorResponse(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// WriteUnavailableResponse writes the degraded envelope used when a
// fresh query failed and no cached response exists.
func WriteUnavailableResponse(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
		"success": false,
		"error":   message,
		"source":  "unavailable",
	})
}

// WritePaginatedResponse writes a data page with pagination metadata.
func WritePaginatedResponse(w http.ResponseWriter, data interface{}, p Pagination) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       data,
		"pagination": p,
	})
}
