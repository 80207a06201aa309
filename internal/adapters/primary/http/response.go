package http

import (
	"encoding/json"
	"net/http"

	"github.com/lorrc/field-metrics/internal/infrastructure/logging"
)

// DataResponse is the envelope for a single report. RequestID lets a client
// quote the log line that produced it.
type DataResponse struct {
	Data      any    `json:"data"`
	RequestID string `json:"request_id,omitempty"`
}

// ListResponse is the envelope for unpaginated lists.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// WriteJSON sets the content type and status, then encodes v.
// Encoding errors are dropped; the status line is already out.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData answers 200 with data wrapped in a DataResponse.
func WriteData(w http.ResponseWriter, r *http.Request, data any) {
	WriteJSON(w, http.StatusOK, DataResponse{
		Data:      data,
		RequestID: logging.GetRequestID(r.Context()),
	})
}

func WriteList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	WriteJSON(w, http.StatusOK, ListResponse[T]{Data: items, Count: len(items)})
}
