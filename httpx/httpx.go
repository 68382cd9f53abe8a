// Package httpx holds the JSON plumbing shared by the inventory API and its
// HTTP client store.
package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// ErrorBody is the payload of every non-2xx inventory response. Field names
// the tree attribute that failed validation and is empty otherwise.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// DecodeJSON decodes a single tree payload from the request body. Unknown
// attributes and trailing data are rejected so misspelled keys such as
// "estdo" never pass silently.
func DecodeJSON(r *http.Request, dest any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("payload over %d bytes", tooLarge.Limit)
		}
		return err
	}
	if decoder.More() {
		return errors.New("unexpected data after JSON payload")
	}
	return nil
}

// WriteJSON serializes v as JSON with the provided status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Error: message})
}

// FieldError reports a rejected attribute so forms can highlight it.
func FieldError(w http.ResponseWriter, status int, field, message string) {
	WriteJSON(w, status, ErrorBody{Error: message, Field: field})
}

// LimitBody caps request bodies at limit bytes. Images travel inline as data
// URLs, so the limit has to leave room for them.
func LimitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
