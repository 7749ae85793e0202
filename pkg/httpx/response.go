package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxJSONBody caps request bodies accepted by DecodeJSON.
const MaxJSONBody = 1 << 20

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the {"error": msg} body used by the storefront API.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, map[string]string{"error": msg})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Anything carrying tokens or session state must not be cached.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// DecodeJSON reads a single JSON object from the request body into dst and
// rejects trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxJSONBody))

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("httpx: decode body: %w", err)
	}
	if dec.More() {
		return errors.New("httpx: decode body: trailing data")
	}
	return nil
}
