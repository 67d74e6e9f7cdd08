package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aryan0dhankhar/admindash/internal/domain"
)

const maxRequestBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.InvalidInput("Request body is required")
		}
		return domain.InvalidInput("Invalid request body")
	}
	return nil
}
