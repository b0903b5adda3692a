package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lazypower/memvault/internal/memory"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps engine errors onto HTTP status codes. Consistency errors
// are checked first because they may wrap an index or provider cause.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, memory.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, memory.ErrNotFound):
		return http.StatusNotFound
	case memory.IsInconsistency(err):
		return http.StatusInternalServerError
	case errors.Is(err, memory.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, memory.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, memory.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
}
