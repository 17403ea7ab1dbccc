package respond

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"cuttracker/infrastructure/sheets"
)

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode json response failed", slog.Any("err", err))
	}
}

// OK writes {"ok": true} merged with fields.
func OK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	JSON(w, http.StatusOK, body)
}

func Error(w http.ResponseWriter, status int, kind, message string) {
	JSON(w, status, ErrorBody{Error: kind, Message: message})
}

// StatusFor maps store errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, sheets.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sheets.ErrOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sheets.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// StoreError writes err as an API error. Storage failures are logged and
// their detail is not sent to the client.
func StoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("api request failed", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("err", err))
		msg = "storage failure"
	}
	Error(w, status, sheets.Kind(err), msg)
}

// Decode reads a JSON body into dst. An empty body leaves dst untouched.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// IDParam parses a positive integer URL parameter.
func IDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// IndexParam parses a sheet index URL parameter. Negative values parse so the
// store can report them as out of range.
func IndexParam(r *http.Request, name string) (int, bool) {
	idx, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		return 0, false
	}
	return idx, true
}
