package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger(t *testing.T) {
	t.Run("logs the request ID set by the RequestID middleware", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(StructuredLogger(log))
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("pong"))
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "Request completed", entry["msg"])
		assert.NotEmpty(t, entry["req_id"])
		assert.EqualValues(t, http.StatusOK, entry["status"])
		assert.EqualValues(t, len("pong"), entry["bytes_written"])
	})

	t.Run("captures the handler status through the wrapped writer", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(StructuredLogger(log))
		r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.EqualValues(t, http.StatusNotFound, entry["status"])
		assert.NotEmpty(t, entry["req_id"])
	})
}
