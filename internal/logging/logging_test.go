package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  LogLevel
	}{
		{"lowercase", "debug", DebugLevel},
		{"uppercase", "ERROR", ErrorLevel},
		{"mixed case", "Warn", WarnLevel},
		{"unknown falls back to info", "verbose", InfoLevel},
		{"empty falls back to info", "", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(&Config{Level: tt.level, Output: "stderr"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.level)
		})
	}
}

func TestNewLoggerNilConfig(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, logger.level)
	assert.Equal(t, os.Stderr, logger.output)
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")

	logger, err := NewLogger(&Config{Level: "info", Output: path})
	require.NoError(t, err)

	logger.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewLoggerBadOutputPath(t *testing.T) {
	_, err := NewLogger(&Config{Level: "info", Output: filepath.Join(t.TempDir(), "missing", "dir", "out.log")})
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, &buf)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestFromContextDefault(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, InfoLevel, logger.level)
}

func TestWithContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	stored := &CtxLogger{New(DebugLevel, &buf)}

	ctx := stored.WithContext(context.Background())
	assert.Same(t, stored, FromContext(ctx))
}

func TestMiddlewareStoresRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DebugLevel, &buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(logger))
	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
		FromContext(req.Context()).Info("handled ping")
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/ping", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	// The handler's entry must carry the request-scoped fields attached
	// by the middleware, not come from a fallback logger.
	var entry map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var e map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &e))
		if e["message"] == "handled ping" {
			entry = e
		}
	}
	require.NotNil(t, entry, "handler log entry not found")
	assert.Equal(t, "/ping", entry["path"])
	assert.NotEmpty(t, entry["request_id"])
}
