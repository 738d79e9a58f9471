package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/TALUS/internal/config"
	"github.com/copyleftdev/TALUS/internal/logging"
)

// testConfig creates a test configuration with default values.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{Environment: "test"}
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second
	cfg.Logging.Level = "debug"
	cfg.Logging.Output = "stdout"
	cfg.Solver.Epsilon = 1e-5
	cfg.Solver.MaxIterations = 0
	cfg.Solver.MaxLineSearch = 40
	return cfg
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.NewLogger(&logging.Config{
		Level:  "error",
		Output: "stderr",
	})
	require.NoError(t, err)
	return logger
}

func testServer(t *testing.T) (*Server, chi.Router) {
	t.Helper()

	srv := NewServer(testConfig(t), testLogger(t), nil)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

// waitForTerminal polls a job until it leaves the running states.
func waitForTerminal(t *testing.T, srv *Server, id string) *Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		srv.jobsMu.RLock()
		job := srv.jobs[id]
		status := job.Status
		srv.jobsMu.RUnlock()

		if status != "pending" && status != "running" {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return nil
}

func TestNewServer(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t), nil)
	assert.NotNil(t, srv)
}

func TestRegisterRoutes(t *testing.T) {
	_, r := testServer(t)

	// Match the router's route table directly: handlers such as the status
	// lookup answer 404 for unknown job ids, so a response code cannot
	// distinguish a missing route from a missing job.
	tests := []struct {
		method     string
		path       string
		registered bool
	}{
		{"POST", "/api/v1/minimize", true},
		{"GET", "/api/v1/status/123", true},
		{"DELETE", "/api/v1/minimization/123", true},
		{"POST", "/rpc", true},
		{"GET", "/api/v1/minimize", false},
		{"GET", "/healthz", false}, // registered in main, not here
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			assert.Equal(t, tt.registered, r.Match(rctx, tt.method, tt.path))
		})
	}
}

func TestStatusRouteServesExistingJob(t *testing.T) {
	srv, r := testServer(t)

	started, err := srv.startJob(minimizeRequest{Objective: "sphere", X0: []float64{3, -4}})
	require.NoError(t, err)
	id := started.(map[string]interface{})["job_id"].(string)
	waitForTerminal(t, srv, id)

	req := httptest.NewRequest("GET", "/api/v1/status/"+id, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, id, body["job_id"])
}

func TestMinimizeEndToEnd(t *testing.T) {
	srv, r := testServer(t)

	body, err := json.Marshal(map[string]interface{}{
		"objective": "rosenbrock",
		"x0":        []float64{0, 0},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/minimize", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var started map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&started))
	id, _ := started["job_id"].(string)
	require.NotEmpty(t, id)

	job := waitForTerminal(t, srv, id)
	assert.Equal(t, "completed", job.Status)

	// Status endpoint reports the result.
	req = httptest.NewRequest("GET", "/api/v1/status/"+id, nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.Equal(t, "completed", status["status"])

	result, ok := status["result"].(map[string]interface{})
	require.True(t, ok, "status should carry the solve result")
	assert.Equal(t, "converged", result["status"])

	x, ok := result["x"].([]interface{})
	require.True(t, ok)
	require.Len(t, x, 2)
	assert.InDelta(t, 1.0, x[0].(float64), 1e-3)
	assert.InDelta(t, 1.0, x[1].(float64), 1e-3)
}

func TestMinimizeValidation(t *testing.T) {
	_, r := testServer(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing objective", map[string]interface{}{"x0": []float64{0, 0}}},
		{"missing x0", map[string]interface{}{"objective": "sphere"}},
		{"empty x0", map[string]interface{}{"objective": "sphere", "x0": []float64{}}},
		{"unknown objective", map[string]interface{}{"objective": "nope", "x0": []float64{0}}},
		{"bad epsilon", map[string]interface{}{"objective": "sphere", "x0": []float64{1}, "epsilon": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(tt.body)
			require.NoError(t, err)

			req := httptest.NewRequest("POST", "/api/v1/minimize", bytes.NewReader(body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestJSONRPCMinimize(t *testing.T) {
	srv, r := testServer(t)

	rpc := func(method string, params interface{}) map[string]interface{} {
		body, err := json.Marshal(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"method":  method,
			"params":  []interface{}{params},
		})
		require.NoError(t, err)

		req := httptest.NewRequest("POST", "/rpc", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
		return response
	}

	response := rpc("minimize.start", map[string]interface{}{
		"objective": "sphere",
		"x0":        []float64{3, -4},
	})
	result, ok := response["result"].(map[string]interface{})
	require.True(t, ok, "response: %v", response)
	id, _ := result["job_id"].(string)
	require.NotEmpty(t, id)

	waitForTerminal(t, srv, id)

	response = rpc("minimize.status", map[string]interface{}{"job_id": id})
	status, ok := response["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "completed", status["status"])
}

func TestJSONRPCErrors(t *testing.T) {
	_, r := testServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode float64
	}{
		{"parse error", "{not json", -32700},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"minimize.start"}`, -32600},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"spline.reticulate"}`, -32601},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"minimize.start"}`, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/rpc", bytes.NewReader([]byte(tt.body)))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, tt.wantCode, errObj["code"])
		})
	}
}

func TestCancelFinishedJob(t *testing.T) {
	srv, r := testServer(t)

	body, err := json.Marshal(map[string]interface{}{
		"objective": "sphere",
		"x0":        []float64{1, 1},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/minimize", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var started map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&started))
	id := started["job_id"].(string)

	waitForTerminal(t, srv, id)

	req = httptest.NewRequest("DELETE", "/api/v1/minimization/"+id, nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "terminal jobs cannot be cancelled")
}

func TestCancelUnknownJob(t *testing.T) {
	_, r := testServer(t)

	req := httptest.NewRequest("DELETE", "/api/v1/minimization/min_404", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusUnknownJob(t *testing.T) {
	_, r := testServer(t)

	req := httptest.NewRequest("GET", "/api/v1/status/min_404", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestClose(t *testing.T) {
	srv, _ := testServer(t)
	assert.NoError(t, srv.Close())
}

func TestRespondWithError(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name    string
		code    int
		message string
		id      interface{}
	}{
		{"with id", -32000, "solver exploded", "123"},
		{"nil id", -32700, "parse error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id)

			assert.Equal(t, http.StatusOK, rr.Code)

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, float64(tt.code), errObj["code"])
			assert.Equal(t, tt.message, errObj["message"])
			assert.Equal(t, tt.id, response["id"])
		})
	}
}
