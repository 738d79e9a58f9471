// Package server exposes the conjugate-gradient minimizer as an HTTP and
// JSON-RPC 2.0 job service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/TALUS/internal/config"
	svcerrors "github.com/copyleftdev/TALUS/internal/errors"
	"github.com/copyleftdev/TALUS/internal/logging"
	"github.com/copyleftdev/TALUS/internal/optimization"
	"github.com/copyleftdev/TALUS/internal/optimization/conjgrad"
	"github.com/copyleftdev/TALUS/internal/optimization/objectives"
)

// Logger defines the logging interface used by the server, keeping the
// concrete implementation swappable.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Job tracks one minimization solve from submission to a terminal state.
// Fields are guarded by the server's job mutex.
type Job struct {
	ID          string
	Status      string // "pending", "running", "completed", "stopped", "cancelled", "failed"
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time

	// Live progress, updated once per solver iteration.
	Iterations  int
	Evaluations int
	Fx          float64
	GNorm       float64

	Result *optimization.Result
	Err    string

	cancel context.CancelFunc
}

// Server manages minimization jobs and serves their REST and JSON-RPC
// endpoints.
type Server struct {
	cfg       *config.Config
	logger    Logger
	solverLog *zap.Logger

	jobs   map[string]*Job
	jobsMu sync.RWMutex
}

// NewServer creates a server. solverLog receives the solver's debug
// output; pass nil to discard it.
func NewServer(cfg *config.Config, logger Logger, solverLog *zap.Logger) *Server {
	if solverLog == nil {
		solverLog = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		solverLog: solverLog,
		jobs:      make(map[string]*Job),
	}
}

// RegisterRoutes mounts the job API on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/minimize", s.handleMinimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/minimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// minimizeRequest is the payload starting a solve. Omitted tuning fields
// fall back to the server's configured defaults.
type minimizeRequest struct {
	Objective     string    `json:"objective"`
	X0            []float64 `json:"x0"`
	Epsilon       *float64  `json:"epsilon,omitempty"`
	MaxIterations *int      `json:"max_iterations,omitempty"`
	MaxLineSearch *int      `json:"max_linesearch,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      interface{}       `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "minimize.start":
		var req minimizeRequest
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.startJob(req)
		}
	case "minimize.status":
		var req struct {
			JobID string `json:"job_id"`
		}
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.jobStatus(req.JobID)
		}
	case "minimize.cancel":
		var req struct {
			JobID string `json:"job_id"`
		}
		if err = decodeParams(request.Params, &req); err == nil {
			err = s.cancelJob(req.JobID)
		}
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParams unmarshals the first positional JSON-RPC parameter into v.
func decodeParams(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing required parameters")
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return fmt.Errorf("invalid parameter format: %v", err)
	}
	return nil
}

// startJob validates a request and launches the solve in a goroutine.
func (s *Server) startJob(req minimizeRequest) (interface{}, error) {
	if req.Objective == "" {
		return nil, fmt.Errorf("objective is required")
	}
	if len(req.X0) == 0 {
		return nil, fmt.Errorf("x0 is required and must be non-empty")
	}

	obj, err := objectives.Lookup(req.Objective, len(req.X0))
	if err != nil {
		return nil, svcerrors.Wrap(err, "resolving objective").
			WithComponent("server").
			WithOperation("minimize.start")
	}

	params := conjgrad.DefaultParameters()
	params.Epsilon = s.cfg.Solver.Epsilon
	params.MaxIterations = s.cfg.Solver.MaxIterations
	params.MaxLineSearch = s.cfg.Solver.MaxLineSearch
	if req.Epsilon != nil {
		params.Epsilon = *req.Epsilon
	}
	if req.MaxIterations != nil {
		params.MaxIterations = *req.MaxIterations
	}
	if req.MaxLineSearch != nil {
		params.MaxLineSearch = *req.MaxLineSearch
	}

	id := fmt.Sprintf("min_%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())

	job := &Job{
		ID:          id,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		cancel:      cancel,
	}

	observer := optimization.ObserverFunc(func(p optimization.Progress) bool {
		s.jobsMu.Lock()
		job.Iterations = p.Iteration
		job.Evaluations = p.Evaluations
		job.Fx = p.Fx
		job.GNorm = p.GNorm
		job.LastUpdated = time.Now()
		s.jobsMu.Unlock()
		return true
	})

	solver, err := conjgrad.NewSolver(params,
		conjgrad.WithObserver(observer),
		conjgrad.WithLogger(s.solverLog.With(zap.String("job_id", id))),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	s.jobsMu.Lock()
	s.jobs[id] = job
	s.jobsMu.Unlock()

	x := append([]float64(nil), req.X0...)
	go s.runJob(ctx, job, solver, obj, x)

	return map[string]interface{}{
		"job_id": id,
		"status": "pending",
	}, nil
}

// runJob executes the solve and records its terminal state.
func (s *Server) runJob(ctx context.Context, job *Job, solver *conjgrad.Solver, obj optimization.Objective, x []float64) {
	solvesStarted.Inc()
	activeSolves.Inc()
	defer activeSolves.Dec()

	s.jobsMu.Lock()
	if job.Status == "pending" {
		job.Status = "running"
	}
	s.jobsMu.Unlock()

	result, err := solver.Minimize(ctx, obj, x)

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	// A cancel may have won the race while the solve was finishing.
	cancelled := job.Status == "cancelled"

	switch {
	case err != nil:
		job.Status = "failed"
		job.Err = err.Error()
		s.logger.Error("Minimization failed", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	case result.Status == optimization.StatusStopped:
		if !cancelled {
			job.Status = "stopped"
		}
	default:
		job.Status = "completed"
	}

	if result != nil {
		job.Result = result
		job.Iterations = result.Iterations
		job.Evaluations = result.Evaluations
		job.Fx = result.Fx
		job.GNorm = result.GNorm
		solveIterations.Observe(float64(result.Iterations))
		solvesFinished.WithLabelValues(result.Status.String()).Inc()
	} else {
		solvesFinished.WithLabelValues("error").Inc()
	}

	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now
}

// jobStatus builds the status payload for one job.
func (s *Server) jobStatus(id string) (interface{}, error) {
	if id == "" {
		return nil, fmt.Errorf("job_id is required")
	}

	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found")
	}

	response := map[string]interface{}{
		"job_id":      job.ID,
		"status":      job.Status,
		"iterations":  job.Iterations,
		"evaluations": job.Evaluations,
		"fx":          job.Fx,
		"gnorm":       job.GNorm,
		"start_time":  job.StartTime.Format(time.RFC3339),
		"last_update": job.LastUpdated.Format(time.RFC3339),
	}
	if job.EndTime != nil {
		response["end_time"] = job.EndTime.Format(time.RFC3339)
	}
	if job.Err != "" {
		response["error"] = job.Err
	}
	if job.Result != nil {
		response["result"] = map[string]interface{}{
			"status": job.Result.Status.String(),
			"x":      job.Result.X,
			"fx":     job.Result.Fx,
		}
	}
	return response, nil
}

// cancelJob requests cooperative cancellation of a running job.
func (s *Server) cancelJob(id string) error {
	if id == "" {
		return fmt.Errorf("job_id is required")
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found")
	}

	switch job.Status {
	case "completed", "stopped", "cancelled", "failed":
		return fmt.Errorf("cannot cancel job with status: %s", job.Status)
	}

	if job.cancel != nil {
		job.cancel()
	}
	job.Status = "cancelled"
	job.LastUpdated = time.Now()

	s.logger.Info("Minimization cancelled", map[string]interface{}{
		"job_id": id,
	})
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response.
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}

// Close cancels every in-flight job.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for _, job := range s.jobs {
		if job.cancel != nil {
			job.cancel()
		}
	}
	return nil
}

// handleMinimize handles POST /api/v1/minimize.
func (s *Server) handleMinimize(w http.ResponseWriter, r *http.Request) {
	var req minimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.startJob(req)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing job ID", http.StatusBadRequest)
		return
	}

	result, err := s.jobStatus(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles DELETE /api/v1/minimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing job ID", http.StatusBadRequest)
		return
	}

	err := s.cancelJob(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "cancellation requested"})
}
