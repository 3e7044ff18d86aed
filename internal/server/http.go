package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/transcript-worker/internal/config"
	"github.com/skypro1111/transcript-worker/internal/job"
	"github.com/skypro1111/transcript-worker/internal/metrics"
	"github.com/skypro1111/transcript-worker/internal/transcription"
	"github.com/skypro1111/transcript-worker/internal/worker"
)

// WorkerStats reports the live state of the job worker
type WorkerStats interface {
	Stats() worker.Stats
}

// ModelStats reports model client request statistics
type ModelStats interface {
	GetStats() transcription.ClientStats
}

// Pinger checks a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the components the monitoring endpoints read from.
// Worker is required; the rest may be nil.
type Dependencies struct {
	Config   *config.Config
	Worker   WorkerStats
	Models   ModelStats
	Jobs     job.JobStore
	Database Pinger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
}

// HTTPServer provides HTTP API endpoints for monitoring
type HTTPServer struct {
	server *http.Server
	logger *slog.Logger
	deps   Dependencies

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, deps Dependencies) *HTTPServer {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	h := &HTTPServer{
		logger:    logger,
		deps:      deps,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Job monitoring endpoints
	mux.HandleFunc("/jobs", h.withMetrics("/jobs", h.handleJobs))
	mux.HandleFunc("/jobs/", h.withMetrics("/jobs/{id}", h.handleJobDetail))

	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.HandleFunc("/stats/transcription", h.withMetrics("/stats/transcription", h.handleTranscriptionStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{}))

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// Handler returns the routed handler
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.deps.Metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.deps.Metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "healthy"
	code := http.StatusOK

	database := map[string]interface{}{"status": "not_configured"}
	if h.deps.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.deps.Database.Ping(ctx)
		cancel()
		if err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			database = map[string]interface{}{"status": "unreachable", "error": err.Error()}
		} else {
			database = map[string]interface{}{"status": "running"}
		}
	}

	workerStats := h.deps.Worker.Stats()
	components := map[string]interface{}{
		"database": database,
		"worker": map[string]interface{}{
			"status":      "running",
			"concurrency": workerStats.Concurrency,
			"active_jobs": len(workerStats.Active),
		},
	}
	if h.deps.Models != nil {
		modelStats := h.deps.Models.GetStats()
		components["transcription"] = map[string]interface{}{
			"status":          "running",
			"total_requests":  modelStats.TotalRequests,
			"success_rate":    modelStats.SuccessRate,
			"active_requests": modelStats.ActiveRequests,
		}
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "transcript-worker",
			"version": "1.0.0",
		},
		"components": components,
	})
}

// handleJobs implements the /jobs endpoint
func (h *HTTPServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := h.deps.Worker.Stats().Active
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_jobs": len(active),
		"timestamp":  time.Now().UTC(),
		"jobs":       active,
	})
}

// handleJobDetail implements the /jobs/{job_id} endpoint
func (h *HTTPServer) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	if h.deps.Jobs == nil {
		http.Error(w, "Job store not configured", http.StatusServiceUnavailable)
		return
	}

	j, err := h.deps.Jobs.Get(r.Context(), jobID)
	if errors.Is(err, job.ErrNotFound) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, j)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.deps.Config == nil {
		http.Error(w, "Configuration not available", http.StatusServiceUnavailable)
		return
	}

	// Connection strings, DSNs and API keys are left out
	c := h.deps.Config
	sanitizedConfig := map[string]interface{}{
		"worker": map[string]interface{}{
			"concurrency": c.Worker.Concurrency,
		},
		"queue": map[string]interface{}{
			"name":     c.Queue.Name,
			"prefetch": c.Queue.Prefetch,
		},
		"database": map[string]interface{}{
			"max_conns": c.Database.MaxConns,
		},
		"storage": map[string]interface{}{
			"backend":              c.Storage.Backend,
			"local_dir":            c.Storage.LocalDir,
			"audio_container":      c.Storage.AudioContainer,
			"transcript_container": c.Storage.TranscriptContainer,
		},
		"audio": map[string]interface{}{
			"chunk_duration":  c.Audio.ChunkDuration,
			"enhance_workers": c.Audio.EnhanceWorkers,
		},
		"vad": map[string]interface{}{
			"frame_duration_ms":   c.VAD.FrameDurationMs,
			"aggressiveness":      c.VAD.Aggressiveness,
			"padding_duration_ms": c.VAD.PaddingDurationMs,
		},
		"enhance": map[string]interface{}{
			"low_cut":       c.Enhance.LowCutHz,
			"high_cut":      c.Enhance.HighCutHz,
			"filter_order":  c.Enhance.FilterOrder,
			"reverb_factor": c.Enhance.ReverbFactor,
			"fft_size":      c.Enhance.FFTSize,
			"hop_size":      c.Enhance.HopSize,
		},
		"transcription": map[string]interface{}{
			"transcribe_endpoint": c.Transcription.TranscribeEndpoint,
			"diarize_endpoint":    c.Transcription.DiarizeEndpoint,
			"timeout":             c.Transcription.Timeout,
			"max_concurrent":      c.Transcription.MaxConcurrent,
			"language":            c.Transcription.Language,
			"model":               c.Transcription.Model,
		},
		"logging": map[string]interface{}{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
			"output": c.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"worker":    h.deps.Worker.Stats(),
	}
	if h.deps.Models != nil {
		stats["transcription"] = h.deps.Models.GetStats()
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleTranscriptionStats implements the /stats/transcription endpoint
func (h *HTTPServer) handleTranscriptionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.deps.Models == nil {
		http.Error(w, "Transcription client not configured", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, h.deps.Models.GetStats())
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Transcript Worker",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                    "API documentation",
			"GET /health":              "Service health check",
			"GET /jobs":                "List jobs currently being processed",
			"GET /jobs/{job_id}":       "Get a job record",
			"GET /config":              "Get service configuration",
			"GET /stats":               "Get worker statistics",
			"GET /stats/transcription": "Get transcription client statistics",
			"GET /metrics":             "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}
