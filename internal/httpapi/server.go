package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"inferd/internal/backend"
	"inferd/internal/gate"
	"inferd/pkg/types"
)

// Options assembles the HTTP surface from its collaborators.
type Options struct {
	Logger   zerolog.Logger
	Backend  backend.Backend
	Pipeline *gate.Pipeline

	// Catalog served by GET /v1/models.
	Models []types.Model
	// Model id substituted when a request omits "model".
	DefaultModel string
	// Chat-specific rate limit; zero inherits the pipeline default.
	ChatMaxRequests int
	// Browser origins allowed to call the API; empty disables CORS.
	CORSOrigins []string
}

type server struct {
	log          zerolog.Logger
	backend      backend.Backend
	pipe         *gate.Pipeline
	models       []types.Model
	defaultModel string
	cpu          *cpuSampler
}

// NewMux builds the router: chi middlewares, the protected inference
// endpoints behind the gate pipeline, and the unguarded read-only endpoints.
func NewMux(opts Options) http.Handler {
	s := &server{
		log:          opts.Logger,
		backend:      opts.Backend,
		pipe:         opts.Pipeline,
		models:       opts.Models,
		defaultModel: opts.DefaultModel,
		cpu:          newCPUSampler(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(MetricsMiddleware)

	r.Post("/v1/chat/completions", s.pipe.Handler(gate.Op{
		Name:           "chat_completions",
		RequiredFields: []string{"messages"},
		MaxRequests:    opts.ChatMaxRequests,
	}, s.handleChat).ServeHTTP)

	r.Post("/v1/completions", s.pipe.Handler(gate.Op{
		Name:           "completions",
		RequiredFields: []string{"prompt"},
	}, s.handleCompletion).ServeHTTP)

	r.Post("/v1/embeddings", s.pipe.Handler(gate.Op{
		Name:           "embeddings",
		RequiredFields: []string{"input"},
	}, s.handleEmbeddings).ServeHTTP)

	r.Get("/v1/models", s.handleModels)
	r.Get("/health", s.handleHealth)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.backend.Loaded() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.encode(w, types.ModelsResponse{Object: "list", Data: s.models})
}

const cpuDegradedThreshold = 90.0

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, maxConcurrent := s.pipe.Ledger().Snapshot()
	cpu := s.cpu.Percent()

	resp := types.HealthResponse{
		Status:          "healthy",
		Timestamp:       time.Now().Unix(),
		ModelLoaded:     s.backend.Loaded(),
		ActiveRequests:  active,
		MaxConcurrent:   maxConcurrent,
		CPUUsagePercent: cpu,
	}
	if p, ok := s.backend.Pressure(); ok {
		resp.GPUMemoryUsed = p.GPUMemoryUsed
		resp.GPUMemoryTotal = p.GPUMemoryTotal
		resp.GPUMemoryPercent = p.GPUMemoryPercent
	}
	if !resp.ModelLoaded {
		resp.Status = "degraded"
		resp.Issues = append(resp.Issues, "model not loaded")
	}
	if cpu > cpuDegradedThreshold {
		resp.Status = "degraded"
		resp.Issues = append(resp.Issues, "high cpu usage")
	}
	if active >= maxConcurrent {
		resp.Status = "busy"
		resp.Issues = append(resp.Issues, "at concurrency capacity")
	}
	s.encode(w, resp)
}

func (s *server) encode(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}
