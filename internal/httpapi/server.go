package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sunforger/garak/internal/generators/ggml"
	"github.com/Sunforger/garak/internal/harness"
	"github.com/Sunforger/garak/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error)
	Ready() bool
}

// NewMux builds the HTTP router: /generate, /models, /status, /healthz,
// /readyz, /metrics, plus swagger when built with -tags=swagger.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// ListModels godoc
	// @Summary  List available models
	// @Produce  json
	// @Success  200 {object} types.ModelsResponse
	// @Router   /models [get]
	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: svc.ListModels()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	// Status godoc
	// @Summary  Harness status and run totals
	// @Produce  json
	// @Success  200 {object} types.StatusResponse
	// @Router   /status [get]
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	// Generate godoc
	// @Summary  Produce completions for a prompt
	// @Accept   json
	// @Produce  json
	// @Param    request body types.GenerateRequest true "generation request"
	// @Success  200 {object} types.GenerateResponse
	// @Failure  400 {object} types.ErrorResponse
	// @Failure  404 {object} types.ErrorResponse
	// @Failure  502 {object} types.ErrorResponse
	// @Failure  503 {object} types.ErrorResponse
	// @Router   /generate [post]
	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		start := time.Now()
		rid := middleware.GetReqID(r.Context())
		lvl := requestLogLevel(r)
		logStart(lvl, rid, req.Model)

		// Join server base context with request context so shutdown cancels
		// in-flight generations too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if generateTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, time.Duration(generateTimeout)*time.Second)
			defer cancel()
		}

		resp, err := svc.Generate(ctx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := statusForError(err)
			writeJSONError(w, status, err.Error())
			logEnd(lvl, rid, status, start, err)
			return
		}
		countOutputs(resp.Outputs)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
		logEnd(lvl, rid, http.StatusOK, start, nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no models"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// statusForError maps well-known harness and generator errors to HTTP
// status codes.
func statusForError(err error) int {
	switch {
	case harness.IsModelNotFound(err):
		return http.StatusNotFound
	case ggml.IsNotConfigured(err), ggml.IsNotFound(err), ggml.IsBadFormat(err):
		// The generator cannot run at all: a deployment problem, not a bad request.
		return http.StatusServiceUnavailable
	case ggml.IsRunFailed(err):
		return http.StatusBadGateway
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
