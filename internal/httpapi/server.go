package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"slotd/internal/router"
	"slotd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Completion(ctx context.Context, body []byte, header http.Header) (*router.Response, error)
	Models(ctx context.Context) (*router.Response, error)
	Cancel(ctx context.Context, id string) types.CancelResponse
	Readiness() types.ReadyResponse
	Status() types.StatusResponse
	Draining() bool
}

// DeprecationNotice is sent on the legacy /health route.
const DeprecationNotice = "/health is deprecated; use /ready for readiness and /live for liveness"

// drainExempt routes keep answering while the coordinator shuts down.
var drainExempt = map[string]bool{"/live": true, "/metrics": true, "/status": true}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"X-Request-Id", "X-Deprecation-Notice"},
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if svc.Draining() && !drainExempt[r.URL.Path] {
				writeError(w, router.ServiceUnavailable("shutting down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Post("/v1/chat/completions", inflight("/v1/chat/completions", h.completions))
	r.Get("/v1/models", inflight("/v1/models", h.models))
	r.Post("/v1/cancel/{id}", inflight("/v1/cancel/{id}", h.cancel))
	r.Get("/live", h.live)
	r.Get("/ready", h.ready)
	r.Get("/health", h.health)
	r.Get("/status", h.status)

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, router.NotFound("no route for "+r.Method+" "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, router.CategoryClient, "method not allowed")
	})
	return r
}

type handlers struct {
	svc Service
}

// completions godoc
// @Summary      Chat completion
// @Description  Forwards a non-streaming completion request to a ready worker. Failing workers are evicted and the request is retried on the next one.
// @Tags         proxy
// @Accept       json
// @Produce      json
// @Param        body  body      types.CompletionRequest  true  "OpenAI-style completion request"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  types.ErrorResponse
// @Failure      502   {object}  types.ErrorResponse
// @Failure      503   {object}  types.ErrorResponse
// @Router       /v1/chat/completions [post]
func (h *handlers) completions(w http.ResponseWriter, r *http.Request) {
	rl := startLog(r, "completion")
	// Any Content-Type is accepted; the router validates the payload itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, router.CategoryClient, "request body too large")
			countRouteError(router.CategoryClient)
			rl.end(http.StatusRequestEntityTooLarge, "", nil)
			return
		}
		writeError(w, router.ProtocolViolation("failed to read request body"))
		rl.end(http.StatusBadRequest, "", err)
		return
	}
	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	resp, err := h.svc.Completion(ctx, body, r.Header)
	h.relay(w, r, rl, resp, err)
}

// models godoc
// @Summary      List models
// @Description  Forwards the model listing to a ready worker.
// @Tags         proxy
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      502  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /v1/models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	rl := startLog(r, "models")
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	resp, err := h.svc.Models(ctx)
	h.relay(w, r, rl, resp, err)
}

func (h *handlers) relay(w http.ResponseWriter, r *http.Request, rl reqLog, resp *router.Response, err error) {
	if err != nil {
		if r.Context().Err() != nil {
			// client disconnected; nobody is listening
			rl.end(499, "", err)
			return
		}
		if serverBaseCtx.Err() != nil && errors.Is(err, context.Canceled) {
			err = router.ServiceUnavailable("shutting down")
		}
		status, _ := statusOf(err)
		writeError(w, err)
		rl.end(status, "", err)
		return
	}
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
	rl.end(resp.Status, resp.Profile, nil)
}

// cancel godoc
// @Summary      Cancel a request
// @Description  Broadcasts a cancellation to every bound worker. Succeeds when at least one worker applied it.
// @Tags         proxy
// @Produce      json
// @Param        id   path      string  true  "Request id"
// @Success      200  {object}  types.CancelResponse
// @Failure      404  {object}  types.CancelResponse
// @Router       /v1/cancel/{id} [post]
func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	rl := startLog(r, "cancel")
	id := chi.URLParam(r, "id")
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	res := h.svc.Cancel(ctx, id)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusNotFound
	}
	writeJSON(w, status, res)
	rl.end(status, "", nil)
}

// live godoc
// @Summary  Liveness
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /live [get]
func (h *handlers) live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ready godoc
// @Summary  Readiness
// @Tags     health
// @Produce  json
// @Success  200  {object}  types.ReadyResponse
// @Failure  503  {object}  types.ReadyResponse
// @Router   /ready [get]
func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	rr := h.svc.Readiness()
	status := http.StatusOK
	if rr.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rr)
}

// health godoc
// @Summary     Readiness (deprecated alias of /ready)
// @Tags        health
// @Produce     json
// @Success     200  {object}  types.ReadyResponse
// @Failure     503  {object}  types.ReadyResponse
// @Deprecated
// @Router      /health [get]
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Deprecation-Notice", DeprecationNotice)
	h.ready(w, r)
}

// status godoc
// @Summary  Pool status
// @Tags     health
// @Produce  json
// @Success  200  {object}  types.StatusResponse
// @Router   /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

// writeError renders err with its mapped status and category.
func writeError(w http.ResponseWriter, err error) {
	status, category := statusOf(err)
	countRouteError(category)
	writeJSONError(w, status, category, err.Error())
}
