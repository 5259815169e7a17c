package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	domain "github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
	"github.com/bryanwahyu/pawspeak/internal/middleware"
)

// Disclaimer is returned next to every explanation when enabled.
const Disclaimer = "Note: This is an AI-generated, best-effort interpretation of a dog's " +
	"body language. It may be inaccurate. If you have concerns about the " +
	"dog's wellbeing or behavior, consult a qualified professional."

const fallbackExplanation = "Unable to interpret the image right now."

// multipart framing on top of the image itself
const multipartOverhead = 1 << 20

// Interpreter is the application service behind the interpret endpoints.
type Interpreter interface {
	Interpret(ctx context.Context, req domain.Request) (*domain.Result, error)
}

type Options struct {
	// Source names the model backend, echoed in X-LLM-Source.
	Source         string
	MaxUploadBytes int64
	Disclaimer     bool
	Variants       []domain.Variant
	AllowedOrigins []string
	// RateLimitCapacity of 0 disables rate limiting.
	RateLimitCapacity int
	RateLimitRefill   float64
	Checkers          map[string]middleware.HealthChecker
}

type Router struct {
	svc    Interpreter
	images domain.ImageSource
	opts   Options
	newID  func() string
}

// NewRouter builds the HTTP API. images may be nil when object storage is off.
func NewRouter(svc Interpreter, images domain.ImageSource, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	r := &Router{svc: svc, images: images, opts: opts, newID: uuid.NewString}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-LLM-Source", "X-Request-Id"},
		MaxAge:         300,
	}))
	mux.Use(middleware.MetricsMiddleware)
	if opts.RateLimitCapacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimitCapacity, opts.RateLimitRefill))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/interpret", r.wrap(r.handleInterpret))
		rt.Post("/v1/interpret", r.wrap(r.handleInterpret))
		rt.Get("/registry", r.wrap(r.handleRegistry))
	})

	return mux
}

// requestError is a failure detected by the handler itself, before the service runs.
type requestError struct {
	status int
	code   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, code: string(domain.KindInvalidInput), msg: fmt.Sprintf(format, args...)}
}

func tooLarge(limit int64) error {
	return &requestError{status: http.StatusRequestEntityTooLarge, code: "payload_too_large", msg: fmt.Sprintf("image too large, max %d bytes", limit)}
}

type errorResponse struct {
	Status      string  `json:"status"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
	Error       string  `json:"error"`
	Detail      string  `json:"detail,omitempty"`
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		body := errorResponse{Status: "error", Explanation: fallbackExplanation}
		var status int
		var rerr *requestError
		if errors.As(err, &rerr) {
			status, body.Error, body.Detail = rerr.status, rerr.code, rerr.msg
		} else {
			kind := domain.KindOf(err)
			if kind == "" {
				kind = domain.KindUpstreamUnavailable
			}
			status, body.Error = statusFor(kind), string(kind)
			if kind == domain.KindInvalidInput {
				body.Detail = err.Error()
			}
		}

		log.Printf("request failed path=%s status=%d error=%s request_id=%s err=%v",
			req.URL.Path, status, body.Error, chimw.GetReqID(req.Context()), err)
		writeJSON(w, status, body)
	}
}

// statusFor maps an error kind to the HTTP status returned to clients.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindUpstreamAuthError:
		// a bad server credential is our misconfiguration, not the caller's
		return http.StatusInternalServerError
	case domain.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

type interpretResponse struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
	Disclaimer  string  `json:"disclaimer,omitempty"`
}

// POST /api/interpret, /api/v1/interpret
// multipart: image (file, jpeg/png), tone (optional) | object_key
func (r *Router) handleInterpret(w http.ResponseWriter, req *http.Request) error {
	limit := r.opts.MaxUploadBytes
	req.Body = http.MaxBytesReader(w, req.Body, limit+multipartOverhead)
	if err := req.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return tooLarge(limit)
		}
		return badRequest("invalid multipart form: %v", err)
	}
	defer req.MultipartForm.RemoveAll()

	tone, err := middleware.ValidateTone(req.FormValue("tone"), r.opts.Variants)
	if err != nil {
		return badRequest("%v", err)
	}

	data, err := r.readImage(req, limit)
	if err != nil {
		return err
	}

	middleware.IncrementInterpretations()
	res, err := r.svc.Interpret(req.Context(), domain.Request{Image: data, PromptVariant: tone})
	if err != nil {
		middleware.IncrementInterpretationFailures(string(domain.KindOf(err)))
		return err
	}

	out := interpretResponse{
		ID:          r.newID(),
		Status:      "ok",
		Explanation: res.Explanation,
		Confidence:  res.Confidence,
		Source:      r.opts.Source,
	}
	if r.opts.Disclaimer {
		out.Disclaimer = Disclaimer
	}
	log.Printf("interpretation served id=%s source=%s confidence=%.2f request_id=%s",
		out.ID, out.Source, out.Confidence, chimw.GetReqID(req.Context()))

	w.Header().Set("X-LLM-Source", r.opts.Source)
	writeJSON(w, http.StatusOK, out)
	return nil
}

// readImage takes the uploaded file, or falls back to object_key when storage is configured.
func (r *Router) readImage(req *http.Request, limit int64) ([]byte, error) {
	file, header, err := req.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		if err := middleware.ValidateContentType(header.Header.Get("Content-Type")); err != nil {
			return nil, badRequest("%v", err)
		}
		data, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			return nil, badRequest("read upload: %v", err)
		}
		if int64(len(data)) > limit {
			return nil, tooLarge(limit)
		}
		return data, nil

	case errors.Is(err, http.ErrMissingFile):
		key := middleware.SanitizeString(req.FormValue("object_key"))
		if key == "" {
			return nil, badRequest("image is required")
		}
		if r.images == nil {
			return nil, badRequest("object storage is not configured")
		}
		if err := middleware.ValidateObjectKey(key); err != nil {
			return nil, badRequest("%v", err)
		}
		data, contentType, err := r.images.Fetch(req.Context(), key)
		if err != nil {
			if domain.KindOf(err) == "" {
				return nil, domain.NewError(domain.KindUpstreamUnavailable, "object storage", err)
			}
			return nil, err
		}
		if contentType != "" && !strings.HasSuffix(contentType, "octet-stream") {
			if err := middleware.ValidateContentType(contentType); err != nil {
				return nil, badRequest("%v", err)
			}
		}
		return data, nil

	default:
		return nil, badRequest("invalid image field: %v", err)
	}
}

type registryParam struct {
	Name     string   `json:"name"`
	In       string   `json:"in"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Mime     []string `json:"mime,omitempty"`
	Enum     []string `json:"enum,omitempty"`
}

type registryEndpoint struct {
	Name       string          `json:"name"`
	Path       string          `json:"path"`
	Methods    []string        `json:"methods"`
	Summary    string          `json:"summary"`
	Deprecated bool            `json:"deprecated,omitempty"`
	Params     []registryParam `json:"params,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
}

// GET /api/registry
func (r *Router) handleRegistry(w http.ResponseWriter, req *http.Request) error {
	tones := make([]string, 0, len(r.opts.Variants))
	for _, v := range r.opts.Variants {
		tones = append(tones, string(v))
	}
	params := []registryParam{
		{Name: "image", In: "formData", Type: "file", Required: false, Mime: []string{"image/jpeg", "image/png"}},
		{Name: "tone", In: "formData", Type: "string", Enum: tones},
	}
	if r.images != nil {
		params = append(params, registryParam{Name: "object_key", In: "formData", Type: "string"})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": map[string]string{
			"name":    "Dog Body Language Interpreter",
			"version": "1.1",
			"source":  r.opts.Source,
		},
		"endpoints": []registryEndpoint{
			{Name: "Health", Path: "/health", Methods: []string{"GET"}, Summary: "Dependency health checks.", Tags: []string{"ops"}},
			{Name: "Readiness", Path: "/ready", Methods: []string{"GET"}, Summary: "Readiness probe.", Tags: []string{"ops"}},
			{Name: "Liveness", Path: "/live", Methods: []string{"GET"}, Summary: "Liveness probe.", Tags: []string{"ops"}},
			{Name: "Metrics", Path: "/metrics", Methods: []string{"GET"}, Summary: "Request and interpretation counters.", Tags: []string{"ops"}},
			{Name: "Interpret Image (Legacy)", Path: "/api/interpret", Methods: []string{"POST"}, Summary: "Legacy endpoint. Use /api/v1/interpret.", Deprecated: true, Params: params, Tags: []string{"interpretation"}},
			{Name: "Interpret Image (V1)", Path: "/api/v1/interpret", Methods: []string{"POST"}, Summary: "Uploads a dog image and returns a friendly first-person explanation.", Params: params, Tags: []string{"interpretation", "mobile"}},
		},
	})
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response failed status=%d err=%v", status, err)
	}
}
