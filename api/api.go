// Package api exposes the HTTP surface of the credential core: provider
// connect/status/disconnect, content generation, and the middleware chain
// that enforces rate limits and the session contract.
package api

import (
	_ "embed"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-openapi/runtime/middleware"

	"github.com/draftline/draftline/config"
	"github.com/draftline/draftline/keystore"
	"github.com/draftline/draftline/provider"
	"github.com/draftline/draftline/session"
)

// SessionHeader carries the opaque client-chosen session identifier.
const SessionHeader = "X-Session-ID"

// API holds the dependencies needed by the REST handlers.
type API struct {
	cfg      config.Config
	registry *session.Registry
	stores   map[provider.Tag]*keystore.Store
	clients  map[provider.Tag]provider.Client
	limiter  *rateLimiter
	audit    *auditLogger
	logger   *slog.Logger

	auditCloser io.Closer
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for server-side diagnostics.
// If not set, a JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithAuditWriter overrides the audit sink (used in tests). The default
// sink is derived from the configured audit log path.
func WithAuditWriter(w io.Writer) Option {
	return func(a *API) { a.audit = newAuditLogger(w) }
}

// WithClient replaces the adapter for the client's provider tag. Used to
// stub out upstream calls in tests.
func WithClient(c provider.Client) Option {
	return func(a *API) { a.clients[c.Tag()] = c }
}

// New wires the API. One key store per provider is created over the shared
// master key, and each store's delete is registered as a session cleanup
// callback so expired sessions lose their keys within one sweep.
func New(cfg config.Config, registry *session.Registry, master *keystore.MasterKey, opts ...Option) *API {
	a := &API{
		cfg:      cfg,
		registry: registry,
		stores:   make(map[provider.Tag]*keystore.Store),
		clients:  make(map[provider.Tag]provider.Client),
		limiter:  newRateLimiter(cfg.RateLimitWindow, cfg.RateLimitAuth, cfg.RateLimitGeneration),
	}

	for _, tag := range provider.Tags() {
		store := keystore.New(string(tag), master)
		a.stores[tag] = store
		registry.RegisterCleanupCallback(store.Delete)
	}

	a.clients[provider.Anthropic] = provider.NewAnthropicClient()
	a.clients[provider.OpenAI] = provider.NewOpenAIClient()
	a.clients[provider.Gemini] = provider.NewGeminiClient()

	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if a.audit == nil {
		w, closer := newAuditWriter(cfg.AuditLogPath)
		a.audit = newAuditLogger(w)
		a.auditCloser = closer
	}
	a.audit.metrics = newMetricsCollector(func(ev AlertEvent) {
		a.logger.Warn("anomaly detected",
			"alert", string(ev.Type), "count", ev.Count, "threshold", ev.Threshold)
	})

	registry.RegisterCleanupCallback(func(id string) {
		a.audit.log(AuditSessionExpired, id, auditSuccess, map[string]any{"source": "sweep"})
	})

	return a
}

// Close releases the audit sink and wipes every stored key.
func (a *API) Close() error {
	for _, store := range a.stores {
		store.Purge()
	}
	if a.auditCloser != nil {
		return a.auditCloser.Close()
	}
	return nil
}

// Router returns the fully assembled handler. The middleware order is
// fixed here and nowhere else: security headers, request ID, request log,
// panic recovery, rate limiting, then the session contract. Rate limiting
// must precede the session middleware so abusive clients cannot force
// session creation.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(a.Recoverer)
	r.Use(a.RateLimitMiddleware)
	r.Use(a.SessionMiddleware)

	r.Get("/", a.Root)
	r.Get("/health", a.Health)

	r.Get("/api/v1/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/api/v1/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/api/v1/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Route("/api/v1/providers/{provider}", func(r chi.Router) {
		r.Get("/status", a.ProviderStatus)
		r.Post("/connect", a.ConnectProvider)
		r.Post("/disconnect", a.DisconnectProvider)
	})

	r.Post("/api/v1/generate", a.Generate)

	return r
}
