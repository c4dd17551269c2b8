package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	CORSOrigins    []string
	RateLimitRPM   int
	RequestTimeout time.Duration
	MetricsHandler http.Handler
}

func (h *Handler) Routes(m *Middleware, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(m.Compress)
	if cfg.RequestTimeout > 0 {
		r.Use(m.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS(cfg.CORSOrigins))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(m.RateLimit(cfg.RateLimitRPM))
		r.Use(m.WithStore(h.store))

		r.Route("/items", func(r chi.Router) {
			r.Delete("/", h.DeleteItems)
			r.Put("/{key}", h.PutItem)
			r.Get("/{key}", h.GetItem)
		})

		r.Route("/sets/{set}", func(r chi.Router) {
			r.Get("/members", h.ListMembers)
			r.Post("/members", h.AddMember)
			r.Delete("/members", h.RemoveMember)
			r.Post("/check", h.CheckMember)
			r.Post("/purge", h.PurgeSet)
		})
	})

	return r
}
