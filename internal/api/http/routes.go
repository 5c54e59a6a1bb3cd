package http

import (
	"assetactivity/internal/api/http/handlers"
	"assetactivity/internal/api/http/mw"
	"assetactivity/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Nil middlewares are skipped
type Middlewares struct {
	Log       *mw.LoggingMiddleware
	RateLimit *mw.RateLimitMiddleware
	JWT       *mw.JWTMiddleware
	CORS      *mw.CORSMiddleware
}

func BuildRouter(h *handlers.Handler, m Middlewares) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if m.Log != nil {
		r.Use(m.Log.Handler)
	}
	r.Use(middleware.Compress(5, "application/json"))
	if m.CORS != nil {
		r.Use(m.CORS.Handler)
	}

	// tech endpoint not auth
	r.Get("/healthz", h.Healthz)
	r.Get("/readiness", h.Readiness)
	r.Mount("/metrics", metrics.Handler())

	r.Route("/api", func(apiR chi.Router) {
		// dev tokens are minted before any auth exists, limited only
		apiR.Group(func(dev chi.Router) {
			if m.RateLimit != nil {
				dev.Use(m.RateLimit.Handler)
			}
			if h.Signer != nil {
				dev.Post("/dev/token", h.DevToken)
			}
		})

		apiR.Group(func(pr chi.Router) {
			if m.JWT != nil {
				pr.Use(m.JWT.Handler)
			}
			// after jwt so the subject bucket applies
			if m.RateLimit != nil {
				pr.Use(m.RateLimit.Handler)
			}

			pr.Put("/snapshots/{hour}", h.PutSnapshot)
			pr.Post("/daily/{day}", h.BuildDaily)
			pr.Post("/rollup/{level}/{key}", h.Rollup)

			pr.Route("/logs/{level}", func(lr chi.Router) {
				lr.Get("/", h.ListLogs)
				lr.Get("/{key}", h.GetLog)
				lr.Get("/{key}/entities/{id}", h.EntityEvents)
			})
		})
	})

	return r
}
