package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/micro-nova/unlockchime/internal/auth"
	"github.com/micro-nova/unlockchime/internal/logging"
	"github.com/micro-nova/unlockchime/internal/models"
	"golang.org/x/time/rate"
)

// Options tune the router. The zero value serves an open API with no
// mutation limit that accepts any origin.
type Options struct {
	Auth           *auth.Service
	Info           func() models.Info
	AllowedOrigins []string
	// MutationRate limits state-changing requests per second. Zero disables
	// the limit.
	MutationRate  rate.Limit
	MutationBurst int
	// Done ends open event streams when closed. http.Server.Shutdown waits
	// for active requests without cancelling them, so close it from
	// RegisterOnShutdown.
	Done <-chan struct{}
}

// NewRouter creates and returns the main HTTP router.
func NewRouter(ctrl Controller, bus EventBus, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(logging.Requests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", auth.HeaderAPIKey},
		MaxAge:         300,
	}))
	r.Use(middleware.CleanPath)

	h := &Handlers{ctrl: ctrl, events: bus, info: opts.Info, done: opts.Done}

	r.Get("/", h.index)

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth.Middleware)
		}

		r.Get("/api/status", h.getStatus)
		r.Get("/api/info", h.getInfo)
		r.Get("/api/subscribe", h.sseEvents)

		r.Group(func(r chi.Router) {
			if opts.MutationRate > 0 {
				r.Use(limit(opts.MutationRate, opts.MutationBurst))
			}
			r.Patch("/api/preferences", h.patchPreferences)
			r.Post("/api/sound/pick", h.pickSound)
			r.Put("/api/sound", h.putSound)
			r.Post("/api/service/start", h.startService)
			r.Post("/api/service/stop", h.stopService)
			r.Put("/api/permissions/usage-access", h.putUsageAccess)
		})
	})

	return r
}

// limit rejects requests beyond a shared token bucket with 429.
func limit(r rate.Limit, burst int) func(http.Handler) http.Handler {
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(r, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !lim.Allow() {
				writeError(w, models.ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
