package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"adreel/internal/http/handlers"
	"adreel/internal/middleware"
)

// NewRouter assembles the public API surface. Everything under /v1/videos and
// /v1/admin requires a bearer token; health stays open for probes.
func NewRouter(app *handlers.App, country middleware.CountryLookup) stdhttp.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.AllowedOrigins),
		middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
		middleware.I18N("en", country),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Config.JWTSecret, app.Config.AdminEmails))

		r.Route("/v1/videos", func(r chi.Router) {
			r.Get("/providers", app.VideoProviders)
			r.Post("/generate", app.VideosGenerate)
			r.Get("/jobs/{handle}", app.VideoJobStatus)
			r.Delete("/jobs/{handle}", app.VideoJobStop)
		})

		r.Get("/v1/usage", app.UsageStatus)

		r.Route("/v1/admin/integrations", func(r chi.Router) {
			r.Get("/{provider}/status", app.AdminIntegrationStatus)
			r.Put("/{provider}/token", app.AdminSetIntegrationToken)
		})
	})

	return r
}
