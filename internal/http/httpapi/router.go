package httpapi

import (
	"net/http"

	"promptpix/internal/http/handlers"
	"promptpix/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the public routes. lookup may be nil when no GeoIP database is
// configured.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	defaultLocale := ""
	var origins []string
	if app.Config != nil {
		defaultLocale = app.Config.DefaultLocale
		origins = app.Config.CORSAllowedOrigins
	}

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.I18N(defaultLocale, lookup),
		middleware.Logger(app.Logger),
		app.Recover,
		middleware.CORS(origins),
	)

	r.NotFound(app.NotFound)
	r.MethodNotAllowed(app.MethodNotAllowed)

	r.Get("/", app.Index)
	r.Post("/generate-image", app.GenerateImage)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/generations", app.ListGenerations)
	})

	return r
}
