package handlers

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"promptpix/internal/domain"
	"promptpix/internal/imagegen"
	"promptpix/internal/infra"
)

// App holds the dependencies shared by the HTTP handlers.
type App struct {
	Config      *infra.Config
	Logger      zerolog.Logger
	Pipeline    *imagegen.Pipeline
	Generations domain.GenerationRepository
}

func NewApp(cfg *infra.Config, logger zerolog.Logger, pipeline *imagegen.Pipeline, generations domain.GenerationRepository) *App {
	return &App{Config: cfg, Logger: logger, Pipeline: pipeline, Generations: generations}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, errorResponse{Error: message})
}

// NotFound and MethodNotAllowed keep the JSON envelope for unknown routes.
func (a *App) NotFound(w http.ResponseWriter, r *http.Request) {
	a.error(w, http.StatusNotFound, "not found")
}

func (a *App) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.error(w, http.StatusMethodNotAllowed, "method not allowed")
}

// Recover turns a handler panic into a logged 500 with the JSON envelope.
func (a *App) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log := zerolog.Ctx(r.Context())
			if log.GetLevel() == zerolog.Disabled {
				log = &a.Logger
			}
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panic")
			a.error(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
