package handlers

import (
	"net/http"
	"strconv"

	"promptpix/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListGenerations returns the most recent generation records, newest first.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	if a.Generations == nil || a.Pipeline == nil || !a.Pipeline.PersistenceEnabled() {
		a.error(w, http.StatusNotFound, domain.ErrPersistenceOff.Error())
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := a.Generations.ListRecent(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list generations failed")
		a.error(w, http.StatusInternalServerError, "failed to list generations")
		return
	}
	if records == nil {
		records = []domain.GenerationRecord{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": records})
}
