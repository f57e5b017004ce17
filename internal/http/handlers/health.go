package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	persistence := a.Pipeline != nil && a.Pipeline.PersistenceEnabled()
	a.json(w, http.StatusOK, map[string]any{"status": "ok", "persistence": persistence})
}
