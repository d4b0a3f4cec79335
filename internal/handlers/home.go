package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"laughgame/internal/game"
	"laughgame/internal/viewmodel"
	"laughgame/internal/views"
)

type HomeHandler struct {
	store         *game.Store
	feedSensor    bool
	roundDuration time.Duration
	started       time.Time
	checks        map[string]func() any
}

func NewHomeHandler(store *game.Store, feedSensor bool, roundDuration time.Duration) *HomeHandler {
	return &HomeHandler{
		store:         store,
		feedSensor:    feedSensor,
		roundDuration: roundDuration,
		started:       time.Now(),
		checks:        make(map[string]func() any),
	}
}

// Report adds a named section to /healthz, computed on every request.
func (h *HomeHandler) Report(name string, fn func() any) *HomeHandler {
	h.checks[name] = fn
	return h
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/healthz", h.health)
}

func (h *HomeHandler) home(w http.ResponseWriter, r *http.Request) {
	data := viewmodel.GamePage{
		Title:         "LaughGame",
		View:          viewmodel.FromSnapshot(h.store.Snapshot(), time.Now()),
		FeedSensor:    h.feedSensor,
		RoundDuration: h.roundDuration,
	}
	render(w, r, views.Page(data))
}

func (h *HomeHandler) health(w http.ResponseWriter, r *http.Request) {
	hub := h.store.Broadcaster()
	body := map[string]any{
		"status":      "ok",
		"state":       h.store.Snapshot().State,
		"uptime":      time.Since(h.started).Round(time.Second).String(),
		"subscribers": hub.Len(),
		"dropped":     hub.Dropped(),
	}
	for name, fn := range h.checks {
		body[name] = fn()
	}
	writeJSON(w, http.StatusOK, body)
}
