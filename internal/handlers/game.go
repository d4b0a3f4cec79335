package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"laughgame/internal/game"
	"laughgame/internal/sensor"
	"laughgame/internal/viewmodel"
	"laughgame/internal/views"
)

// maxFramesPerPost bounds one /api/frames request.
const maxFramesPerPost = 256

const keepAliveInterval = 25 * time.Second

type GameHandler struct {
	store   *game.Store
	feed    *sensor.Feed
	limiter *RateLimiter
	log     *slog.Logger
}

// NewGameHandler serves the game API. feed may be nil when frames come from
// a local camera; the frames endpoint then answers 404.
func NewGameHandler(store *game.Store, feed *sensor.Feed, limiter *RateLimiter, log *slog.Logger) *GameHandler {
	if log == nil {
		log = slog.Default()
	}
	return &GameHandler{store: store, feed: feed, limiter: limiter, log: log}
}

func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Get("/stream", h.stream)
		r.Post("/frames", h.frames)
		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.limiter.Middleware)
			}
			r.Post("/start", h.start)
			r.Post("/reset", h.reset)
		})
	})
}

func (h *GameHandler) currentView() viewmodel.View {
	return viewmodel.FromSnapshot(h.store.Snapshot(), time.Now())
}

func (h *GameHandler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.currentView())
}

func (h *GameHandler) start(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Start(); err != nil {
		h.startFailed(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.currentView())
}

func (h *GameHandler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(); err != nil {
		h.startFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.currentView())
}

func (h *GameHandler) startFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, game.ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, "game is shutting down")
		return
	}
	h.log.Error("handlers: game request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "game unavailable")
}

type framesRequest struct {
	Frames []sensor.Frame `json:"frames"`
}

type framesResponse struct {
	RequestID string `json:"request_id"`
	Received  int    `json:"received"`
	Forwarded int    `json:"forwarded"`
}

func (h *GameHandler) frames(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		http.NotFound(w, r)
		return
	}
	var req framesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid frames payload")
		return
	}
	if len(req.Frames) > maxFramesPerPost {
		writeError(w, http.StatusRequestEntityTooLarge, "too many frames")
		return
	}
	invalid := lo.ContainsBy(req.Frames, func(f sensor.Frame) bool {
		return lo.ContainsBy(f.Faces, func(face sensor.Face) bool {
			return face.Smile < 0 || face.Smile > 1
		})
	})
	if invalid {
		writeError(w, http.StatusBadRequest, "smile must be within [0,1]")
		return
	}

	resp := framesResponse{RequestID: uuid.NewString(), Received: len(req.Frames)}
	for _, f := range req.Frames {
		if h.feed.Push(f) {
			resp.Forwarded++
		}
	}
	h.log.Debug("handlers: frames pushed", "request_id", resp.RequestID, "received", resp.Received, "forwarded", resp.Forwarded)
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *GameHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	hub := h.store.Broadcaster()
	sub := hub.Subscribe(0)
	defer hub.Unsubscribe(sub)

	sendView := func(v viewmodel.View) {
		payload, err := json.Marshal(v)
		if err != nil {
			h.log.Error("handlers: encode view", "error", err)
			return
		}
		writeSSE(w, "view", string(payload))
		writeSSE(w, "status", renderToString(r, views.Status(v)))
		flusher.Flush()
	}

	sendView(h.currentView())

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-sub:
			if !ok {
				return
			}
			sendView(viewmodel.FromSnapshot(snap, time.Now()))
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}
