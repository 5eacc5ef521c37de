package eventshandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpireview/internal/domain/notifications"
	"kpireview/internal/platform/config"
	"kpireview/internal/platform/metrics"
	"kpireview/internal/realtime"
	"kpireview/internal/transport/http/api"
	"kpireview/internal/transport/http/middleware"
)

type Handler struct {
	Hub       *realtime.Hub
	Collector *metrics.Collector
	Config    config.Config
}

func NewHandler(hub *realtime.Hub, collector *metrics.Collector, cfg config.Config) *Handler {
	return &Handler{Hub: hub, Collector: collector, Config: cfg}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events/stream", h.handleStream)
	r.Get("/events/recent", h.handleRecent)
	r.Get("/events/config", h.handleConfig)
}

// handleConfig tells clients how to drive their side of the channel:
// reconnect schedule, heartbeat cadence and counter debounce window.
func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	backoffMs := make([]int64, 0, len(h.Config.ReconnectBackoff))
	for _, d := range h.Config.ReconnectBackoff {
		backoffMs = append(backoffMs, d.Milliseconds())
	}
	api.Success(w, map[string]any{
		"heartbeatIntervalMs": h.Config.HeartbeatInterval.Milliseconds(),
		"reconnectBackoffMs":  backoffMs,
		"reconnectMaxTries":   h.Config.ReconnectMaxTries,
		"counterDebounceMs":   h.Config.CounterDebounce.Milliseconds(),
	}, reqID)
}

// handleStream is the server side of the realtime channel. EventSource
// clients cannot set headers, so authentication also accepts ?token=.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Fail(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported", reqID)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := h.Hub.Subscribe(user.UserID)
	defer sub.Close()
	if h.Collector != nil {
		h.Collector.RecordStreamOpen()
	}

	if !h.writeEvent(w, flusher, notifications.Connected(user.UserID)) {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-sub.Events():
			if !open {
				return
			}
			if !h.writeEvent(w, flusher, event) {
				return
			}
		}
	}
}

func (h *Handler) writeEvent(w http.ResponseWriter, flusher http.Flusher, event notifications.Event) bool {
	raw, err := event.Encode()
	if err != nil {
		slog.Warn("event encode failed", "type", event.Type, "err", err)
		if h.Collector != nil {
			h.Collector.RecordEventDropped()
		}
		return true
	}
	if _, err := w.Write([]byte("data: " + string(raw) + "\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if _, ok := middleware.GetUser(r.Context()); !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	events := h.Hub.Recent()
	if events == nil {
		events = []notifications.Event{}
	}
	api.Success(w, events, reqID)
}
