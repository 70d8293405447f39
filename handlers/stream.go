// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/govboard/events"
	"github.com/danielhkuo/govboard/middleware"
	"github.com/danielhkuo/govboard/models"
)

const (
	streamBuffer      = 32
	streamKeepAlive   = 30 * time.Second
	streamContentType = "text/event-stream"
)

type StreamHandler struct {
	hub       *events.Hub
	keepAlive time.Duration
}

func NewStreamHandler(hub *events.Hub) *StreamHandler {
	return &StreamHandler{hub: hub, keepAlive: streamKeepAlive}
}

// Stream handles GET /auth/event/stream?table=
// Processed hook events are sent as server-sent events until the client
// goes away. Events are dropped for a client whose buffer is full.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("table")
	if topic == "" {
		topic = events.TopicAll
	}
	if !events.ValidTopic(topic) {
		middleware.ErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown table %q", topic))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	msg := make(chan models.StreamEvent, streamBuffer)
	stop := make(chan struct{})
	unsubscribe := h.hub.Subscribe(func(e models.StreamEvent) {
		select {
		case <-stop:
		case msg <- e:
		default:
			slog.Warn("stream client too slow, event dropped", "table", e.Table, "id", e.ID)
		}
	}, topic)
	defer unsubscribe()
	defer close(stop)

	w.Header().Set("Content-Type", streamContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	slog.Debug("stream client connected", "topic", topic, "remote", middleware.GetClientIP(r))

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case e := <-msg:
			payload, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to encode stream event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Table, payload)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Debug("stream client disconnected", "topic", topic)
			return
		}
	}
}
