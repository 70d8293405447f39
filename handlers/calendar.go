// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/govboard/db"
	"github.com/danielhkuo/govboard/middleware"
	"github.com/danielhkuo/govboard/models"
)

type CalendarHandler struct {
	db *db.DB
}

func NewCalendarHandler(db *db.DB) *CalendarHandler {
	return &CalendarHandler{db: db}
}

// GetEvents handles GET /calendar-events?network=
// The network match is case-insensitive.
func (h *CalendarHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	network := strings.TrimSpace(r.URL.Query().Get("network"))
	if network == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "network is required")
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, title, content, start_time, end_time, module, network, url
		FROM calendar_events
		WHERE LOWER(network) = LOWER($1)
		ORDER BY start_time, id
	`, network)
	if err != nil {
		slog.Error("failed to query calendar events", "network", network, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load calendar events")
		return
	}
	defer rows.Close()

	events := []models.CalendarEvent{}
	for rows.Next() {
		var (
			e                     models.CalendarEvent
			content, module, link sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Title, &content, &e.StartTime, &e.EndTime, &module, &e.Network, &link); err != nil {
			slog.Error("failed to scan calendar event", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load calendar events")
			return
		}
		e.Content = nullString(content)
		e.Module = nullString(module)
		e.URL = nullString(link)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate calendar events", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load calendar events")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, events)
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
