// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/govboard/auth"
	"github.com/danielhkuo/govboard/cliparse"
	"github.com/danielhkuo/govboard/db"
	"github.com/danielhkuo/govboard/events"
	"github.com/danielhkuo/govboard/metrics"
	"github.com/danielhkuo/govboard/middleware"
	"github.com/danielhkuo/govboard/models"
)

var errBadPayload = errors.New("bad event payload")

type EventHookHandler struct {
	db  *db.DB
	cfg cliparse.Config
	hub *events.Hub
}

func NewEventHookHandler(db *db.DB, cfg cliparse.Config, hub *events.Hub) *EventHookHandler {
	return &EventHookHandler{db: db, cfg: cfg, hub: hub}
}

type hookResult struct {
	message       string
	subscriptions int
	notifications int
	postID        string
}

// PostCreate handles POST /auth/event/post/create
// The author is subscribed to their own post.
func (h *EventHookHandler) PostCreate(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, events.TopicPosts, func(ctx context.Context, tx *db.Tx, raw json.RawMessage) (hookResult, string, error) {
		var post models.PostRow
		if err := decodeRow(raw, &post); err != nil || post.ID == "" || post.AuthorID == "" {
			return hookResult{}, "", errBadPayload
		}

		n, err := subscribe(ctx, tx, post.ID, post.AuthorID)
		if err != nil {
			return hookResult{}, post.ID, err
		}
		return hookResult{message: "Post subscription created", subscriptions: n, postID: post.ID}, post.ID, nil
	})
}

// CommentCreate handles POST /auth/event/comment/create
// The commenter is subscribed to the post and every other subscriber is
// notified.
func (h *EventHookHandler) CommentCreate(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, events.TopicComments, func(ctx context.Context, tx *db.Tx, raw json.RawMessage) (hookResult, string, error) {
		var comment models.CommentRow
		if err := decodeRow(raw, &comment); err != nil || comment.ID == "" || comment.PostID == "" || comment.AuthorID == "" {
			return hookResult{}, "", errBadPayload
		}

		n, err := subscribe(ctx, tx, comment.PostID, comment.AuthorID)
		if err != nil {
			return hookResult{}, comment.ID, err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT user_id FROM post_subscriptions
			WHERE post_id = $1 AND user_id <> $2
			ORDER BY created_at, user_id
		`, comment.PostID, comment.AuthorID)
		if err != nil {
			return hookResult{}, comment.ID, fmt.Errorf("failed to list subscribers: %w", err)
		}
		var subscribers []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return hookResult{}, comment.ID, fmt.Errorf("failed to scan subscriber: %w", err)
			}
			subscribers = append(subscribers, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return hookResult{}, comment.ID, err
		}

		title := postTitle(ctx, tx, comment.PostID)
		for _, userID := range subscribers {
			msg := fmt.Sprintf("New comment on post %q", title)
			if err := notify(ctx, tx, userID, &comment.PostID, &comment.ID, models.NotificationNewComment, msg); err != nil {
				return hookResult{}, comment.ID, err
			}
		}

		return hookResult{
			message:       "Comment notifications sent",
			subscriptions: n,
			notifications: len(subscribers),
			postID:        comment.PostID,
		}, comment.ID, nil
	})
}

// OnchainLinkCreate handles POST /auth/event/onchain_link/create
// The user owning the proposer address is subscribed and notified.
func (h *EventHookHandler) OnchainLinkCreate(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, events.TopicOnchainLinks, func(ctx context.Context, tx *db.Tx, raw json.RawMessage) (hookResult, string, error) {
		var link models.OnchainLinkRow
		if err := decodeRow(raw, &link); err != nil || link.ID == "" || link.PostID == "" || link.ProposerAddress == "" {
			return hookResult{}, "", errBadPayload
		}

		var userID string
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM addresses WHERE address = $1`, link.ProposerAddress).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return hookResult{message: "No user for proposer address", postID: link.PostID}, link.ID, nil
		}
		if err != nil {
			return hookResult{}, link.ID, fmt.Errorf("failed to look up proposer: %w", err)
		}

		n, err := subscribe(ctx, tx, link.PostID, userID)
		if err != nil {
			return hookResult{}, link.ID, err
		}
		msg := fmt.Sprintf("Your proposal is now linked to post %q", postTitle(ctx, tx, link.PostID))
		if err := notify(ctx, tx, userID, &link.PostID, nil, models.NotificationProposalLinked, msg); err != nil {
			return hookResult{}, link.ID, err
		}

		return hookResult{
			message:       "Proposer subscribed",
			subscriptions: n,
			notifications: 1,
			postID:        link.PostID,
		}, link.ID, nil
	})
}

type hookFunc func(ctx context.Context, tx *db.Tx, raw json.RawMessage) (hookResult, string, error)

// handle checks the event secret and payload, runs fn in a transaction and
// publishes the processed event.
func (h *EventHookHandler) handle(w http.ResponseWriter, r *http.Request, table string, fn hookFunc) {
	var err error
	defer func() { metrics.EventHookHandled(table, err) }()

	if err = auth.ValidateEventSecret(r.Header.Get(middleware.EventSecretHeader), h.cfg.EventSecret); err != nil {
		slog.Warn("event hook rejected", "table", table, "remote", middleware.GetClientIP(r))
		middleware.ErrorResponse(w, http.StatusForbidden, "Invalid event secret")
		return
	}

	var req models.EventHookRequest
	if err = middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Table.Name != table {
		err = errBadPayload
		middleware.ErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("expected table %s, got %q", table, req.Table.Name))
		return
	}
	if req.Event.Op != models.OpInsert && req.Event.Op != models.OpManual {
		err = errBadPayload
		middleware.ErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("unsupported operation %q", req.Event.Op))
		return
	}

	ctx := r.Context()
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to process event")
		return
	}
	defer tx.Rollback()

	res, id, err := fn(ctx, tx, req.Event.Data.New)
	if errors.Is(err, errBadPayload) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid event data")
		return
	}
	if err != nil {
		slog.Error("event hook failed", "table", table, "id", id, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to process event")
		return
	}
	if err = tx.Commit(); err != nil {
		slog.Error("failed to commit event hook", "table", table, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to process event")
		return
	}

	slog.Info("event hook processed",
		"table", table,
		"id", id,
		"subscriptions", res.subscriptions,
		"notifications", res.notifications,
	)

	if h.hub != nil {
		h.hub.Publish(models.StreamEvent{
			Table:    table,
			Op:       req.Event.Op,
			ID:       id,
			PostID:   res.postID,
			Received: time.Now().UTC(),
		})
	}

	middleware.JSONResponse(w, http.StatusOK, models.EventHookResponse{
		Message:       res.message,
		Subscriptions: res.subscriptions,
		Notifications: res.notifications,
	})
}

func decodeRow(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errBadPayload
	}
	return json.Unmarshal(raw, v)
}

// subscribe adds the user to the post's subscribers and reports whether a
// new subscription was created.
func subscribe(ctx context.Context, tx *db.Tx, postID, userID string) (int, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO post_subscriptions (post_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`, postID, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to subscribe user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to subscribe user: %w", err)
	}
	return int(n), nil
}

func notify(ctx context.Context, tx *db.Tx, userID string, postID, commentID *string, kind, message string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, post_id, comment_id, kind, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, auth.GenerateID(), userID, postID, commentID, kind, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func postTitle(ctx context.Context, tx *db.Tx, postID string) string {
	var title sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT title FROM posts WHERE id = $1`, postID).Scan(&title)
	if err != nil || !title.Valid || title.String == "" {
		return "#" + postID
	}
	return title.String
}
