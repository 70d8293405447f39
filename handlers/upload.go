// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/govboard/auth"
	"github.com/danielhkuo/govboard/cliparse"
	"github.com/danielhkuo/govboard/db"
	"github.com/danielhkuo/govboard/metrics"
	"github.com/danielhkuo/govboard/middleware"
	"github.com/danielhkuo/govboard/models"
	"github.com/danielhkuo/govboard/storage"
)

// MessageImageUploaded is returned by a successful uploadPhoto call
const MessageImageUploaded = "Image uploaded successfully"

type UploadHandler struct {
	db    *db.DB
	cfg   cliparse.Config
	store storage.ImageStore
}

func NewUploadHandler(db *db.DB, cfg cliparse.Config, store storage.ImageStore) *UploadHandler {
	return &UploadHandler{db: db, cfg: cfg, store: store}
}

// UploadPhoto handles POST /auth/actions/uploadPhoto
// It backs the uploadPhoto(token, image) mutation.
func (h *UploadHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	var err error
	defer func() { metrics.ImageUploaded(err) }()

	var req models.UploadPhotoRequest
	if err = middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	token := req.Input.Token
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	claims, err := auth.ParseToken(token, h.cfg.JWTSecret)
	if err != nil {
		msg := "Invalid token"
		if errors.Is(err, auth.ErrExpiredToken) {
			msg = "Token expired"
		}
		middleware.ErrorResponse(w, http.StatusUnauthorized, msg)
		return
	}

	data, contentType, err := storage.DecodeImage(req.Input.Image)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, storage.ErrImageTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		middleware.ErrorResponse(w, status, err.Error())
		return
	}

	url, err := h.store.Save(r.Context(), contentType, data)
	if err != nil {
		slog.Error("failed to store image", "user_id", claims.UserID(), "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to upload image")
		return
	}

	res, err := h.db.ExecContext(r.Context(), `UPDATE users SET image = $1 WHERE id = $2`, url, claims.UserID())
	if err != nil {
		slog.Error("failed to update user image", "user_id", claims.UserID(), "error", err)
		h.discard(r.Context(), url)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to upload image")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = errors.New("user not found")
		h.discard(r.Context(), url)
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}

	slog.Info("image uploaded", "user_id", claims.UserID(), "content_type", contentType, "bytes", len(data))

	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: MessageImageUploaded})
}

// discard removes an image no user row points at.
func (h *UploadHandler) discard(ctx context.Context, url string) {
	if err := h.store.Delete(context.WithoutCancel(ctx), url); err != nil {
		slog.Warn("failed to remove orphaned image", "url", url, "error", err)
	}
}
