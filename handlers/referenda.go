// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/danielhkuo/govboard/cliparse"
	"github.com/danielhkuo/govboard/middleware"
	"github.com/danielhkuo/govboard/models"
	"github.com/danielhkuo/govboard/referendum"
)

// balanceDigits is the number of decimals shown in formatted balances
const balanceDigits = 2

type ReferendumHandler struct {
	tallies  referendum.TallyFetcher
	issuance referendum.IssuanceSource
	cfg      cliparse.Config
}

func NewReferendumHandler(tallies referendum.TallyFetcher, issuance referendum.IssuanceSource, cfg cliparse.Config) *ReferendumHandler {
	return &ReferendumHandler{tallies: tallies, issuance: issuance, cfg: cfg}
}

// VoteInfo handles GET /referenda/{id}/vote-info?threshold=
// It runs one observation session and answers once the tally is in and,
// when the chain is connected, total issuance has arrived.
func (h *ReferendumHandler) VoteInfo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "referendum id must be a non-negative integer")
		return
	}
	threshold, err := referendum.ParseThreshold(r.URL.Query().Get("threshold"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	timeout := h.cfg.LoadingTimeout
	if timeout <= 0 {
		timeout = referendum.DefaultLoadingTimeout
	}

	c := referendum.NewCoordinator(h.tallies, h.issuance, referendum.CoordinatorConfig{
		Threshold:      threshold,
		LoadingTimeout: timeout,
	})
	if err := c.Activate(r.Context(), uint32(id)); err != nil {
		slog.Error("failed to start referendum session", "referendum", id, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load vote info")
		return
	}
	defer c.Deactivate()

	ctx, cancel := context.WithTimeout(r.Context(), timeout+time.Second)
	defer cancel()

	snap, err := c.Wait(ctx, h.settled)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("vote info wait ended early", "referendum", id, "error", err)
	}

	middleware.JSONResponse(w, statusFor(snap), h.voteInfo(snap))
}

// settled reports whether the snapshot is worth answering with.
func (h *ReferendumHandler) settled(s referendum.Snapshot) bool {
	switch s.Status.State {
	case referendum.StateError:
		return true
	case referendum.StateReady:
		return s.TotalIssuance != nil || !h.chainReady()
	}
	return false
}

// connectivity is implemented by issuance sources whose connection can drop
// after Ready has closed.
type connectivity interface {
	Connected() bool
}

func (h *ReferendumHandler) chainReady() bool {
	if h.issuance == nil {
		return false
	}
	select {
	case <-h.issuance.Ready():
	default:
		return false
	}
	if c, ok := h.issuance.(connectivity); ok {
		return c.Connected()
	}
	return true
}

func statusFor(s referendum.Snapshot) int {
	var dsErr *referendum.DataSourceError
	switch {
	case s.Status.State == referendum.StateReady:
		return http.StatusOK
	case errors.As(s.Err, &dsErr):
		return http.StatusBadGateway
	default:
		return http.StatusGatewayTimeout
	}
}

func (h *ReferendumHandler) voteInfo(s referendum.Snapshot) models.VoteInfoResponse {
	resp := models.VoteInfoResponse{
		ReferendumID:      s.ReferendumID,
		Threshold:         string(s.Threshold),
		Status:            s.Status.State.String(),
		Message:           s.Status.Message,
		TurnoutPercentage: s.Estimate.TurnoutPercentage,
		IsPassing:         s.Passing.Bool(),
		SwingThreshold:    amountString(s.Estimate.SwingThreshold),
	}
	if s.TotalIssuance != nil {
		resp.TotalIssuance = s.TotalIssuance.String()
	}
	if s.Tally == nil {
		return resp
	}

	t := s.Tally
	resp.AyeAmount = t.AyeAmount().String()
	resp.NayAmount = t.NayAmount().String()
	resp.AyeWithoutConviction = t.AyeWithoutConviction().String()
	resp.NayWithoutConviction = t.NayWithoutConviction().String()
	resp.Turnout = t.Turnout().String()

	format := func(v *big.Int) string {
		return referendum.FormatBalance(v, h.cfg.ChainDecimals, balanceDigits, h.cfg.ChainUnit)
	}
	swing := s.Estimate.SwingThreshold
	if swing == nil {
		swing = new(big.Int)
	}
	resp.Formatted = &models.FormattedBalances{
		AyeAmount:      format(t.AyeAmount()),
		NayAmount:      format(t.NayAmount()),
		Turnout:        format(t.Turnout()),
		SwingThreshold: format(swing),
	}
	return resp
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
