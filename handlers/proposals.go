// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/danielhkuo/govboard/db"
	"github.com/danielhkuo/govboard/middleware"
	"github.com/danielhkuo/govboard/models"
)

const (
	defaultProposalLimit = 5
	maxProposalLimit     = 100
)

type ProposalHandler struct {
	db *db.DB
}

func NewProposalHandler(db *db.DB) *ProposalHandler {
	return &ProposalHandler{db: db}
}

// LatestTechCommitteeProposals handles GET /tech-committee-proposals?post_type=&limit=
// Posts are ordered by proposal id, newest first. Proposals with a closed
// status are returned as null.
func (h *ProposalHandler) LatestTechCommitteeProposals(w http.ResponseWriter, r *http.Request) {
	postType, ok := postTypeParam(w, r)
	if !ok {
		return
	}

	limit := defaultProposalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxProposalLimit)
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT p.id, p.title, p.created_at, p.updated_at,
		       u.id, u.username, u.name, u.image,
		       pt.id, pt.name, tp.id, tp.name,
		       ol.id, ol.onchain_tech_committee_proposal_id, ol.proposer_address,
		       tcp.id, tcp.status, tcp.method,
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id)
		FROM posts p
		JOIN users u ON u.id = p.author_id
		JOIN post_types pt ON pt.id = p.type_id
		JOIN post_topics tp ON tp.id = p.topic_id
		JOIN onchain_links ol ON ol.post_id = p.id
		LEFT JOIN tech_committee_proposals tcp ON tcp.id = ol.onchain_tech_committee_proposal_id
		WHERE p.type_id = $1 AND ol.onchain_tech_committee_proposal_id IS NOT NULL
		ORDER BY ol.onchain_tech_committee_proposal_id DESC
		LIMIT $2
	`, postType, limit)
	if err != nil {
		slog.Error("failed to query tech committee proposals", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load proposals")
		return
	}
	defer rows.Close()

	posts := []models.TechCommitteeProposalPost{}
	for rows.Next() {
		var (
			p                      models.TechCommitteeProposalPost
			title, name, image     sql.NullString
			proposalID             sql.NullInt64
			proposalStatus, method sql.NullString
			linkProposalID         int64
		)
		err := rows.Scan(
			&p.ID, &title, &p.CreatedAt, &p.UpdatedAt,
			&p.Author.ID, &p.Author.Username, &name, &image,
			&p.Type.ID, &p.Type.Name, &p.Topic.ID, &p.Topic.Name,
			&p.OnchainLink.ID, &linkProposalID, &p.OnchainLink.ProposerAddress,
			&proposalID, &proposalStatus, &method,
			&p.CommentsCount,
		)
		if err != nil {
			slog.Error("failed to scan tech committee proposal", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load proposals")
			return
		}

		p.Title = nullString(title)
		p.Author.Name = nullString(name)
		p.Author.Image = nullString(image)
		p.OnchainLink.OnchainTechCommitteeProposalID = uint32(linkProposalID)
		if proposalID.Valid && !slices.Contains(models.ClosedProposalStatuses, proposalStatus.String) {
			p.OnchainLink.OnchainTechCommitteeProposal = &models.TechCommitteeProposal{
				ID:     uint32(proposalID.Int64),
				Status: proposalStatus.String,
				Method: nullString(method),
			}
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate tech committee proposals", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to load proposals")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, posts)
}

// CountTechCommitteeProposals handles GET /tech-committee-proposals/count?post_type=
func (h *ProposalHandler) CountTechCommitteeProposals(w http.ResponseWriter, r *http.Request) {
	postType, ok := postTypeParam(w, r)
	if !ok {
		return
	}

	var count int
	err := h.db.QueryRowContext(r.Context(), `
		SELECT COUNT(*)
		FROM posts p
		JOIN onchain_links ol ON ol.post_id = p.id
		WHERE p.type_id = $1 AND ol.onchain_tech_committee_proposal_id IS NOT NULL
	`, postType).Scan(&count)
	if err != nil {
		slog.Error("failed to count tech committee proposals", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to count proposals")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CountResponse{Count: count})
}

func postTypeParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("post_type")
	if v == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "post_type is required")
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "post_type must be an integer")
		return 0, false
	}
	return n, true
}
