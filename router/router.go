// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/govboard/cliparse"
	"github.com/danielhkuo/govboard/db"
	"github.com/danielhkuo/govboard/events"
	"github.com/danielhkuo/govboard/handlers"
	"github.com/danielhkuo/govboard/metrics"
	"github.com/danielhkuo/govboard/middleware"
	"github.com/danielhkuo/govboard/referendum"
	"github.com/danielhkuo/govboard/storage"
)

// Services are the collaborators handlers need beyond the database
type Services struct {
	Tallies  referendum.TallyFetcher
	Issuance referendum.IssuanceSource
	Images   storage.ImageStore
	ImageDir string // served under cfg.ImageBaseURL when set
	Hub      *events.Hub
}

func NewRouter(conn *db.DB, cfg cliparse.Config, svc Services) http.Handler {
	mux := http.NewServeMux()

	if svc.Hub == nil {
		svc.Hub = events.NewHub()
	}

	// Initialize handlers
	hookHandler := handlers.NewEventHookHandler(conn, cfg, svc.Hub)
	uploadHandler := handlers.NewUploadHandler(conn, cfg, svc.Images)
	calendarHandler := handlers.NewCalendarHandler(conn)
	proposalHandler := handlers.NewProposalHandler(conn)
	referendumHandler := handlers.NewReferendumHandler(svc.Tallies, svc.Issuance, cfg)
	streamHandler := handlers.NewStreamHandler(svc.Hub)

	// Health check
	mux.HandleFunc("GET /healthcheck", handlers.Healthcheck)

	// Event hooks (called by the GraphQL engine after inserts)
	mux.HandleFunc("POST /auth/event/post/create", middleware.WithLogging(hookHandler.PostCreate))
	mux.HandleFunc("POST /auth/event/comment/create", middleware.WithLogging(hookHandler.CommentCreate))
	mux.HandleFunc("POST /auth/event/onchain_link/create", middleware.WithLogging(hookHandler.OnchainLinkCreate))
	mux.HandleFunc("GET /auth/event/stream", middleware.WithLogging(streamHandler.Stream))

	// Actions
	mux.HandleFunc("POST /auth/actions/uploadPhoto", middleware.WithLogging(uploadHandler.UploadPhoto))

	// Read models
	mux.HandleFunc("GET /calendar-events", middleware.WithLogging(calendarHandler.GetEvents))
	mux.HandleFunc("GET /tech-committee-proposals", middleware.WithLogging(proposalHandler.LatestTechCommitteeProposals))
	mux.HandleFunc("GET /tech-committee-proposals/count", middleware.WithLogging(proposalHandler.CountTechCommitteeProposals))

	// Referendum estimates
	mux.HandleFunc("GET /referenda/{id}/vote-info", middleware.WithLogging(referendumHandler.VoteInfo))

	// Uploaded images
	if svc.ImageDir != "" && cfg.ImageBaseURL != "" {
		prefix := cfg.ImageBaseURL + "/"
		mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(svc.ImageDir))))
	}

	mux.Handle("GET /metrics", metrics.Handler())

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("govboard auth server"))
	})

	return middleware.CORS(mux)
}
