// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the govboard auth server.

# Route Registration

NewRouter wires handlers onto an http.ServeMux and wraps it in CORS:

	h := router.NewRouter(conn, cfg, router.Services{Tallies: subscan, Issuance: node, Images: store})

# Endpoints

Health and metrics:

	GET /healthcheck
	GET /metrics

Event hooks (POST routes require X-Event-Secret):

	POST /auth/event/post/create
	POST /auth/event/comment/create
	POST /auth/event/onchain_link/create
	GET  /auth/event/stream?table=

Actions:

	POST /auth/actions/uploadPhoto

Read models:

	GET /calendar-events?network=
	GET /tech-committee-proposals?post_type=&limit=
	GET /tech-committee-proposals/count?post_type=
	GET /referenda/{id}/vote-info?threshold=

Uploaded images are served under IMAGE_BASE_URL when an image directory is
configured.
*/
package router
