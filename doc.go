// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the govboard auth server.

govboard backs a governance discussion board for Substrate chains. It
receives insert events from the GraphQL engine, keeps post subscriptions
and notifications current, serves a few read models and estimates whether
a democracy referendum is on track to pass.

# Starting the Server

The server requires environment variables or CLI flags for configuration.
A .env file in the working directory is read first; variables already set
in the environment win.

	DATABASE_URL=govboard.db JWT_SECRET=... EVENT_SECRET=... SUBSCAN_API_KEY=... go run .

Or with flags:

	go run . -p 8010 -t postgres -d "postgres://..." -network kusama

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - JWT_SECRET (-jwt-secret): HMAC secret for access tokens
  - EVENT_SECRET (-event-secret): shared secret sent by the event hooks
  - SUBSCAN_API_KEY (-subscan-key): key for the Subscan referendum API

Optional settings:

  - PORT (-p): Server port (default: 8010)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - LOG_LEVEL (-log-level): debug, info, warn or error
  - NETWORK (-network): Subscan network name (default: polkadot)
  - WS_PROVIDER (-ws): chain websocket endpoint
  - CHAIN_DECIMALS, CHAIN_UNIT: balance formatting (default: 10, DOT)
  - LOADING_TIMEOUT (-loading-timeout): how long vote data may load
  - IMAGE_DIR (-image-dir), IMAGE_BASE_URL: uploaded image storage

# Architecture

  - handlers: HTTP request handlers
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response and row types
  - referendum: Tallies, threshold math, estimation and session coordination
  - chain: Substrate websocket RPC client for total issuance
  - events: In-process fan-out of processed hook events
  - storage: Image decoding and disk storage
  - metrics: Prometheus collectors
  - auth: Access tokens and event secret checks
  - db: Connection, placeholder rebinding and migrations
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
