// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the govboard auth server.

# Handler Types

Each handler is a struct holding its dependencies:

  - EventHookHandler: post, comment and on-chain link insert events
  - UploadHandler: the uploadPhoto action
  - CalendarHandler: calendar events per network
  - ProposalHandler: technical committee proposal posts
  - ReferendumHandler: referendum vote estimates
  - StreamHandler: server-sent events for processed hooks

Handlers are created via constructor functions:

	hooks := handlers.NewEventHookHandler(conn, cfg, hub)

# Event Hooks

Hook requests carry the shared secret in the X-Event-Secret header and the
inserted row under event.data.new. Each hook runs in one transaction:

  - post created: the author is subscribed to the post
  - comment created: the commenter is subscribed and every other
    subscriber gets a notification
  - on-chain link created: the user owning the proposer address is
    subscribed and notified

Redelivered events do not create duplicate subscriptions. Processed events
are published to the events hub.

# Vote Info

VoteInfo runs one referendum.Coordinator session per request and answers
when the tally has arrived and, if the chain is connected, the total
issuance too. Status codes:

  - 200: estimate ready
  - 502: Subscan returned an error
  - 504: data still loading after the loading timeout

# Error Handling

All handlers return JSON errors:

	{"error": "Bad Request", "message": "network is required"}
*/
package handlers
