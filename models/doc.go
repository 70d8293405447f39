// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - EventHookRequest: {id, event: {op, data: {old, new}}, table: {schema, name}}
  - PostRow, CommentRow, OnchainLinkRow: rows carried in event.data.new
  - UploadPhotoRequest: {action: {name}, input: {token, image}}

# Response Types

Types for JSON responses:

  - MessageResponse: message
  - EventHookResponse: message, subscriptions, notifications
  - CountResponse: count
  - VoteInfoResponse: tally, issuance, estimate and loading status
  - StreamEvent: one processed hook, pushed to stream clients
  - ErrorResponse: error, message

# Domain Types

  - User, Author: accounts and the author fields embedded in posts
  - CalendarEvent: governance calendar entry
  - TechCommitteeProposalPost: post linked to a tech committee proposal
  - Notification: per-user notification row

# Constants

Hook operations:

	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
	OpManual = "MANUAL"

Proposal statuses hidden from listings:

	ClosedProposalStatuses = {"Closed", "Approved", "Executed", "Disapproved"}
*/
package models
