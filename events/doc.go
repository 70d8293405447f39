// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package events fans processed hook events out to live stream clients.
//
//	hub := events.NewHub()
//	stop := hub.Subscribe(func(e models.StreamEvent) { ... }, events.TopicComments)
//	defer stop()
//	hub.Publish(models.StreamEvent{Table: events.TopicComments, Op: models.OpInsert, ID: id})
package events
