// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events

import (
	"strings"

	observable "github.com/GianlucaGuarini/go-observable"

	"github.com/danielhkuo/govboard/models"
)

// Topics events are published on. Every event goes to its table topic and
// to TopicAll.
const (
	TopicAll          = "all"
	TopicPosts        = "posts"
	TopicComments     = "comments"
	TopicOnchainLinks = "onchain_links"
)

// Hub fans processed hook events out to stream subscribers.
type Hub struct {
	ob *observable.Observable
}

func NewHub() *Hub {
	return &Hub{ob: observable.New()}
}

// Publish delivers e to every subscriber of its topics.
// Subscribers must not block.
func (h *Hub) Publish(e models.StreamEvent) {
	if e.Table != "" {
		h.ob.Trigger(e.Table, e)
	}
	h.ob.Trigger(TopicAll, e)
}

// Subscribe registers fn for the given topics and returns a function that
// removes it. No topics means TopicAll.
func (h *Hub) Subscribe(fn func(models.StreamEvent), topics ...string) (unsubscribe func()) {
	if len(topics) == 0 {
		topics = []string{TopicAll}
	}
	event := strings.Join(topics, " ")

	cb := func(args ...interface{}) {
		if len(args) == 0 {
			return
		}
		if e, ok := args[0].(models.StreamEvent); ok {
			fn(e)
		}
	}
	h.ob.On(event, cb)

	return func() { h.ob.Off(event, cb) }
}

// ValidTopic reports whether topic can be subscribed to.
func ValidTopic(topic string) bool {
	switch topic {
	case TopicAll, TopicPosts, TopicComments, TopicOnchainLinks:
		return true
	}
	return false
}
