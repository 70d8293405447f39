// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/govboard/events"
	"github.com/danielhkuo/govboard/middleware"
	"github.com/danielhkuo/govboard/models"
	"github.com/danielhkuo/govboard/testutil"
)

func hookBody(table, op string, row interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id": "evt-1",
		"event": map[string]interface{}{
			"op":   op,
			"data": map[string]interface{}{"old": nil, "new": row},
		},
		"table": map[string]interface{}{"schema": "public", "name": table},
	}
}

func secretHeader() map[string]string {
	return map[string]string{middleware.EventSecretHeader: testutil.TestEventSecret}
}

type publishedEvents struct {
	mu  sync.Mutex
	got []models.StreamEvent
}

func (p *publishedEvents) record(e models.StreamEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, e)
}

func (p *publishedEvents) wait(t *testing.T, n int) []models.StreamEvent {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		if len(p.got) >= n {
			out := append([]models.StreamEvent(nil), p.got...)
			p.mu.Unlock()
			return out
		}
		p.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d published events", n)
	return nil
}

func TestPostCreateHook(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	hub := events.NewHub()
	var published publishedEvents
	hub.Subscribe(published.record, events.TopicPosts)
	handler := NewEventHookHandler(conn, testutil.GetTestConfig(), hub)

	authorID := testutil.CreateTestUser(t, conn, "alice")
	postID := testutil.CreateTestPost(t, conn, authorID, "Runtime upgrade", 1, 5)

	body := hookBody("posts", models.OpInsert, models.PostRow{ID: postID, AuthorID: authorID, TypeID: 1, TopicID: 5})
	w := httptest.NewRecorder()
	handler.PostCreate(w, testutil.MakeRequest("POST", "/auth/event/post/create", body, secretHeader()))

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.EventHookResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Subscriptions != 1 {
		t.Errorf("Expected 1 subscription, got %d", resp.Subscriptions)
	}

	n := testutil.CountRows(t, conn, `SELECT COUNT(*) FROM post_subscriptions WHERE post_id = $1 AND user_id = $2`, postID, authorID)
	if n != 1 {
		t.Errorf("Expected author to be subscribed, found %d rows", n)
	}

	got := published.wait(t, 1)
	if got[0].ID != postID || got[0].Table != events.TopicPosts || got[0].Op != models.OpInsert {
		t.Errorf("Unexpected published event: %+v", got[0])
	}

	// Redelivery is idempotent.
	w = httptest.NewRecorder()
	handler.PostCreate(w, testutil.MakeRequest("POST", "/auth/event/post/create", body, secretHeader()))
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &resp)
	if resp.Subscriptions != 0 {
		t.Errorf("Expected no new subscription on redelivery, got %d", resp.Subscriptions)
	}
}

func TestCommentCreateHook(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	handler := NewEventHookHandler(conn, testutil.GetTestConfig(), events.NewHub())

	author := testutil.CreateTestUser(t, conn, "alice")
	follower := testutil.CreateTestUser(t, conn, "bob")
	commenter := testutil.CreateTestUser(t, conn, "carol")

	postID := testutil.CreateTestPost(t, conn, author, "Treasury proposal", 1, 4)
	testutil.Subscribe(t, conn, postID, author)
	testutil.Subscribe(t, conn, postID, follower)
	commentID := testutil.CreateTestComment(t, conn, postID, commenter)

	body := hookBody("comments", models.OpInsert, models.CommentRow{ID: commentID, PostID: postID, AuthorID: commenter})
	w := httptest.NewRecorder()
	handler.CommentCreate(w, testutil.MakeRequest("POST", "/auth/event/comment/create", body, secretHeader()))

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.EventHookResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Notifications != 2 {
		t.Errorf("Expected 2 notifications, got %d", resp.Notifications)
	}

	for _, userID := range []string{author, follower} {
		n := testutil.CountRows(t, conn, `
			SELECT COUNT(*) FROM notifications
			WHERE user_id = $1 AND comment_id = $2 AND kind = $3
		`, userID, commentID, models.NotificationNewComment)
		if n != 1 {
			t.Errorf("Expected one notification for %s, got %d", userID, n)
		}
	}
	if n := testutil.CountRows(t, conn, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, commenter); n != 0 {
		t.Errorf("Commenter should not be notified, got %d", n)
	}
	if n := testutil.CountRows(t, conn, `SELECT COUNT(*) FROM post_subscriptions WHERE post_id = $1`, postID); n != 3 {
		t.Errorf("Expected commenter to be subscribed, %d subscriptions", n)
	}
}

func TestOnchainLinkCreateHook(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	handler := NewEventHookHandler(conn, testutil.GetTestConfig(), nil)

	proposer := testutil.CreateTestUser(t, conn, "dave")
	testutil.AddTestAddress(t, conn, proposer, "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5")
	postID := testutil.CreateTestPost(t, conn, proposer, "Fast track", 2, 3)
	testutil.CreateTestTechCommitteeProposal(t, conn, 7, "Proposed")
	linkID := testutil.LinkTestProposal(t, conn, postID, "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5", 7)

	tc := uint32(7)
	row := models.OnchainLinkRow{
		ID:                             linkID,
		PostID:                         postID,
		ProposerAddress:                "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5",
		OnchainTechCommitteeProposalID: &tc,
	}
	w := httptest.NewRecorder()
	handler.OnchainLinkCreate(w, testutil.MakeRequest("POST", "/auth/event/onchain_link/create",
		hookBody("onchain_links", models.OpInsert, row), secretHeader()))

	testutil.AssertStatus(t, w, http.StatusOK)
	n := testutil.CountRows(t, conn, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND kind = $2`,
		proposer, models.NotificationProposalLinked)
	if n != 1 {
		t.Errorf("Expected proposer notification, got %d", n)
	}

	// Unknown proposer address is acknowledged without side effects.
	row.ProposerAddress = "unknown"
	w = httptest.NewRecorder()
	handler.OnchainLinkCreate(w, testutil.MakeRequest("POST", "/auth/event/onchain_link/create",
		hookBody("onchain_links", models.OpInsert, row), secretHeader()))
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.EventHookResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Subscriptions != 0 || resp.Notifications != 0 {
		t.Errorf("Expected no side effects, got %+v", resp)
	}
}

func TestEventHook_Rejects(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	handler := NewEventHookHandler(conn, testutil.GetTestConfig(), nil)
	row := models.PostRow{ID: "p1", AuthorID: "u1"}

	testCases := []struct {
		name    string
		body    interface{}
		headers map[string]string
		want    int
	}{
		{"missing secret", hookBody("posts", models.OpInsert, row), nil, http.StatusForbidden},
		{"wrong secret", hookBody("posts", models.OpInsert, row), map[string]string{middleware.EventSecretHeader: "nope"}, http.StatusForbidden},
		{"wrong table", hookBody("comments", models.OpInsert, row), secretHeader(), http.StatusBadRequest},
		{"delete op", hookBody("posts", models.OpDelete, row), secretHeader(), http.StatusBadRequest},
		{"missing row", hookBody("posts", models.OpInsert, nil), secretHeader(), http.StatusBadRequest},
		{"incomplete row", hookBody("posts", models.OpInsert, models.PostRow{ID: "p1"}), secretHeader(), http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.PostCreate(w, testutil.MakeRequest("POST", "/auth/event/post/create", tc.body, tc.headers))
			testutil.AssertStatus(t, w, tc.want)
		})
	}

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/event/post/create", nil)
		req.Header.Set(middleware.EventSecretHeader, testutil.TestEventSecret)
		w := httptest.NewRecorder()
		handler.PostCreate(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}
