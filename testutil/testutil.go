// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/govboard/auth"
	"github.com/danielhkuo/govboard/cliparse"
	"github.com/danielhkuo/govboard/db"
)

const (
	TestJWTSecret   = "test-jwt-secret"
	TestEventSecret = "test-event-secret"
)

// SetupTestDB opens a fresh in-memory SQLite database with all migrations
// applied
func SetupTestDB(t *testing.T) *db.DB {
	t.Helper()

	conn, err := db.Open(db.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           8010,
		DatabaseURL:    ":memory:",
		DatabaseType:   string(db.SQLite),
		JWTSecret:      TestJWTSecret,
		EventSecret:    TestEventSecret,
		SubscanAPIKey:  "test-subscan-key",
		Network:        "polkadot",
		ChainDecimals:  10,
		ChainUnit:      "DOT",
		LoadingTimeout: 2 * time.Second,
		ImageBaseURL:   "/images",
	}
}

// CreateTestUser inserts a user and returns its ID
func CreateTestUser(t *testing.T, conn *db.DB, username string) string {
	t.Helper()

	userID := auth.GenerateID()
	_, err := conn.Exec(`
		INSERT INTO users (id, username, created_at)
		VALUES ($1, $2, $3)
	`, userID, username, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return userID
}

// AddTestAddress links an on-chain address to a user
func AddTestAddress(t *testing.T, conn *db.DB, userID, address string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO addresses (id, user_id, network, address, default_address)
		VALUES ($1, $2, 'polkadot', $3, $4)
	`, auth.GenerateID(), userID, address, true)
	if err != nil {
		t.Fatalf("Failed to create test address: %v", err)
	}
}

// CreateTestPost inserts a post of the given type and returns its ID.
// Type 1 is a discussion, type 2 an on-chain post.
func CreateTestPost(t *testing.T, conn *db.DB, authorID, title string, typeID, topicID int) string {
	t.Helper()

	postID := auth.GenerateID()
	now := time.Now().UTC()
	_, err := conn.Exec(`
		INSERT INTO posts (id, author_id, title, content, type_id, topic_id, created_at, updated_at)
		VALUES ($1, $2, $3, 'content', $4, $5, $6, $6)
	`, postID, authorID, title, typeID, topicID, now)
	if err != nil {
		t.Fatalf("Failed to create test post: %v", err)
	}

	return postID
}

// CreateTestComment inserts a comment and returns its ID
func CreateTestComment(t *testing.T, conn *db.DB, postID, authorID string) string {
	t.Helper()

	commentID := auth.GenerateID()
	_, err := conn.Exec(`
		INSERT INTO comments (id, post_id, author_id, content, created_at)
		VALUES ($1, $2, $3, 'a comment', $4)
	`, commentID, postID, authorID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test comment: %v", err)
	}

	return commentID
}

// CreateTestTechCommitteeProposal inserts an indexed proposal
func CreateTestTechCommitteeProposal(t *testing.T, conn *db.DB, id uint32, status string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO tech_committee_proposals (id, proposal_hash, proposer, method, status)
		VALUES ($1, $2, 'proposer', 'fastTrack', $3)
	`, id, "0xhash", status)
	if err != nil {
		t.Fatalf("Failed to create test proposal: %v", err)
	}
}

// LinkTestProposal links a post to a tech committee proposal and returns
// the link ID
func LinkTestProposal(t *testing.T, conn *db.DB, postID, proposer string, proposalID uint32) string {
	t.Helper()

	linkID := auth.GenerateID()
	_, err := conn.Exec(`
		INSERT INTO onchain_links (id, post_id, proposer_address, onchain_tech_committee_proposal_id)
		VALUES ($1, $2, $3, $4)
	`, linkID, postID, proposer, proposalID)
	if err != nil {
		t.Fatalf("Failed to link test proposal: %v", err)
	}

	return linkID
}

// Subscribe adds a post subscription
func Subscribe(t *testing.T, conn *db.DB, postID, userID string) {
	t.Helper()

	_, err := conn.Exec(`INSERT INTO post_subscriptions (post_id, user_id) VALUES ($1, $2)`, postID, userID)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
}

// CountRows returns the number of rows matching a query
func CountRows(t *testing.T, conn *db.DB, query string, args ...interface{}) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
