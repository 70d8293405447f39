// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielhkuo/govboard/events"
	"github.com/danielhkuo/govboard/referendum"
	"github.com/danielhkuo/govboard/storage"
	"github.com/danielhkuo/govboard/testutil"
)

type failingFetcher struct{}

func (failingFetcher) FetchTally(_ context.Context, id uint32) (referendum.VoteTally, error) {
	return referendum.VoteTally{}, &referendum.DataSourceError{ReferendumID: id, Message: "unavailable"}
}

func newTestRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	dir := t.TempDir()
	store, err := storage.NewDiskStore(dir, "/images")
	if err != nil {
		t.Fatalf("Failed to create image store: %v", err)
	}
	return NewRouter(conn, testutil.GetTestConfig(), Services{
		Tallies:  failingFetcher{},
		Images:   store,
		ImageDir: dir,
		Hub:      events.NewHub(),
	}), dir
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/healthcheck", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "govboard auth server"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	mux, _ := newTestRouter(t)

	// 400, 403 and 502 are all valid responses depending on handler logic
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/healthcheck"},
		{"GET", "/"},

		{"POST", "/auth/event/post/create"},
		{"POST", "/auth/event/comment/create"},
		{"POST", "/auth/event/onchain_link/create"},
		{"POST", "/auth/actions/uploadPhoto"},

		{"GET", "/calendar-events"},
		{"GET", "/tech-committee-proposals"},
		{"GET", "/tech-committee-proposals/count"},
		{"GET", "/referenda/1/vote-info"},
		{"GET", "/metrics"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed || w.Code == http.StatusNotFound {
				t.Errorf("Route %s %s returned %d, expected route handler to exist", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/healthcheck"},
		{"GET", "/auth/event/post/create"},
		{"DELETE", "/referenda/1/vote-info"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestVoteInfoRoute(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/referenda/42/vote-info", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 from failing data source, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"referendum_id":42`) {
		t.Errorf("Expected referendum id in body, got %s", w.Body.String())
	}
}

func TestImagesServed(t *testing.T) {
	mux, dir := newTestRouter(t)
	if err := os.WriteFile(filepath.Join(dir, "avatar.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("Failed to write image: %v", err)
	}

	req := httptest.NewRequest("GET", "/images/avatar.png", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w.Body.String() != "png-bytes" {
		t.Errorf("Unexpected body %q", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("OPTIONS", "/auth/actions/uploadPhoto", nil)
	req.Header.Set("Origin", "https://polkassembly.io")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://polkassembly.io" {
		t.Errorf("Expected origin echoed, got %q", got)
	}
}
