// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referendum

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   referendumRequest
}

func newSubscanServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.Header = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&captured.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestNewSubscanClient_RequiresKey(t *testing.T) {
	_, err := NewSubscanClient("polkadot", "")
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "SUBSCAN_API_KEY", cfgErr.Setting)
}

func TestNewSubscanClient_NetworkURL(t *testing.T) {
	c, err := NewSubscanClient("kusama", "key")
	require.NoError(t, err)
	assert.Equal(t, "https://kusama.api.subscan.io", c.baseURL)
}

func TestFetchTally_Success(t *testing.T) {
	srv, req := newSubscanServer(t, http.StatusOK, `{
		"code": 0,
		"message": "Success",
		"data": {"info": {
			"referendum_index": 42,
			"aye_amount": "700000000000000000000000000",
			"nay_amount": "300",
			"aye_without_conviction": 700,
			"nay_without_conviction": "300",
			"turnout": "1000"
		}}
	}`)

	c, err := NewSubscanClient("polkadot", "secret", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	tally, err := c.FetchTally(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "700000000000000000000000000", tally.AyeAmount().String())
	assert.Equal(t, int64(300), tally.NayAmount().Int64())
	assert.Equal(t, int64(700), tally.AyeWithoutConviction().Int64())
	assert.Equal(t, int64(300), tally.NayWithoutConviction().Int64())
	assert.Equal(t, int64(1000), tally.Turnout().Int64())

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, referendumPath, req.Path)
	assert.Equal(t, "secret", req.Header.Get("X-API-Key"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, uint32(42), req.Body.ReferendumIndex)
}

func TestFetchTally_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"error payload", http.StatusOK, `{"errors": [{"message": "boom"}]}`},
		{"non-zero code", http.StatusOK, `{"code": 10004, "message": "Record Not Found", "data": null}`},
		{"missing info", http.StatusOK, `{"code": 0, "data": {}}`},
		{"bad status", http.StatusTooManyRequests, `{"code": 429, "message": "rate limited"}`},
		{"bad status without json", http.StatusBadGateway, `<html>bad gateway</html>`},
		{"malformed amount", http.StatusOK, `{"code": 0, "data": {"info": {"aye_amount": "12abc"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newSubscanServer(t, tt.status, tt.body)
			c, err := NewSubscanClient("polkadot", "secret", WithBaseURL(srv.URL))
			require.NoError(t, err)

			_, err = c.FetchTally(context.Background(), 7)
			var dsErr *DataSourceError
			require.True(t, errors.As(err, &dsErr), "expected DataSourceError, got %v", err)
			assert.Equal(t, uint32(7), dsErr.ReferendumID)
		})
	}
}

func TestFetchTally_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewSubscanClient("polkadot", "secret", WithBaseURL(url))
	require.NoError(t, err)

	_, err = c.FetchTally(context.Background(), 1)
	var dsErr *DataSourceError
	assert.True(t, errors.As(err, &dsErr))
}
