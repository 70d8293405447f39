// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referendum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	referendumPath        = "/api/scan/democracy/referendum"
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 1 << 20
)

// TallyFetcher loads the current vote tally of a referendum.
type TallyFetcher interface {
	FetchTally(ctx context.Context, referendumID uint32) (VoteTally, error)
}

// SubscanClient reads referendum tallies from the Subscan indexing API.
type SubscanClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type SubscanOption func(*SubscanClient)

// WithBaseURL points the client at a different host, e.g. a test server.
func WithBaseURL(u string) SubscanOption {
	return func(c *SubscanClient) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) SubscanOption {
	return func(c *SubscanClient) { c.http = hc }
}

// NewSubscanClient builds a client for https://{network}.api.subscan.io.
// The API key is required.
func NewSubscanClient(network, apiKey string, opts ...SubscanOption) (*SubscanClient, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Setting: "SUBSCAN_API_KEY"}
	}

	c := &SubscanClient{
		baseURL: fmt.Sprintf("https://%s.api.subscan.io", network),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type referendumRequest struct {
	ReferendumIndex uint32 `json:"referendum_index"`
}

type referendumResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    *struct {
		Info *referendumInfo `json:"info"`
	} `json:"data"`
}

type referendumInfo struct {
	AyeAmount            Amount `json:"aye_amount"`
	NayAmount            Amount `json:"nay_amount"`
	AyeWithoutConviction Amount `json:"aye_without_conviction"`
	NayWithoutConviction Amount `json:"nay_without_conviction"`
	Turnout              Amount `json:"turnout"`
}

// FetchTally posts the referendum index and decodes the tally. Any error
// payload, non-2xx status or transport failure becomes a *DataSourceError.
func (c *SubscanClient) FetchTally(ctx context.Context, referendumID uint32) (VoteTally, error) {
	fail := func(msg string, cause error) (VoteTally, error) {
		return VoteTally{}, &DataSourceError{ReferendumID: referendumID, Message: msg, Cause: cause}
	}

	body, err := json.Marshal(referendumRequest{ReferendumIndex: referendumID})
	if err != nil {
		return fail("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+referendumPath, bytes.NewReader(body))
	if err != nil {
		return fail("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fail("request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail("read response", err)
	}

	var payload referendumResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		if resp.StatusCode/100 != 2 {
			return fail(fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
		}
		return fail("decode response", err)
	}

	if len(payload.Errors) > 0 && string(payload.Errors) != "null" {
		return fail("Something went wrong with subscan api", errors.New(string(payload.Errors)))
	}
	if resp.StatusCode/100 != 2 {
		return fail(fmt.Sprintf("unexpected status %d", resp.StatusCode), errors.New(payload.Message))
	}
	if payload.Code != 0 {
		return fail(fmt.Sprintf("subscan code %d", payload.Code), errors.New(payload.Message))
	}
	if payload.Data == nil || payload.Data.Info == nil {
		return fail("response has no referendum info", nil)
	}

	info := payload.Data.Info
	tally, err := NewVoteTally(
		info.AyeAmount.Int(),
		info.NayAmount.Int(),
		info.AyeWithoutConviction.Int(),
		info.NayWithoutConviction.Int(),
		info.Turnout.Int(),
	)
	if err != nil {
		return fail("invalid tally", err)
	}
	return tally, nil
}

// Amount decodes a balance sent either as a JSON number or as a decimal
// string, without going through float64.
type Amount struct {
	v *big.Int
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		a.v = new(big.Int)
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return errors.Errorf("invalid amount %q", s)
	}
	a.v = v
	return nil
}

func (a Amount) Int() *big.Int {
	return copyOrZero(a.v)
}
