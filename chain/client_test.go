// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	t        *testing.T
	upgrader websocket.Upgrader
	values   []string

	subscribeDelay time.Duration // holds back subscribe replies

	mu      sync.Mutex
	methods []string
	subs    int
	unsub   chan string
	conn    *websocket.Conn
}

func newFakeNode(t *testing.T, values ...string) (*fakeNode, string) {
	n := &fakeNode{t: t, values: values, unsub: make(chan string, 4)}
	srv := httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(srv.Close)
	return n, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()
	defer conn.Close()

	for {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		n.mu.Lock()
		n.methods = append(n.methods, req.Method)
		n.mu.Unlock()

		switch req.Method {
		case "system_chain":
			_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": "Polkadot"})
		case methodSubscribeStorage:
			time.Sleep(n.subscribeDelay)
			n.mu.Lock()
			n.subs++
			subID := fmt.Sprintf("sub-%d", n.subs)
			n.mu.Unlock()
			_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": subID})
			for i, v := range n.values {
				_ = conn.WriteJSON(map[string]interface{}{
					"jsonrpc": "2.0",
					"method":  notificationStorage,
					"params": map[string]interface{}{
						"subscription": subID,
						"result": map[string]interface{}{
							"block":   "0x0" + string(rune('0'+i)),
							"changes": [][]interface{}{{TotalIssuanceKey, v}},
						},
					},
				})
			}
		case methodUnsubscribeStorage:
			var id string
			_ = json.Unmarshal(req.Params[0], &id)
			n.unsub <- id
			_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": true})
		default:
			_ = conn.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]interface{}{"code": -32601, "message": "Method not found"},
			})
		}
	}
}

// drop closes the current connection from the node side.
func (n *fakeNode) drop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		_ = n.conn.Close()
	}
}

func (n *fakeNode) countMethod(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.methods {
		if m == method {
			count++
		}
	}
	return count
}

func connect(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c := NewClient(url, opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_ReadyAfterConnect(t *testing.T) {
	_, url := newFakeNode(t)
	c := NewClient(url)

	select {
	case <-c.Ready():
		t.Fatal("ready before connect")
	default:
	}

	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	select {
	case <-c.Ready():
	default:
		t.Fatal("not ready after connect")
	}
}

func TestClient_ConnectFails(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1")
	err := c.Connect(context.Background())
	assert.Error(t, err)

	select {
	case <-c.Ready():
		t.Fatal("ready after failed connect")
	default:
	}
}

func TestClient_Call(t *testing.T) {
	_, url := newFakeNode(t)
	c := connect(t, url)

	var name string
	require.NoError(t, c.Call(context.Background(), &name, "system_chain"))
	assert.Equal(t, "Polkadot", name)

	err := c.Call(context.Background(), nil, "bogus_method")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestClient_CallBeforeConnect(t *testing.T) {
	c := NewClient("ws://unused")
	err := c.Call(context.Background(), nil, "system_chain")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_SubscribeTotalIssuance(t *testing.T) {
	first, err := EncodeU128(big.NewInt(10000))
	require.NoError(t, err)
	second, err := EncodeU128(big.NewInt(12000))
	require.NoError(t, err)

	node, url := newFakeNode(t, first, second)
	c := connect(t, url)

	got := make(chan *big.Int, 2)
	sub, err := c.SubscribeTotalIssuance(context.Background(), func(v *big.Int) { got <- v })
	require.NoError(t, err)

	for _, want := range []int64{10000, 12000} {
		select {
		case v := <-got:
			assert.Equal(t, want, v.Int64())
		case <-time.After(2 * time.Second):
			t.Fatal("no issuance update")
		}
	}

	sub.Unsubscribe()
	select {
	case id := <-node.unsub:
		assert.Equal(t, "sub-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("unsubscribe not sent")
	}

	// Idempotent.
	sub.Unsubscribe()
	select {
	case <-node.unsub:
		t.Fatal("second unsubscribe sent")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_CloseFailsPending(t *testing.T) {
	_, url := newFakeNode(t)
	c := connect(t, url)
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed")
	}
	assert.ErrorIs(t, c.Call(context.Background(), nil, "system_chain"), ErrClosed)
	assert.False(t, c.Connected())

	_, err := c.SubscribeTotalIssuance(context.Background(), func(*big.Int) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_ReconnectsAndResubscribes(t *testing.T) {
	value, err := EncodeU128(big.NewInt(10000))
	require.NoError(t, err)

	node, url := newFakeNode(t, value)
	c := connect(t, url, WithBackoff(10*time.Millisecond, 50*time.Millisecond))

	got := make(chan *big.Int, 4)
	sub, err := c.SubscribeTotalIssuance(context.Background(), func(v *big.Int) { got <- v })
	require.NoError(t, err)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no issuance update before drop")
	}

	node.drop()

	// The same callback hears from the new connection.
	select {
	case v := <-got:
		assert.Equal(t, int64(10000), v.Int64())
	case <-time.After(2 * time.Second):
		t.Fatal("no issuance update after reconnect")
	}
	assert.Equal(t, 2, node.countMethod(methodSubscribeStorage))
	assert.True(t, c.Connected())

	select {
	case <-c.Done():
		t.Fatal("done closed by a dropped connection")
	default:
	}

	require.NoError(t, c.Call(context.Background(), nil, "system_chain"))

	sub.Unsubscribe()
	select {
	case id := <-node.unsub:
		assert.Equal(t, "sub-2", id)
	case <-time.After(2 * time.Second):
		t.Fatal("unsubscribe not sent")
	}
}

func TestClient_SubscribeWhileDisconnected(t *testing.T) {
	value, err := EncodeU128(big.NewInt(7))
	require.NoError(t, err)

	node, url := newFakeNode(t, value)
	c := connect(t, url, WithBackoff(200*time.Millisecond, time.Second))

	node.drop()
	require.Eventually(t, func() bool { return !c.Connected() }, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, c.Call(context.Background(), nil, "system_chain"), ErrNotConnected)

	got := make(chan *big.Int, 1)
	sub, err := c.SubscribeTotalIssuance(context.Background(), func(v *big.Int) { got <- v })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	select {
	case v := <-got:
		assert.Equal(t, int64(7), v.Int64())
	case <-time.After(3 * time.Second):
		t.Fatal("queued subscription never issued")
	}
}

func TestClient_RedialAfterFailedConnect(t *testing.T) {
	_, url := newFakeNode(t)
	c := NewClient(url, WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	defer c.Close()

	c.Redial()
	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("redial never connected")
	}
	assert.True(t, c.Connected())
}

func TestClient_SubscribeTimeoutReleasesLateReply(t *testing.T) {
	node, url := newFakeNode(t)
	node.subscribeDelay = 200 * time.Millisecond
	c := connect(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	updates := 0
	_, err := c.SubscribeTotalIssuance(ctx, func(*big.Int) { updates++ })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case id := <-node.unsub:
		assert.Equal(t, "sub-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("late subscription never released")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.handlers)
	assert.Empty(t, c.subs)
	assert.Empty(t, c.pending)
	assert.Zero(t, updates)
}

func TestSentinelsCarryNoStack(t *testing.T) {
	for _, err := range []error{ErrClosed, ErrNotConnected, ErrConnectionLost, ErrBadValue} {
		assert.Equal(t, err.Error(), fmt.Sprintf("%+v", err))
	}
}

func TestDecodeU128(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"small", "0x10270000000000000000000000000000", "10000", false},
		{"zero", "0x00000000000000000000000000000000", "0", false},
		{"max", "0xffffffffffffffffffffffffffffffff", "340282366920938463463374607431768211455", false},
		{"short", "0x1027", "", true},
		{"not hex", "0xzz", "", true},
		{"no prefix", "10270000000000000000000000000000", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeU128(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestEncodeU128_RoundTrip(t *testing.T) {
	v, ok := new(big.Int).SetString("12345678901234567890123", 10)
	require.True(t, ok)

	s, err := EncodeU128(v)
	require.NoError(t, err)
	back, err := DecodeU128(s)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(back))

	_, err = EncodeU128(big.NewInt(-1))
	assert.ErrorIs(t, err, ErrBadValue)
}
