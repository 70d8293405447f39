// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"

	"github.com/danielhkuo/govboard/referendum"
)

// TotalIssuanceKey is the storage key of Balances.TotalIssuance
// (twox128("Balances") ++ twox128("TotalIssuance")).
const TotalIssuanceKey = "0xc2261276cc9d1f8598ea4b6a74b15c2f57c875e4cff74148e4628f264b974c80"

const (
	methodSubscribeStorage   = "state_subscribeStorage"
	methodUnsubscribeStorage = "state_unsubscribeStorage"
	notificationStorage      = "state_storage"

	defaultDialTimeout = 30 * time.Second
	writeTimeout       = 10 * time.Second
	defaultMinBackoff  = time.Second
	defaultMaxBackoff  = 30 * time.Second
)

var (
	ErrClosed         = errors.New("chain client closed")
	ErrNotConnected   = errors.New("chain client not connected")
	ErrConnectionLost = errors.New("chain connection lost")
	ErrBadValue       = errors.New("storage value is not a u128")
)

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// message covers both responses (ID set) and notifications (Method set).
type message struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params *struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params,omitempty"`
}

type storageChangeSet struct {
	Block   string      `json:"block"`
	Changes [][]*string `json:"changes"`
}

type call struct {
	done chan message
	// onSubscribed runs on the read loop with c.mu held, so no notification
	// can overtake the handler registration.
	onSubscribed func(id string)
}

type Option func(*Client)

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithBackoff sets the delay bounds between reconnect attempts. The delay
// doubles after every failed attempt up to max.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

// Client is a JSON-RPC client for a substrate node over a websocket.
//
// When the connection drops, pending calls fail with ErrConnectionLost and
// the client redials with exponential backoff until Close is called. Live
// subscriptions are re-issued on every new connection and keep delivering
// to the same callback.
type Client struct {
	url        string
	dialer     *websocket.Dialer
	log        *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	// writeMu serialises writers; gorilla allows one at a time.
	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn // nil while disconnected
	redialing bool
	nextID    uint64
	pending   map[uint64]*call
	handlers  map[string]func(json.RawMessage) // keyed by node subscription id
	subs      map[*subscription]struct{}

	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	readyOnce sync.Once
}

func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		dialer:     &websocket.Dialer{HandshakeTimeout: defaultDialTimeout, Proxy: http.ProxyFromEnvironment},
		log:        slog.Default(),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
		pending:    make(map[uint64]*call),
		handlers:   make(map[string]func(json.RawMessage)),
		subs:       make(map[*subscription]struct{}),
		ready:      make(chan struct{}),
		closed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "chain", "endpoint", url)
	return c
}

// Connect dials the node once and starts the read loop. Ready is closed on
// the first success. Subscriptions registered while disconnected are issued
// on the new connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return pkgerrors.Wrapf(err, "dial %s", c.url)
	}

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	if c.conn != nil {
		// Raced with the redial loop; keep the live connection.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.redialing = false
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	go c.readLoop(conn)

	c.readyOnce.Do(func() { close(c.ready) })
	c.log.Info("connected to chain node", "subscriptions", len(subs))

	for _, s := range subs {
		go c.resubscribe(s)
	}
	return nil
}

// Redial starts the background reconnect loop unless one is running or the
// client is closed.
func (c *Client) Redial() {
	c.mu.Lock()
	if c.redialing || c.conn != nil || c.isClosed() {
		c.mu.Unlock()
		return
	}
	c.redialing = true
	c.mu.Unlock()

	go c.redialLoop()
}

func (c *Client) redialLoop() {
	delay := c.minBackoff
	for {
		select {
		case <-c.closed:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
		err := c.Connect(ctx)
		cancel()
		if err == nil || errors.Is(err, ErrClosed) {
			return
		}

		c.log.Warn("chain reconnect failed", "error", err, "retry_in", delay)
		delay *= 2
		if delay > c.maxBackoff {
			delay = c.maxBackoff
		}
	}
}

// Ready returns a channel closed once the first connection is established.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Done returns a channel closed by Close.
func (c *Client) Done() <-chan struct{} { return c.closed }

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.failPending()
	c.subs = make(map[*subscription]struct{})
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// failPending must be called with c.mu held. Node subscription ids die with
// the connection, so handlers go too.
func (c *Client) failPending() {
	for id, p := range c.pending {
		close(p.done)
		delete(c.pending, id)
	}
	c.handlers = make(map[string]func(json.RawMessage))
	for s := range c.subs {
		s.nodeID = ""
	}
}

// dropped tears down conn after a read error and starts redialing.
func (c *Client) dropped(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.failPending()
	c.mu.Unlock()

	_ = conn.Close()
	c.log.Warn("chain connection lost, reconnecting", "error", err)
	c.Redial()
}

// Call sends a request and decodes its result into result.
func (c *Client) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	raw, err := c.roundTrip(ctx, method, params, nil)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return pkgerrors.Wrapf(json.Unmarshal(raw, result), "decode %s result", method)
}

// roundTrip sends method and waits for its response. When ctx ends first on
// a subscribe call, the pending entry is kept so the late reply still
// reaches onSubscribed, which releases it.
func (c *Client) roundTrip(ctx context.Context, method string, params []interface{}, onSubscribed func(string)) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.nextID++
	id := c.nextID
	p := &call{done: make(chan message, 1), onSubscribed: onSubscribed}
	c.pending[id] = p
	c.mu.Unlock()

	if err := c.write(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		c.forget(id)
		return nil, err
	}

	select {
	case msg, ok := <-p.done:
		if !ok {
			if c.isClosed() {
				return nil, ErrClosed
			}
			return nil, ErrConnectionLost
		}
		if msg.Error != nil {
			return nil, pkgerrors.Wrap(msg.Error, method)
		}
		return msg.Result, nil
	case <-ctx.Done():
		if onSubscribed == nil {
			c.forget(id)
		}
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) write(req request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return pkgerrors.Wrapf(err, "write %s", req.Method)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if !c.isClosed() {
				c.dropped(conn, err)
			}
			return
		}

		switch {
		case msg.ID != nil:
			c.deliver(*msg.ID, msg)
		case msg.Method != "" && msg.Params != nil:
			c.mu.Lock()
			h := c.handlers[msg.Params.Subscription]
			c.mu.Unlock()
			if h == nil {
				c.log.Debug("notification for unknown subscription", "method", msg.Method, "subscription", msg.Params.Subscription)
				continue
			}
			h(msg.Params.Result)
		}
	}
}

func (c *Client) deliver(id uint64, msg message) {
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	if ok && p.onSubscribed != nil && msg.Error == nil {
		var subID string
		if err := json.Unmarshal(msg.Result, &subID); err == nil {
			p.onSubscribed(subID)
		}
	}
	c.mu.Unlock()

	if ok {
		p.done <- msg
	}
}

// subscription is the handle returned by SubscribeTotalIssuance. It outlives
// connections; nodeID is the id the current connection knows it by.
type subscription struct {
	client  *Client
	params  []interface{}
	handler func(json.RawMessage)
	once    sync.Once

	// Guarded by client.mu.
	nodeID   string
	released bool
}

// attach binds the node id from a subscribe reply. Called with c.mu held.
func (c *Client) attach(s *subscription, id string) {
	if s.released {
		go c.unsubscribe(id)
		return
	}
	s.nodeID = id
	c.handlers[id] = s.handler
}

// Unsubscribe removes the handler and tells the node, without waiting for
// the reply. A subscribe reply still in flight is released when it lands.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		c := s.client
		c.mu.Lock()
		s.released = true
		delete(c.subs, s)
		id := s.nodeID
		if id != "" {
			delete(c.handlers, id)
		}
		c.mu.Unlock()

		if id != "" {
			c.unsubscribe(id)
		}
	})
}

func (c *Client) unsubscribe(nodeID string) {
	c.mu.Lock()
	if c.isClosed() || c.conn == nil {
		c.mu.Unlock()
		return
	}
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	err := c.write(request{JSONRPC: "2.0", ID: id, Method: methodUnsubscribeStorage, Params: []interface{}{nodeID}})
	if err != nil {
		c.log.Warn("failed to unsubscribe", "subscription", nodeID, "error", err)
		return
	}
	c.log.Debug("unsubscribed", "subscription", nodeID)
}

func (c *Client) subscribe(ctx context.Context, s *subscription) error {
	_, err := c.roundTrip(ctx, methodSubscribeStorage, s.params, func(id string) { c.attach(s, id) })
	return err
}

func (c *Client) resubscribe(s *subscription) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	if err := c.subscribe(ctx, s); err != nil {
		// A lost connection re-issues it on the next one.
		if !errors.Is(err, ErrConnectionLost) && !errors.Is(err, ErrClosed) && !errors.Is(err, ErrNotConnected) {
			c.log.Warn("resubscribe failed", "error", err)
		}
		return
	}
	c.log.Debug("resubscribed to total issuance")
}

// SubscribeTotalIssuance subscribes to Balances.TotalIssuance. onUpdate runs
// on the read loop for every change carrying a value. While disconnected
// the subscription is registered and issued once the client reconnects.
func (c *Client) SubscribeTotalIssuance(ctx context.Context, onUpdate func(*big.Int)) (referendum.Subscription, error) {
	handler := func(raw json.RawMessage) {
		var set storageChangeSet
		if err := json.Unmarshal(raw, &set); err != nil {
			c.log.Warn("malformed storage notification", "error", err)
			return
		}
		for _, change := range set.Changes {
			if len(change) != 2 || change[0] == nil || change[1] == nil || *change[0] != TotalIssuanceKey {
				continue
			}
			v, err := DecodeU128(*change[1])
			if err != nil {
				c.log.Warn("bad total issuance value", "block", set.Block, "error", err)
				continue
			}
			onUpdate(v)
		}
	}
	s := &subscription{client: c, params: []interface{}{[]string{TotalIssuanceKey}}, handler: handler}

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		return nil, pkgerrors.Wrap(ErrClosed, "subscribe total issuance")
	}
	c.subs[s] = struct{}{}
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		c.log.Debug("total issuance subscription queued until connected")
		return s, nil
	}

	err := c.subscribe(ctx, s)
	switch {
	case err == nil:
	case errors.Is(err, ErrConnectionLost), errors.Is(err, ErrNotConnected):
		// Redial issues it again.
		return s, nil
	default:
		s.Unsubscribe()
		return nil, pkgerrors.Wrap(err, "subscribe total issuance")
	}

	c.mu.Lock()
	id := s.nodeID
	c.mu.Unlock()
	c.log.Debug("subscribed to total issuance", "subscription", id)
	return s, nil
}

// DecodeU128 decodes a SCALE-encoded little-endian u128 given as 0x hex.
func DecodeU128(s string) (*big.Int, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "decode %q", s)
	}
	if len(b) != 16 {
		return nil, pkgerrors.Wrapf(ErrBadValue, "got %d bytes", len(b))
	}
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be), nil
}

// EncodeU128 is the inverse of DecodeU128.
func EncodeU128(v *big.Int) (string, error) {
	if v.Sign() < 0 || v.BitLen() > 128 {
		return "", pkgerrors.Wrapf(ErrBadValue, "%s out of range", v)
	}
	be := v.FillBytes(make([]byte, 16))
	le := make([]byte, 16)
	for i := range be {
		le[15-i] = be[i]
	}
	return hexutil.Encode(le), nil
}
