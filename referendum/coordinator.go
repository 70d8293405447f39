// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referendum

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"
)

// DefaultLoadingTimeout bounds how long a snapshot reports loading before it
// switches to an error status. The fetch itself keeps running.
const DefaultLoadingTimeout = 30 * time.Second

const (
	MessageLoadingVotes = "Loading votes"
	MessageUnresponsive = "Api is unresponsive."
)

type LoadState int

const (
	StateLoading LoadState = iota
	StateReady
	StateError
)

func (s LoadState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "loading"
	}
}

type LoadingStatus struct {
	State   LoadState
	Message string
}

func (s LoadingStatus) IsLoading() bool { return s.State == StateLoading }

// Subscription is an owned handle on a live subscription. Unsubscribe must
// be safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

// IssuanceSource delivers total issuance updates once its connection is
// ready. Ready returns a channel that is closed when subscriptions can be
// made.
type IssuanceSource interface {
	Ready() <-chan struct{}
	SubscribeTotalIssuance(ctx context.Context, onUpdate func(*big.Int)) (Subscription, error)
}

// Snapshot is a copy of the coordinator state at one point in time.
type Snapshot struct {
	ReferendumID  uint32
	Threshold     Threshold
	Status        LoadingStatus
	Tally         *VoteTally
	TotalIssuance *big.Int
	Passing       PassingState
	Estimate      Estimate
	Err           error
}

type CoordinatorConfig struct {
	Threshold      Threshold
	PassingRule    PassingRule
	LoadingTimeout time.Duration
	Logger         *slog.Logger

	// OnChange runs on the coordinator goroutine after every state change.
	// It must not block.
	OnChange func(Snapshot)
}

type lifecycle int

const (
	idle lifecycle = iota
	active
	stopped
)

// Coordinator drives the tally fetch and the issuance subscription into an
// Estimator. All session state lives on a single goroutine started by
// Activate; other methods talk to it over a channel.
type Coordinator struct {
	tallies  TallyFetcher
	issuance IssuanceSource
	cfg      CoordinatorConfig
	log      *slog.Logger

	mu    sync.Mutex
	state lifecycle

	events  chan func(*session)
	quit    chan struct{}
	stopped chan struct{}
	final   Snapshot
}

func NewCoordinator(tallies TallyFetcher, issuance IssuanceSource, cfg CoordinatorConfig) *Coordinator {
	if cfg.PassingRule == nil {
		cfg.PassingRule = AssumeFailing
	}
	if cfg.LoadingTimeout <= 0 {
		cfg.LoadingTimeout = DefaultLoadingTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Coordinator{
		tallies:  tallies,
		issuance: issuance,
		cfg:      cfg,
		log:      log.With("component", "referendum"),
		events:   make(chan func(*session)),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

type waiter struct {
	cond func(Snapshot) bool
	ch   chan Snapshot
}

type session struct {
	ctx          context.Context
	referendumID uint32
	generation   uint64
	tally        *VoteTally
	issuance     *big.Int
	passing      PassingState
	status       LoadingStatus
	err          error
	estimate     Estimate
	estimator    Estimator

	sub         Subscription
	subscribing bool
	deadline    <-chan time.Time
	timer       *time.Timer
	waiters     []waiter
	done        bool
}

func (s *session) snapshot(threshold Threshold) Snapshot {
	snap := Snapshot{
		ReferendumID: s.referendumID,
		Threshold:    threshold,
		Status:       s.status,
		Passing:      s.passing,
		Estimate:     s.estimate.clone(),
		Err:          s.err,
	}
	if s.tally != nil {
		t := *s.tally
		snap.Tally = &t
	}
	if s.issuance != nil {
		snap.TotalIssuance = new(big.Int).Set(s.issuance)
	}
	return snap
}

// Activate starts the session for referendumID. The tally fetch starts at
// once; the issuance subscription starts when the source is ready.
func (c *Coordinator) Activate(ctx context.Context, referendumID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case active:
		return ErrAlreadyActive
	case stopped:
		return ErrNotActive
	}
	c.state = active

	go c.run(ctx, referendumID)
	return nil
}

// Deactivate tears the session down and releases the subscription. Results
// still in flight are discarded. Safe to call more than once.
func (c *Coordinator) Deactivate() {
	c.mu.Lock()
	prev := c.state
	if prev != stopped {
		c.state = stopped
		close(c.quit)
	}
	c.mu.Unlock()

	if prev == idle {
		close(c.stopped)
		return
	}
	<-c.stopped
}

// SetReferendum switches the coordinator to another referendum. This starts
// a fresh observation: tally, passing state and estimate are cleared and the
// tally is fetched again. Total issuance is kept.
func (c *Coordinator) SetReferendum(referendumID uint32) error {
	ok := c.post(func(s *session) {
		if s.referendumID == referendumID {
			return
		}
		s.referendumID = referendumID
		s.tally = nil
		s.passing = PassingUnknown
		s.err = nil
		s.estimate = Estimate{SwingThreshold: new(big.Int)}
		s.estimator = Estimator{}
		s.status = LoadingStatus{State: StateLoading, Message: MessageLoadingVotes}
		c.fetch(s)
		c.changed(s)
	})
	if !ok {
		return ErrNotActive
	}
	return nil
}

// Snapshot returns the current state. Before activation it reports loading;
// after deactivation it returns the final state.
func (c *Coordinator) Snapshot() Snapshot {
	ch := make(chan Snapshot, 1)
	if c.post(func(s *session) { ch <- s.snapshot(c.cfg.Threshold) }) {
		return <-ch
	}

	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st == idle {
		return Snapshot{
			Threshold: c.cfg.Threshold,
			Status:    LoadingStatus{State: StateLoading, Message: MessageLoadingVotes},
			Estimate:  Estimate{SwingThreshold: new(big.Int)},
		}
	}
	<-c.stopped
	return c.final
}

// Wait blocks until cond holds for the state, ctx is done or the coordinator
// stops. On ctx expiry it returns the latest snapshot with ctx.Err().
func (c *Coordinator) Wait(ctx context.Context, cond func(Snapshot) bool) (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	ok := c.post(func(s *session) {
		snap := s.snapshot(c.cfg.Threshold)
		if cond(snap) {
			ch <- snap
			return
		}
		s.waiters = append(s.waiters, waiter{cond: cond, ch: ch})
	})
	if !ok {
		return c.Snapshot(), ErrNotActive
	}

	select {
	case snap := <-ch:
		return snap, nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	case <-c.stopped:
		return c.final, ErrNotActive
	}
}

// post hands fn to the session goroutine. It reports false when the
// coordinator is not running.
func (c *Coordinator) post(fn func(*session)) bool {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st != active {
		return false
	}

	select {
	case c.events <- fn:
		return true
	case <-c.quit:
		return false
	case <-c.stopped:
		return false
	}
}

func (c *Coordinator) run(ctx context.Context, referendumID uint32) {
	ctx, cancel := context.WithCancel(ctx)

	s := &session{
		ctx:          ctx,
		referendumID: referendumID,
		status:       LoadingStatus{State: StateLoading, Message: MessageLoadingVotes},
		estimate:     Estimate{SwingThreshold: new(big.Int)},
	}

	defer func() {
		cancel()
		if s.timer != nil {
			s.timer.Stop()
		}
		if s.sub != nil {
			s.sub.Unsubscribe()
			s.sub = nil
		}
		c.final = s.snapshot(c.cfg.Threshold)
		c.log.Debug("session closed", "referendum", s.referendumID)
		close(c.stopped)
	}()

	var ready <-chan struct{}
	if c.issuance != nil {
		ready = c.issuance.Ready()
	}
	if isClosed(ready) {
		ready = nil
		c.subscribe(s)
	} else if ready != nil {
		c.log.Debug("chain not ready, deferring issuance subscription")
	}

	c.fetch(s)

	for {
		select {
		case <-c.quit:
			return
		case <-ctx.Done():
			return
		case <-ready:
			ready = nil
			c.log.Debug("chain ready", "referendum", s.referendumID)
			c.subscribe(s)
			c.fetch(s)
		case <-s.deadline:
			s.deadline = nil
			if s.status.IsLoading() {
				s.status = LoadingStatus{State: StateError, Message: MessageUnresponsive}
				c.log.Warn("vote data still loading", "referendum", s.referendumID, "timeout", c.cfg.LoadingTimeout)
				c.changed(s)
			}
		case fn := <-c.events:
			if isClosed(c.quit) {
				s.done = true
			}
			fn(s)
			if s.done {
				return
			}
		}
	}
}

// fetch starts a tally fetch tagged with a new generation. Only the result
// of the latest generation for the current referendum is applied.
func (c *Coordinator) fetch(s *session) {
	s.generation++
	ctx, gen, id := s.ctx, s.generation, s.referendumID

	if s.status.IsLoading() {
		if s.timer != nil {
			s.timer.Stop()
		}
		s.timer = time.NewTimer(c.cfg.LoadingTimeout)
		s.deadline = s.timer.C
	}

	if c.tallies == nil {
		return
	}

	go func() {
		tally, err := c.tallies.FetchTally(ctx, id)
		delivered := c.post(func(s *session) {
			if s.done || gen != s.generation || id != s.referendumID {
				c.log.Debug("discarding stale tally", "referendum", id, "generation", gen)
				return
			}
			c.applyTally(s, tally, err)
		})
		if !delivered {
			c.log.Debug("coordinator stopped, tally dropped", "referendum", id)
		}
	}()
}

func (c *Coordinator) applyTally(s *session, tally VoteTally, err error) {
	if err != nil {
		s.err = err
		s.status = LoadingStatus{State: StateError, Message: err.Error()}
		c.log.Error("failed to fetch vote tally", "referendum", s.referendumID, "error", err)
		c.changed(s)
		return
	}

	s.tally = &tally
	s.err = nil
	s.status = LoadingStatus{State: StateReady}
	if s.passing == PassingUnknown {
		s.passing = c.cfg.PassingRule(tally, s.issuance, c.cfg.Threshold)
		c.log.Info("referendum state determined", "referendum", s.referendumID, "passing", s.passing.String())
	}
	c.estimate(s)
	c.changed(s)
}

func (c *Coordinator) subscribe(s *session) {
	if s.subscribing || s.sub != nil {
		return
	}
	s.subscribing = true
	ctx := s.ctx

	go func() {
		sub, err := c.issuance.SubscribeTotalIssuance(ctx, func(v *big.Int) {
			if v == nil {
				return
			}
			v = new(big.Int).Set(v)
			c.post(func(s *session) {
				if s.done {
					return
				}
				s.issuance = v
				c.estimate(s)
				c.changed(s)
			})
		})
		if err != nil {
			c.post(func(s *session) {
				s.subscribing = false
				c.log.Error("failed to subscribe to total issuance", "error", err)
			})
			return
		}

		delivered := c.post(func(s *session) {
			s.subscribing = false
			s.sub = sub
		})
		if !delivered {
			sub.Unsubscribe()
		}
	}()
}

func (c *Coordinator) estimate(s *session) {
	if s.tally == nil {
		// Turnout can still be derived once a tally arrives; nothing to do yet.
		return
	}
	s.estimate = s.estimator.Estimate(*s.tally, s.issuance, s.passing, c.cfg.Threshold)
}

func (c *Coordinator) changed(s *session) {
	snap := s.snapshot(c.cfg.Threshold)

	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if w.cond(snap) {
			w.ch <- snap
			continue
		}
		kept = append(kept, w)
	}
	s.waiters = kept

	if c.cfg.OnChange != nil {
		c.cfg.OnChange(snap)
	}
}

func isClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
