// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/govboard/referendum"
)

var (
	tallyFetchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "govboard_tally_fetches_total",
		Help: "Vote tally fetches by result",
	}, []string{"result"})
	tallyFetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "govboard_tally_fetch_seconds",
		Help:    "Duration of vote tally fetches",
		Buckets: prometheus.DefBuckets,
	})
	issuanceUpdateCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "govboard_issuance_updates_total",
		Help: "Total issuance values received from the chain",
	})
	issuanceSubscriptionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "govboard_issuance_subscriptions",
		Help: "Open total issuance subscriptions",
	})
	eventHookCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "govboard_event_hooks_total",
		Help: "Event hooks handled by table and result",
	}, []string{"table", "result"})
	imageUploadCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "govboard_image_uploads_total",
		Help: "Profile image uploads by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(tallyFetchCounter)
	prometheus.MustRegister(tallyFetchDuration)
	prometheus.MustRegister(issuanceUpdateCounter)
	prometheus.MustRegister(issuanceSubscriptionsGauge)
	prometheus.MustRegister(eventHookCounter)
	prometheus.MustRegister(imageUploadCounter)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func EventHookHandled(table string, err error) {
	eventHookCounter.WithLabelValues(table, result(err)).Inc()
}

func ImageUploaded(err error) {
	imageUploadCounter.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	var dsErr *referendum.DataSourceError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &dsErr):
		return "source_error"
	default:
		return "error"
	}
}

type fetcher struct {
	next referendum.TallyFetcher
}

// InstrumentFetcher counts and times calls to f.
func InstrumentFetcher(f referendum.TallyFetcher) referendum.TallyFetcher {
	return &fetcher{next: f}
}

func (f *fetcher) FetchTally(ctx context.Context, referendumID uint32) (referendum.VoteTally, error) {
	start := time.Now()
	tally, err := f.next.FetchTally(ctx, referendumID)
	tallyFetchDuration.Observe(time.Since(start).Seconds())
	tallyFetchCounter.WithLabelValues(result(err)).Inc()
	return tally, err
}

type issuanceSource struct {
	next referendum.IssuanceSource
}

// InstrumentIssuance counts issuance updates and open subscriptions of src.
func InstrumentIssuance(src referendum.IssuanceSource) referendum.IssuanceSource {
	return &issuanceSource{next: src}
}

func (s *issuanceSource) Ready() <-chan struct{} { return s.next.Ready() }

// Connected forwards to the wrapped source when it tracks its connection.
func (s *issuanceSource) Connected() bool {
	if c, ok := s.next.(interface{ Connected() bool }); ok {
		return c.Connected()
	}
	return true
}

func (s *issuanceSource) SubscribeTotalIssuance(ctx context.Context, onUpdate func(*big.Int)) (referendum.Subscription, error) {
	sub, err := s.next.SubscribeTotalIssuance(ctx, func(v *big.Int) {
		issuanceUpdateCounter.Inc()
		onUpdate(v)
	})
	if err != nil {
		return nil, err
	}
	issuanceSubscriptionsGauge.Inc()
	return &subscription{next: sub}, nil
}

type subscription struct {
	next referendum.Subscription
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		issuanceSubscriptionsGauge.Dec()
		s.next.Unsubscribe()
	})
}
