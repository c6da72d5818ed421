package instancetype

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emaland/cmp/internal/cloud"
)

// Price status values reported with each item.
const (
	PriceStatusOK          = "ok"
	PriceStatusUnavailable = "unavailable"
)

var errNotPriced = errors.New("not priced")

// PriceOutcome is the result of one price lookup. A failed lookup has a
// zero Price and a non-nil Err.
type PriceOutcome struct {
	Price float64
	Err   error
}

func (o PriceOutcome) OK() bool { return o.Err == nil }

func (o PriceOutcome) Status() string {
	if o.OK() {
		return PriceStatusOK
	}
	return PriceStatusUnavailable
}

// PriceFunc quotes a single instance type.
type PriceFunc func(ctx context.Context, instanceTypeID string) (float64, error)

// PricingConfig bounds the fan-out.
type PricingConfig struct {
	Workers int
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Workers: 10,
		Timeout: 8 * time.Second,
		Retries: 1,
		Backoff: 200 * time.Millisecond,
	}
}

// linearBackOff waits base, 2*base, 3*base... between attempts.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

type pricingMetrics struct {
	lookups  *prometheus.CounterVec
	duration prometheus.Histogram
}

func newPricingMetrics() *pricingMetrics {
	const namespace, subsystem = "cmp", "pricing"
	return &pricingMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lookups_total",
			Help:      "Number of instance type price lookups by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fanout_duration_seconds",
			Help:      "Time to price one result page.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

func (m *pricingMetrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{m.lookups, m.duration}
}

// FanOut prices a set of instance types with bounded concurrency.
type FanOut struct {
	cfg     PricingConfig
	log     *zap.Logger
	metrics *pricingMetrics
}

func NewFanOut(cfg PricingConfig, log *zap.Logger) *FanOut {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPricingConfig().Timeout
	}
	return &FanOut{cfg: cfg, log: log, metrics: newPricingMetrics()}
}

// Run returns exactly one outcome per distinct id. It never fails; lookups
// that exhaust their attempts are reported as failed outcomes.
func (f *FanOut) Run(ctx context.Context, ids []string, price PriceFunc) map[string]PriceOutcome {
	start := time.Now()
	defer func() { f.metrics.duration.Observe(time.Since(start).Seconds()) }()

	var (
		mu  sync.Mutex
		out = make(map[string]PriceOutcome, len(ids))
	)

	var g errgroup.Group
	g.SetLimit(f.cfg.Workers)
	for _, id := range ids {
		mu.Lock()
		_, dup := out[id]
		if !dup {
			out[id] = PriceOutcome{Err: errNotPriced}
		}
		mu.Unlock()
		if dup {
			continue
		}

		g.Go(func() error {
			o := f.lookup(ctx, id, price)
			mu.Lock()
			out[id] = o
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}

func (f *FanOut) lookup(ctx context.Context, id string, price PriceFunc) PriceOutcome {
	var p float64
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()

		v, err := price(attemptCtx, id)
		if err != nil {
			if errors.Is(err, cloud.ErrNotSupported) {
				return backoff.Permanent(err)
			}
			return err
		}
		p = v
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: f.cfg.Backoff}, uint64(f.cfg.Retries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		f.log.Debug("Retrying price lookup",
			zap.String("instance_type", id),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		f.metrics.lookups.WithLabelValues(PriceStatusUnavailable).Inc()
		f.log.Warn("Price lookup failed", zap.String("instance_type", id), zap.Error(err))
		return PriceOutcome{Err: err}
	}
	f.metrics.lookups.WithLabelValues(PriceStatusOK).Inc()
	return PriceOutcome{Price: p}
}
