package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/crewforge/crewforge/pkg/ledger"
)

type sweepConfig struct {
	interval   time.Duration
	lockTTL    time.Duration
	requestTTL time.Duration
}

// SetLockSweep configures the background sweep that releases locks
// held longer than lockTTL and expires pending requests older than
// requestTTL. An interval of 0 disables the sweeper.
func (r *LocalRuntime) SetLockSweep(hub *ledger.Hub, interval, lockTTL, requestTTL time.Duration) {
	r.sweepHub = hub
	r.sweepInterval = sweepConfig{
		interval:   interval,
		lockTTL:    lockTTL,
		requestTTL: requestTTL,
	}
}

func (r *LocalRuntime) startLockSweeper() {
	cfg := r.sweepInterval
	if r.sweepHub == nil || cfg.interval <= 0 {
		r.logger.Info("runtime.lock.sweeper.disabled",
			slog.Duration("interval", cfg.interval),
		)
		return
	}
	if r.sweepCancel != nil {
		r.stopLockSweeper()
	}
	initSweepMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.sweepCancel = cancel
	r.sweepDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.interval)
		defer ticker.Stop()
		log := r.logger
		log.Info("runtime.lock.sweeper.start",
			slog.Duration("interval", cfg.interval),
			slog.Duration("lock_ttl", cfg.lockTTL),
			slog.Duration("request_ttl", cfg.requestTTL),
		)
		for {
			select {
			case <-ctx.Done():
				log.Info("runtime.lock.sweeper.stop")
				return
			case <-ticker.C:
				r.sweepOnce(ctx, log, cfg)
			}
		}
	}()
}

func (r *LocalRuntime) sweepOnce(ctx context.Context, log *slog.Logger, cfg sweepConfig) {
	start := time.Now()

	released, err := r.sweepHub.ExpireLocks(cfg.lockTTL)
	if err != nil {
		sweepErrorCounter.Add(ctx, 1)
		log.Warn("runtime.lock.sweep.error", slog.String("error", err.Error()))
		return
	}
	expired, err := r.sweepHub.ExpireRequests(cfg.requestTTL)
	if err != nil {
		sweepErrorCounter.Add(ctx, 1)
		log.Warn("runtime.lock.sweep.error", slog.String("error", err.Error()))
		return
	}

	durationMs := time.Since(start).Seconds() * 1000
	sweepCounter.Add(ctx, 1)
	sweepLatencyMs.Record(ctx, durationMs)
	if len(released) > 0 {
		expiredLocksCounter.Add(ctx, int64(len(released)))
	}
	if expired > 0 {
		expiredRequestsCounter.Add(ctx, int64(expired))
	}
	if len(released) > 0 || expired > 0 {
		log.Info("runtime.lock.sweep",
			slog.Int("locks_released", len(released)),
			slog.Int("requests_expired", expired),
			slog.Float64("duration_ms", durationMs),
		)
	}
}

func (r *LocalRuntime) stopLockSweeper() {
	if r.sweepCancel == nil {
		return
	}
	r.sweepCancel()
	if r.sweepDone != nil {
		<-r.sweepDone
	}
	r.sweepCancel = nil
	r.sweepDone = nil
}

var (
	sweepMetricsOnce       sync.Once
	sweepCounter           metric.Int64Counter
	sweepErrorCounter      metric.Int64Counter
	expiredLocksCounter    metric.Int64Counter
	expiredRequestsCounter metric.Int64Counter
	sweepLatencyMs         metric.Float64Histogram
)

func initSweepMetrics() {
	sweepMetricsOnce.Do(func() {
		meter := otel.Meter("crewforge/runtime")
		sweepCounter, _ = meter.Int64Counter("crewforge.runtime.lock.sweep.count")
		sweepErrorCounter, _ = meter.Int64Counter("crewforge.runtime.lock.sweep.error.count")
		expiredLocksCounter, _ = meter.Int64Counter("crewforge.runtime.lock.expired.count")
		expiredRequestsCounter, _ = meter.Int64Counter("crewforge.runtime.lock.request.expired.count")
		sweepLatencyMs, _ = meter.Float64Histogram("crewforge.runtime.lock.sweep.latency_ms")
	})
}
