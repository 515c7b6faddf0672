package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/infra/metrics"
	"jobhunt-billing/internal/infra/redis"
	"jobhunt-billing/internal/usecase"
)

const leaderLockKey = "billing:rollover:leader"

// RolloverWorker periodically runs the period rollover sweep. A redis
// leader lock keeps the sweep single-flight across instances; a replica
// that loses the race just skips the round.
type RolloverWorker struct {
	interval  time.Duration
	lockTTL   time.Duration
	lifecycle *usecase.SubscriptionLifecycle
	locker    redis.Locker
	log       *zerolog.Logger
}

func NewRolloverWorker(interval, lockTTL time.Duration, lifecycle *usecase.SubscriptionLifecycle, locker redis.Locker, logger *zerolog.Logger) *RolloverWorker {
	l := logger.With().Str("component", "RolloverWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &RolloverWorker{
		interval:  interval,
		lockTTL:   lockTTL,
		lifecycle: lifecycle,
		locker:    locker,
		log:       &l,
	}
}

func (w *RolloverWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting rollover worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping rollover worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RolloverWorker) sweep(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, leaderLockKey, w.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			w.log.Debug().Msg("another instance holds the sweep lock")
			return
		}
		w.log.Error().Err(err).Msg("sweep leader lock error")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, leaderLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("sweep leader unlock failed")
		}
	}()

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, w.lockTTL)
	defer cancel()
	n, err := w.lifecycle.PeriodRolloverSweep(runCtx, start)
	metrics.ObserveSweepDuration(time.Since(start).Seconds())
	if err != nil {
		w.log.Error().Err(err).Int("processed", n).Msg("rollover sweep error")
		return
	}
	if n > 0 {
		w.log.Info().Int("processed", n).Dur("duration", time.Since(start)).Msg("rollover sweep finished")
	}
}
