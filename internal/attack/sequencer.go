package attack

import (
	"NetDeviation/internal/logging"
	"NetDeviation/internal/metrics"
	"NetDeviation/internal/model"
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithPause sets the fixed delay between two modules.
func WithPause(d time.Duration) Option {
	return func(s *Sequencer) { s.pause = d }
}

// WithWarmUp sets the delay before the first module, giving a concurrent
// capture time to start.
func WithWarmUp(d time.Duration) Option {
	return func(s *Sequencer) { s.warmUp = d }
}

// WithPreflight enables the ICMP reachability check before the sequence.
func WithPreflight(enabled bool) Option {
	return func(s *Sequencer) { s.preflight = enabled }
}

// WithLogger sets the logger for sequence and module progress.
func WithLogger(logger log.FieldLogger) Option {
	return func(s *Sequencer) { s.logger = logger }
}

// WithMetrics records per-module outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// WithClock overrides the clock used for record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Sequencer) { s.clock = clock }
}

// WithSleep overrides how pauses are waited out.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Sequencer) { s.sleep = sleep }
}

// Sequencer runs attack modules one after another. A module failure is
// recorded and the sequence moves on to the next module.
type Sequencer struct {
	modules   []Module
	pause     time.Duration
	warmUp    time.Duration
	preflight bool
	logger    log.FieldLogger
	metrics   *metrics.Metrics
	clock     func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewSequencer creates a sequencer for modules in the given order.
func NewSequencer(modules []Module, opts ...Option) *Sequencer {
	s := &Sequencer{
		modules: modules,
		pause:   3 * time.Second,
		logger:  logging.Discard(),
		clock:   time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAll executes every module against target and returns the attack log.
// The log always holds one record per module. Modules that never started
// because ctx ended during the warm-up or a pause are recorded with the
// context error. The error joins a *model.ModuleError for each failed module,
// plus the context error if the sequence was cut short.
func (s *Sequencer) RunAll(ctx context.Context, runID, target string) (*model.AttackLog, error) {
	attackLog := &model.AttackLog{
		RunID:     runID,
		Target:    target,
		StartTime: s.clock(),
		Records:   make([]model.AttackRecord, 0, len(s.modules)),
	}
	logger := s.logger.WithFields(log.Fields{"run_id": runID, "target": target})

	if s.preflight {
		if rtt, err := CheckPingFunc(target); err != nil {
			logger.WithError(err).Warn("Target did not answer the reachability check, continuing")
		} else {
			logger.WithField("rtt", rtt).Info("Target reachable")
		}
	}

	var errs []error
	if err := s.sleep(ctx, s.warmUp); err != nil {
		s.skipRemaining(attackLog, s.modules, target, err, logger)
		attackLog.EndTime = s.clock()
		return attackLog, err
	}

	for i, m := range s.modules {
		if i > 0 {
			if err := s.sleep(ctx, s.pause); err != nil {
				s.skipRemaining(attackLog, s.modules[i:], target, err, logger)
				errs = append(errs, err)
				break
			}
		}

		rec := model.AttackRecord{
			Module:    m.Name(),
			Type:      m.Type(),
			Target:    target,
			StartTime: s.clock(),
		}
		mlog := logger.WithFields(log.Fields{"module": m.Name(), "step": i + 1, "of": len(s.modules)})
		mlog.Info("Attack module started")

		err := m.Execute(ctx, target, &rec)
		rec.EndTime = s.clock()
		if err != nil {
			rec.Error = err.Error()
			errs = append(errs, &model.ModuleError{Module: m.Name(), Err: err})
			mlog.WithError(err).Error("Attack module failed")
		} else {
			mlog.WithField("magnitude", rec.Magnitude).Info("Attack module finished")
		}
		s.metrics.ModuleFinished(rec)
		attackLog.Records = append(attackLog.Records, rec)
	}

	attackLog.EndTime = s.clock()
	return attackLog, errors.Join(errs...)
}

// skipRemaining records modules that were never started.
func (s *Sequencer) skipRemaining(attackLog *model.AttackLog, modules []Module, target string, cause error, logger log.FieldLogger) {
	now := s.clock()
	for _, m := range modules {
		attackLog.Records = append(attackLog.Records, model.AttackRecord{
			Module:    m.Name(),
			Type:      m.Type(),
			Target:    target,
			StartTime: now,
			EndTime:   now,
			Error:     cause.Error(),
		})
	}
	if len(modules) > 0 {
		logger.WithError(cause).WithField("skipped", len(modules)).Warn("Attack sequence stopped before all modules ran")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
