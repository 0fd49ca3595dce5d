package manager

import (
	"NetDeviation/internal/attack"
	"NetDeviation/internal/capture"
	"NetDeviation/internal/config"
	"NetDeviation/internal/deviation"
	"NetDeviation/internal/logging"
	"NetDeviation/internal/metrics"
	"NetDeviation/internal/model"
	"NetDeviation/internal/report"
	"NetDeviation/internal/snapshot"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SourceFactory opens a fresh packet source for a capture of the given kind.
type SourceFactory func(kind string) (model.PacketSource, error)

// Deps are the collaborators of a Manager.
type Deps struct {
	Sources  SourceFactory
	Modules  []attack.Module
	Writer   model.Writer
	Notifier model.Notifier
	Metrics  *metrics.Metrics
	Logger   log.FieldLogger
	Clock    func() time.Time
	RunID    func() string
	// SequencerOptions are appended after the options derived from config.
	SequencerOptions []attack.Option
}

// AttackResult is the outcome of the attack phase. Either part may be nil
// when its component failed outright.
type AttackResult struct {
	Summary *model.TrafficSummary
	Log     *model.AttackLog
}

// Manager orchestrates the capture phases, the attack sequence and the
// comparison of their artifacts.
type Manager struct {
	cfg       *config.Config
	durations config.Durations
	deps      Deps
	logger    log.FieldLogger
}

// NewManager creates a new Manager.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	durations, err := cfg.Durations()
	if err != nil {
		return nil, err
	}
	if deps.Writer == nil {
		return nil, errors.New("manager requires an artifact writer")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.RunID == nil {
		deps.RunID = uuid.NewString
	}
	return &Manager{
		cfg:       cfg,
		durations: durations,
		deps:      deps,
		logger:    deps.Logger,
	}, nil
}

// Baseline captures normal traffic for the baseline duration and persists the
// summary. A partial summary is persisted too.
func (m *Manager) Baseline(ctx context.Context) (*model.TrafficSummary, error) {
	summary, err := m.capture(ctx, m.deps.RunID(), model.KindBaseline, m.durations.Baseline)
	if summary != nil {
		if werr := m.deps.Writer.WriteSummary(summary); werr != nil {
			return summary, errors.Join(err, fmt.Errorf("failed to persist baseline summary: %w", werr))
		}
	}
	return summary, err
}

// Attack runs the attack capture and the attack sequence concurrently and
// waits for both. A failure of one never stops the other; whatever each
// produced is persisted.
func (m *Manager) Attack(ctx context.Context) (*AttackResult, error) {
	m.checkLiveness()

	runID := m.deps.RunID()
	var (
		wg         sync.WaitGroup
		result     AttackResult
		captureErr error
		attackErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		result.Summary, captureErr = m.capture(ctx, runID, model.KindAttack, m.durations.Attack)
	}()
	go func() {
		defer wg.Done()
		result.Log, attackErr = m.sequencer().RunAll(ctx, runID, m.cfg.Attack.Target)
	}()
	wg.Wait()

	errs := []error{captureErr, attackErr}
	if result.Summary != nil {
		if err := m.deps.Writer.WriteSummary(result.Summary); err != nil {
			errs = append(errs, fmt.Errorf("failed to persist attack summary: %w", err))
		}
	}
	if result.Log != nil {
		if err := m.deps.Writer.WriteAttackLog(result.Log); err != nil {
			errs = append(errs, fmt.Errorf("failed to persist attack log: %w", err))
		}
		if failed := result.Log.Failed(); len(failed) > 0 {
			m.logger.WithField("failed_modules", len(failed)).Warn("Attack sequence completed with module failures")
		}
	}
	return &result, errors.Join(errs...)
}

// Compare loads the latest baseline and attack summaries, computes their
// deviation and persists it.
func (m *Manager) Compare(ctx context.Context) (*model.DeviationResult, error) {
	root := m.cfg.Storage.RootPath
	baseline, err := snapshot.LoadLatestSummary(root, model.KindBaseline)
	if err != nil {
		return nil, err
	}
	attackSummary, err := snapshot.LoadLatestSummary(root, model.KindAttack)
	if err != nil {
		return nil, err
	}
	return m.compare(baseline, attackSummary)
}

func (m *Manager) compare(baseline, attackSummary *model.TrafficSummary) (*model.DeviationResult, error) {
	result := deviation.Compare(baseline, attackSummary)
	result.ComputedAt = m.deps.Clock()

	m.logger.WithFields(log.Fields{
		"total_pct":    result.TotalPacketIncreasePct,
		"tcp_pct":      result.TCPIncreasePct,
		"udp_pct":      result.UDPIncreasePct,
		"icmp_pct":     result.ICMPIncreasePct,
		"baseline_pps": result.BaselineAvgPPS,
		"attack_pps":   result.AttackAvgPPS,
	}).Info("Deviation computed")

	if err := m.deps.Writer.WriteDeviation(&result); err != nil {
		return &result, fmt.Errorf("failed to persist deviation: %w", err)
	}
	return &result, nil
}

// Report assembles the comparison report from the latest artifacts. The
// attack log is optional.
func (m *Manager) Report(ctx context.Context) (report.Report, error) {
	root := m.cfg.Storage.RootPath
	baseline, err := snapshot.LoadLatestSummary(root, model.KindBaseline)
	if err != nil {
		return report.Report{}, err
	}
	attackSummary, err := snapshot.LoadLatestSummary(root, model.KindAttack)
	if err != nil {
		return report.Report{}, err
	}
	r := report.Report{
		Baseline:    baseline,
		Attack:      attackSummary,
		Deviation:   deviation.Compare(baseline, attackSummary),
		GeneratedAt: m.deps.Clock(),
	}
	if dev, err := snapshot.LoadLatestDeviation(root); err == nil &&
		dev.BaselineRunID == baseline.RunID && dev.AttackRunID == attackSummary.RunID {
		r.Deviation = *dev
	}
	if l, err := snapshot.LoadLatestAttackLog(root); err == nil {
		r.Log = l
	} else {
		m.logger.WithError(err).Debug("Report has no attack log")
	}
	return r, nil
}

// Notify emails the report when a notifier is configured.
func (m *Manager) Notify(r report.Report) error {
	if m.deps.Notifier == nil {
		return nil
	}
	body, err := report.RenderHTML(r)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	subject := fmt.Sprintf("Network deviation report: total %+.1f%%", r.Deviation.TotalPacketIncreasePct)
	if err := m.deps.Notifier.Send(subject, body); err != nil {
		return err
	}
	m.logger.Info("Report sent")
	return nil
}

// Run executes the whole pipeline: baseline, attack, compare, report. Only a
// baseline or attack capture that could not start at all stops the pipeline;
// partial captures and module failures are reported and the pipeline goes on.
func (m *Manager) Run(ctx context.Context) (*model.DeviationResult, error) {
	var errs []error

	m.logger.Info("Phase 1: baseline capture")
	baseline, err := m.Baseline(ctx)
	if baseline == nil {
		return nil, fmt.Errorf("baseline phase failed: %w", err)
	}
	if err != nil {
		m.logger.WithError(err).Warn("Baseline phase finished with errors")
		errs = append(errs, err)
	}

	m.logger.Info("Phase 2: attack simulation")
	res, err := m.Attack(ctx)
	if res.Summary == nil {
		return nil, errors.Join(append(errs, fmt.Errorf("attack phase failed: %w", err))...)
	}
	if err != nil {
		m.logger.WithError(err).Warn("Attack phase finished with errors")
		errs = append(errs, err)
	}

	m.logger.Info("Phase 3: deviation analysis")
	result, err := m.compare(baseline, res.Summary)
	if err != nil {
		errs = append(errs, err)
	}

	r := report.Report{
		Baseline:    baseline,
		Attack:      res.Summary,
		Log:         res.Log,
		Deviation:   *result,
		GeneratedAt: m.deps.Clock(),
	}
	var buf bytes.Buffer
	if err := report.WriteText(&buf, r); err == nil {
		m.logger.Info("Comparison report\n" + buf.String())
	}
	if err := m.Notify(r); err != nil {
		m.logger.WithError(err).Warn("Failed to send report")
		errs = append(errs, err)
	}
	return result, errors.Join(errs...)
}

func (m *Manager) capture(ctx context.Context, runID, kind string, duration time.Duration) (*model.TrafficSummary, error) {
	src, err := m.deps.Sources(kind)
	if err != nil {
		m.deps.Metrics.CaptureFinished(kind, "unavailable")
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}

	opts := capture.Options{
		RunID:         runID,
		Kind:          kind,
		Bound:         capture.Bound{Duration: duration, Count: uint64(max(m.cfg.Capture.MaxPackets, 0))},
		ArchiveBuffer: m.cfg.Capture.SizeOfChannel,
		SnapshotLen:   uint32(max(m.cfg.Capture.SnapshotLen, 0)),
		ProgressEvery: uint64(max(m.cfg.Capture.ProgressEvery, 0)),
		Metrics:       m.deps.Metrics,
		Logger:        m.logger,
		Clock:         m.deps.Clock,
	}
	if m.cfg.Capture.Archive {
		opts.ArchiveDir = filepath.Join(m.cfg.Storage.RootPath, kind)
	}
	return capture.NewSession(opts).Run(ctx, src)
}

func (m *Manager) sequencer() *attack.Sequencer {
	opts := []attack.Option{
		attack.WithWarmUp(m.durations.WarmUp),
		attack.WithPause(m.durations.Pause),
		attack.WithPreflight(m.cfg.Attack.Preflight),
		attack.WithLogger(m.logger),
		attack.WithMetrics(m.deps.Metrics),
		attack.WithClock(m.deps.Clock),
	}
	return attack.NewSequencer(m.deps.Modules, append(opts, m.deps.SequencerOptions...)...)
}

// checkLiveness warns when the attack capture cannot outlast the scheduled
// delays of the sequence, so trailing attack traffic would go unobserved.
func (m *Manager) checkLiveness() {
	if m.durations.Attack == 0 {
		return
	}
	scheduled := m.durations.WarmUp
	if n := len(m.deps.Modules); n > 1 {
		scheduled += time.Duration(n-1) * m.durations.Pause
	}
	if m.durations.Attack <= scheduled {
		m.logger.WithFields(log.Fields{
			"attack_duration": m.durations.Attack,
			"scheduled_delay": scheduled,
		}).Warn("Attack capture is shorter than the attack sequence; late attack traffic will not be observed")
	}
}
