package capture

import (
	"NetDeviation/internal/engine/aggregator"
	"NetDeviation/internal/engine/protocol"
	"NetDeviation/internal/logging"
	"NetDeviation/internal/metrics"
	"NetDeviation/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket"
	log "github.com/sirupsen/logrus"
)

// Bound stops a capture. A zero field means unbounded on that axis; with both
// zero the session runs until the source is exhausted or the context ends.
type Bound struct {
	Duration time.Duration
	// Count is the number of IP packets to observe.
	Count uint64
}

// Options configures one capture session.
type Options struct {
	RunID string
	Kind  string
	Bound Bound
	// ArchiveDir enables the raw pcap archive when set.
	ArchiveDir    string
	ArchiveBuffer int
	SnapshotLen   uint32
	ProgressEvery uint64
	Metrics       *metrics.Metrics
	Logger        log.FieldLogger
	Clock         func() time.Time
}

// Session drives one bounded capture run into a Traffic Summary.
type Session struct {
	opts        Options
	logger      log.FieldLogger
	archivePath string
}

// NewSession creates a capture session.
func NewSession(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ProgressEvery == 0 {
		opts.ProgressEvery = 1000
	}
	var logger log.FieldLogger = logging.Discard()
	if opts.Logger != nil {
		logger = opts.Logger
	}
	return &Session{
		opts:   opts,
		logger: logger.WithFields(log.Fields{"run_id": opts.RunID, "kind": opts.Kind}),
	}
}

// Run opens the source and blocks until the bound is reached, the source is
// exhausted, or ctx is done. Packets are classified and aggregated in arrival
// order on the calling goroutine.
//
// If the source cannot be opened the error wraps model.ErrSourceUnavailable
// and no summary is returned. If the source fails or ctx ends early, the
// summary is still returned, marked incomplete, with an error wrapping
// model.ErrPartialCapture.
func (s *Session) Run(ctx context.Context, src model.PacketSource) (*model.TrafficSummary, error) {
	packets, err := src.Open(ctx)
	if err != nil {
		s.opts.Metrics.CaptureFinished(s.opts.Kind, "unavailable")
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
	defer src.Close()

	agg := aggregator.New(s.opts.RunID, s.opts.Kind, aggregator.WithClock(s.opts.Clock))

	var archive *Archive
	if s.opts.ArchiveDir != "" {
		archive, err = NewArchive(s.opts.ArchiveDir, s.opts.Kind, src.LinkType(), s.opts.SnapshotLen,
			s.opts.ArchiveBuffer, s.logger, s.opts.Metrics)
		if err != nil {
			s.logger.WithError(err).Warn("Raw archive disabled for this run")
		} else {
			s.archivePath = archive.Path()
		}
	}

	var timeout <-chan time.Time
	if s.opts.Bound.Duration > 0 {
		timer := time.NewTimer(s.opts.Bound.Duration)
		defer timer.Stop()
		timeout = timer.C
	}

	s.logger.WithFields(log.Fields{
		"duration": s.opts.Bound.Duration,
		"count":    s.opts.Bound.Count,
	}).Info("Capture started")

	var cause error
loop:
	for {
		select {
		case <-timeout:
			break loop
		case <-ctx.Done():
			cause = ctx.Err()
			break loop
		case p, ok := <-packets:
			if !ok {
				cause = src.Err()
				break loop
			}
			if s.handle(agg, archive, p) {
				break loop
			}
		}
	}

	if archive != nil {
		if err := archive.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close raw archive")
		}
	}

	if cause != nil {
		agg.MarkIncomplete(cause.Error())
	}
	summary := agg.Finalize()

	fields := log.Fields{
		"total":   summary.TotalCount,
		"tcp":     summary.TCPCount,
		"udp":     summary.UDPCount,
		"icmp":    summary.ICMPCount,
		"other":   summary.OtherCount,
		"skipped": summary.SkippedCount,
	}
	if cause != nil {
		s.opts.Metrics.CaptureFinished(s.opts.Kind, "partial")
		s.logger.WithFields(fields).WithError(cause).Warn("Capture ended early")
		return summary, fmt.Errorf("%w: %w", model.ErrPartialCapture, cause)
	}
	s.opts.Metrics.CaptureFinished(s.opts.Kind, "complete")
	s.logger.WithFields(fields).Info("Capture finished")
	return summary, nil
}

// handle classifies and aggregates one packet. It reports whether the count
// bound has been reached.
func (s *Session) handle(agg *aggregator.Aggregator, archive *Archive, p gopacket.Packet) bool {
	pkt, err := protocol.Classify(p)
	if err != nil {
		if !errors.Is(err, protocol.ErrSkip) {
			s.logger.WithError(err).Debug("Failed to classify packet")
		}
		agg.Skip()
		s.opts.Metrics.PacketSkipped(s.opts.Kind)
		return false
	}

	if archive != nil {
		archive.Enqueue(p)
	}

	now := pkt.Timestamp
	if now.IsZero() {
		now = s.opts.Clock()
	}
	if err := agg.Observe(pkt, now); err != nil {
		s.logger.WithError(err).Error("Observe failed")
		return true
	}
	s.opts.Metrics.PacketObserved(s.opts.Kind, pkt.Protocol)

	total := agg.Counts().Total
	if total%s.opts.ProgressEvery == 0 {
		s.logger.WithField("packets", total).Info("Capture progress")
	}
	return s.opts.Bound.Count > 0 && total >= s.opts.Bound.Count
}

// ArchivePath returns the raw pcap written by the last Run, if any.
func (s *Session) ArchivePath() string {
	return s.archivePath
}
