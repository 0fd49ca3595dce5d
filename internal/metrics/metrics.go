package metrics

import (
	"NetDeviation/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors of a capture/attack run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	packetsObserved *prometheus.CounterVec
	packetsSkipped  *prometheus.CounterVec
	captureRuns     *prometheus.CounterVec
	attackModules   *prometheus.CounterVec
	attackMagnitude *prometheus.CounterVec
	archiveDropped  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		packetsObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netdev_packets_observed_total",
			Help: "IP packets folded into a traffic summary.",
		}, []string{"kind", "protocol"}),
		packetsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netdev_packets_skipped_total",
			Help: "Packets without an IP layer, excluded from statistics.",
		}, []string{"kind"}),
		captureRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netdev_capture_runs_total",
			Help: "Capture sessions by outcome.",
		}, []string{"kind", "outcome"}),
		attackModules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netdev_attack_modules_total",
			Help: "Attack modules executed, by status.",
		}, []string{"module", "status"}),
		attackMagnitude: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netdev_attack_magnitude_total",
			Help: "Packets sent or ports scanned/probed per attack module.",
		}, []string{"module"}),
		archiveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netdev_archive_dropped_total",
			Help: "Packets not archived because the archive queue was full.",
		}),
	}
	reg.MustRegister(m.packetsObserved, m.packetsSkipped, m.captureRuns,
		m.attackModules, m.attackMagnitude, m.archiveDropped)
	return m
}

// PacketObserved counts one aggregated packet.
func (m *Metrics) PacketObserved(kind string, p model.Protocol) {
	if m == nil {
		return
	}
	m.packetsObserved.WithLabelValues(kind, p.String()).Inc()
}

// PacketSkipped counts one non-IP packet.
func (m *Metrics) PacketSkipped(kind string) {
	if m == nil {
		return
	}
	m.packetsSkipped.WithLabelValues(kind).Inc()
}

// CaptureFinished records the outcome of a capture session.
func (m *Metrics) CaptureFinished(kind, outcome string) {
	if m == nil {
		return
	}
	m.captureRuns.WithLabelValues(kind, outcome).Inc()
}

// ModuleFinished records one attack module record.
func (m *Metrics) ModuleFinished(rec model.AttackRecord) {
	if m == nil {
		return
	}
	status := "ok"
	if rec.Error != "" {
		status = "failed"
	}
	m.attackModules.WithLabelValues(rec.Module, status).Inc()
	m.attackMagnitude.WithLabelValues(rec.Module).Add(float64(rec.Magnitude))
}

// ArchiveDropped counts one packet the archive could not keep up with.
func (m *Metrics) ArchiveDropped() {
	if m == nil {
		return
	}
	m.archiveDropped.Inc()
}
