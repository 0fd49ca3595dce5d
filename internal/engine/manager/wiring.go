package manager

import (
	"NetDeviation/internal/attack"
	"NetDeviation/internal/capture"
	"NetDeviation/internal/config"
	"NetDeviation/internal/factory"
	"NetDeviation/internal/metrics"
	"NetDeviation/internal/model"
	"NetDeviation/internal/notification"
	"NetDeviation/internal/snapshot"
	"NetDeviation/pkg/pcap"
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// NewSourceFactory returns the packet source factory selected by the capture
// config: a live interface, a pcap file, or frames relayed by remote probes.
func NewSourceFactory(cfg config.CaptureConfig, probeCfg config.ProbeConfig, logger log.FieldLogger) (SourceFactory, error) {
	switch cfg.Source {
	case "", "live":
		return func(kind string) (model.PacketSource, error) {
			iface := cfg.Interface
			if iface == "" {
				var err error
				if iface, err = capture.DefaultInterface(); err != nil {
					return nil, err
				}
			}
			logger.WithFields(log.Fields{"interface": iface, "kind": kind}).Info("Opening live capture")
			return pcap.NewLiveSource(iface, cfg.SnapshotLen, cfg.Promiscuous, cfg.BPFFilter), nil
		}, nil
	case "offline":
		if cfg.OfflinePath == "" {
			return nil, errors.New("capture.offline_path is required for the offline source")
		}
		return func(string) (model.PacketSource, error) {
			return pcap.NewOfflineSource(cfg.OfflinePath), nil
		}, nil
	case "nats":
		return func(string) (model.PacketSource, error) {
			return capture.NewNATSSource(probeCfg, cfg.SizeOfChannel, logger), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown capture source: '%s'", cfg.Source)
	}
}

// NewWriter returns the artifact writer: JSON files, plus ClickHouse when enabled.
func NewWriter(ctx context.Context, cfg config.StorageConfig, logger log.FieldLogger) (model.Writer, error) {
	fileWriter := snapshot.NewFileWriter(cfg.RootPath)
	if !cfg.ClickHouse.Enabled {
		return fileWriter, nil
	}
	ch, err := snapshot.NewClickHouseWriter(ctx, cfg.ClickHouse, logger)
	if err != nil {
		return nil, err
	}
	return snapshot.MultiWriter{fileWriter, ch}, nil
}

// NewFromConfig wires a Manager from configuration. The returned close
// function releases the packet sink and the writer.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger log.FieldLogger, m *metrics.Metrics) (*Manager, func() error, error) {
	sources, err := NewSourceFactory(cfg.Capture, cfg.Probe, logger)
	if err != nil {
		return nil, nil, err
	}

	sink := attack.NewRawSink()
	modules, err := factory.Build(cfg.Attack, factory.Deps{Sink: sink, Logger: logger})
	if err != nil {
		return nil, nil, err
	}

	writer, err := NewWriter(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, nil, err
	}

	deps := Deps{
		Sources: sources,
		Modules: modules,
		Writer:  writer,
		Metrics: m,
		Logger:  logger,
	}
	if n := notification.NewEmailNotifier(cfg.SMTP); n != nil {
		deps.Notifier = n
	}

	mgr, err := NewManager(cfg, deps)
	if err != nil {
		writer.Close()
		return nil, nil, err
	}
	closeFn := func() error {
		return errors.Join(sink.Close(), writer.Close())
	}
	return mgr, closeFn, nil
}
