package main

import (
	"NetDeviation/internal/capture"
	"NetDeviation/internal/config"
	"NetDeviation/internal/logging"
	"NetDeviation/internal/probe"
	"NetDeviation/pkg/pcap"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	iface := flag.String("iface", "", "Interface to capture packets from (defaults to the interface of the default route).")
	probeID := flag.String("id", "", "Probe identifier attached to every frame (defaults to the hostname).")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	if *iface == "" {
		*iface = cfg.Capture.Interface
	}
	if *iface == "" {
		if *iface, err = capture.DefaultInterface(); err != nil {
			logger.WithError(err).Fatal("No capture interface")
		}
	}
	if *probeID == "" {
		*probeID, _ = os.Hostname()
	}

	pub, err := probe.NewPublisher(cfg.Probe, *probeID, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to NATS")
	}
	defer pub.Close()

	src := pcap.NewLiveSource(*iface, cfg.Capture.SnapshotLen, cfg.Capture.Promiscuous, cfg.Capture.BPFFilter)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	packets, err := src.Open(ctx)
	if err != nil {
		logger.WithError(err).Fatalf("Error opening device %s", *iface)
	}
	defer src.Close()

	logger.WithFields(log.Fields{"interface": *iface, "probe": *probeID, "subject": cfg.Probe.Subject}).
		Info("Capture started, publishing frames to NATS")

	published := 0
	for p := range packets {
		if err := pub.Publish(probe.FromPacket(*probeID, src.LinkType(), p)); err != nil {
			logger.WithError(err).Warn("Failed to publish frame")
			continue
		}
		published++
		if published%1000 == 0 {
			logger.WithField("published", published).Info("Frames published")
		}
	}
	if err := src.Err(); err != nil {
		logger.WithError(err).Error("Capture stopped")
	}
	logger.WithField("published", published).Info("Probe stopped")
}
