package commands

import (
	"NetDeviation/internal/config"
	"NetDeviation/internal/engine/manager"
	"NetDeviation/internal/logging"
	"NetDeviation/internal/metrics"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var allCommands []cli.Command

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "load configuration from `FILE`",
		Value: "configs/config.yaml",
	}
	pcapFlag = cli.StringFlag{
		Name:  "pcap",
		Usage: "replay packets from `FILE` instead of the configured source",
	}
	ifaceFlag = cli.StringFlag{
		Name:  "interface, i",
		Usage: "capture on `IFACE` instead of the configured interface",
	}
	targetFlag = cli.StringFlag{
		Name:  "target, t",
		Usage: "attack `HOST` instead of the configured target",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "serve Prometheus metrics on `ADDR` while the command runs",
	}
)

// Commands provides all of the defined commands to the front end
func Commands() []cli.Command {
	return allCommands
}

// bootstrapCommands adds commands to the list returned by Commands
func bootstrapCommands(commands ...cli.Command) {
	allCommands = append(allCommands, commands...)
}

// env is what every command action needs.
type env struct {
	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

// loadEnv reads the config file and applies command line overrides.
func loadEnv(c *cli.Context) (*env, error) {
	path := c.String("config")
	usingDefaults := false
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || c.IsSet("config") {
			return nil, err
		}
		if cfg, err = config.Default(); err != nil {
			return nil, err
		}
		usingDefaults = true
	}

	if p := c.String("pcap"); p != "" {
		cfg.Capture.Source = "offline"
		cfg.Capture.OfflinePath = p
	}
	if iface := c.String("interface"); iface != "" {
		cfg.Capture.Source = "live"
		cfg.Capture.Interface = iface
	}
	if target := c.String("target"); target != "" {
		cfg.Attack.Target = target
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if usingDefaults {
		logger.WithField("config", path).Warn("Config file not found, using defaults")
	}

	reg := prometheus.NewRegistry()
	return &env{cfg: cfg, logger: logger, metrics: metrics.New(reg), reg: reg}, nil
}

// newManager wires a manager and starts the optional metrics endpoint.
func (e *env) newManager(ctx context.Context, c *cli.Context) (*manager.Manager, func(), error) {
	mgr, closeFn, err := manager.NewFromConfig(ctx, e.cfg, e.logger, e.metrics)
	if err != nil {
		return nil, nil, err
	}

	var srv *http.Server
	if addr := c.String("metrics-addr"); addr != "" {
		srv = &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.logger.WithError(err).Warn("Metrics endpoint stopped")
			}
		}()
	}

	cleanup := func() {
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
		if err := closeFn(); err != nil {
			e.logger.WithError(err).Warn("Failed to release resources")
		}
	}
	return mgr, cleanup, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
