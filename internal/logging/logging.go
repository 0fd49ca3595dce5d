package logging

import (
	"NetDeviation/internal/config"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
)

// New creates the logger for stdout and, when cfg.Dir is set, one file per level.
func New(cfg config.LoggingConfig) (*log.Logger, error) {
	logger := log.New()
	logger.Formatter = &log.TextFormatter{FullTimestamp: true}
	logger.Out = os.Stdout

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
	}
	logger.Level = level

	if cfg.Dir != "" {
		if err := addFileLogger(logger, cfg.Dir); err != nil {
			return nil, err
		}
	}
	return logger, nil
}

// Discard returns a logger that drops everything, for tests and library defaults.
func Discard() *log.Logger {
	logger := log.New()
	logger.Out = io.Discard
	return logger
}

func addFileLogger(logger *log.Logger, logPath string) error {
	logPath = filepath.Join(logPath, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(logPath, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logger.Hooks.Add(lfshook.NewHook(lfshook.PathMap{
		log.DebugLevel: filepath.Join(logPath, "debug.log"),
		log.InfoLevel:  filepath.Join(logPath, "info.log"),
		log.WarnLevel:  filepath.Join(logPath, "warn.log"),
		log.ErrorLevel: filepath.Join(logPath, "error.log"),
		log.FatalLevel: filepath.Join(logPath, "fatal.log"),
		log.PanicLevel: filepath.Join(logPath, "panic.log"),
	}, &log.JSONFormatter{}))
	return nil
}
