package snapshot

import (
	"NetDeviation/internal/model"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// TimestampFormat is the run timestamp embedded in every artifact name.
const TimestampFormat = "20060102_150405"

const (
	attackDir    = "attack"
	deviationDir = "deviation"
)

// FileWriter writes run artifacts as indented JSON files under a root directory:
//
//	<root>/<kind>/<kind>_stats_<ts>.json
//	<root>/attack/attack_log_<ts>.json
//	<root>/deviation/deviation_<ts>.json
type FileWriter struct {
	rootPath string
}

// NewFileWriter creates a writer rooted at rootPath.
func NewFileWriter(rootPath string) *FileWriter {
	return &FileWriter{rootPath: rootPath}
}

// WriteSummary stores a traffic summary, stamped with its end time.
func (w *FileWriter) WriteSummary(s *model.TrafficSummary) error {
	_, err := w.writeJSON(s.Kind, fmt.Sprintf("%s_stats", s.Kind), s.EndTime, s)
	return err
}

// WriteAttackLog stores an attack log, stamped with its end time.
func (w *FileWriter) WriteAttackLog(l *model.AttackLog) error {
	_, err := w.writeJSON(attackDir, "attack_log", l.EndTime, l)
	return err
}

// WriteDeviation stores a deviation result, stamped with its computation time.
func (w *FileWriter) WriteDeviation(d *model.DeviationResult) error {
	_, err := w.writeJSON(deviationDir, "deviation", d.ComputedAt, d)
	return err
}

func (w *FileWriter) Close() error { return nil }

func (w *FileWriter) writeJSON(dir, prefix string, at time.Time, v any) (string, error) {
	if at.IsZero() {
		at = time.Now()
	}
	targetDir := filepath.Join(w.rootPath, dir)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(targetDir, fmt.Sprintf("%s_%s.json", prefix, at.Format(TimestampFormat)))
	file, err := createFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact file '%s': %w", path, err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to encode artifact to json: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close artifact file '%s': %w", path, err)
	}
	return path, nil
}

// createFile opens artifact files for writing. Tests replace it.
var createFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// MultiWriter fans every artifact out to several writers. All writers are
// attempted; their errors are joined.
type MultiWriter []model.Writer

func (m MultiWriter) WriteSummary(s *model.TrafficSummary) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.WriteSummary(s))
	}
	return errors.Join(errs...)
}

func (m MultiWriter) WriteAttackLog(l *model.AttackLog) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.WriteAttackLog(l))
	}
	return errors.Join(errs...)
}

func (m MultiWriter) WriteDeviation(d *model.DeviationResult) error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.WriteDeviation(d))
	}
	return errors.Join(errs...)
}

func (m MultiWriter) Close() error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}
