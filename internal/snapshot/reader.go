package snapshot

import (
	"NetDeviation/internal/model"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LoadLatestSummary reads the most recent summary of the given kind. If there
// is none the error wraps model.ErrMissingPriorSummary.
func LoadLatestSummary(rootPath, kind string) (*model.TrafficSummary, error) {
	var s model.TrafficSummary
	if err := loadLatest(filepath.Join(rootPath, kind), kind+"_stats_*.json", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadLatestAttackLog reads the most recent attack log.
func LoadLatestAttackLog(rootPath string) (*model.AttackLog, error) {
	var l model.AttackLog
	if err := loadLatest(filepath.Join(rootPath, attackDir), "attack_log_*.json", &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// LoadLatestDeviation reads the most recent deviation result.
func LoadLatestDeviation(rootPath string) (*model.DeviationResult, error) {
	var d model.DeviationResult
	if err := loadLatest(filepath.Join(rootPath, deviationDir), "deviation_*.json", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// loadLatest decodes the newest file matching pattern in dir. The timestamp
// format sorts lexically in time order.
func loadLatest(dir, pattern string, v any) error {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: no %s in %s", model.ErrMissingPriorSummary, pattern, dir)
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", latest, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode '%s': %w", latest, err)
	}
	return nil
}
