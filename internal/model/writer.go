package model

// Writer defines a generic interface for persisting run artifacts.
type Writer interface {
	WriteSummary(summary *TrafficSummary) error
	WriteAttackLog(log *AttackLog) error
	WriteDeviation(result *DeviationResult) error
	Close() error
}
