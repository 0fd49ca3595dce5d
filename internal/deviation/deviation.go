// Package deviation compares an attack-phase traffic summary against its
// baseline.
package deviation

import (
	"NetDeviation/internal/model"
	"math"
)

// Compare computes the deviation of attack from baseline. It is total: a zero
// baseline count yields 0% rather than an undefined ratio, and an empty rate
// buffer has a mean of 0. ComputedAt is left for the caller to stamp.
func Compare(baseline, attack *model.TrafficSummary) model.DeviationResult {
	return model.DeviationResult{
		BaselineRunID: baseline.RunID,
		AttackRunID:   attack.RunID,

		TotalPacketIncreasePct: PercentChange(baseline.TotalCount, attack.TotalCount),
		TCPIncreasePct:         PercentChange(baseline.TCPCount, attack.TCPCount),
		UDPIncreasePct:         PercentChange(baseline.UDPCount, attack.UDPCount),
		ICMPIncreasePct:        PercentChange(baseline.ICMPCount, attack.ICMPCount),

		BaselineAvgPPS: MeanRate(baseline.RateBuffer),
		AttackAvgPPS:   MeanRate(attack.RateBuffer),

		BaselineZeroFilledAvgPPS: ZeroFilledMeanRate(baseline),
		AttackZeroFilledAvgPPS:   ZeroFilledMeanRate(attack),
	}
}

// PercentChange returns (attack-baseline)/baseline*100 rounded to one decimal,
// or 0 when baseline is 0.
func PercentChange(baseline, attack uint64) float64 {
	if baseline == 0 {
		return 0
	}
	pct := (float64(attack) - float64(baseline)) / float64(baseline) * 100
	return round(pct, 1)
}

// MeanRate is the arithmetic mean of the buckets rounded to two decimals.
// An empty buffer counts as a single zero sample.
func MeanRate(buckets []uint64) float64 {
	if len(buckets) == 0 {
		return 0
	}
	var sum uint64
	for _, b := range buckets {
		sum += b
	}
	return round(float64(sum)/float64(len(buckets)), 2)
}

// ZeroFilledMeanRate is the mean packets per second over every second between
// the first and last bucket, idle seconds counting as 0. It never expands the
// series, so any bucket span is safe.
func ZeroFilledMeanRate(s *model.TrafficSummary) float64 {
	span := s.RateSpan()
	if span <= 0 {
		return 0
	}
	var sum uint64
	for _, b := range s.RateBuffer {
		sum += b
	}
	return round(float64(sum)/float64(span), 2)
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
