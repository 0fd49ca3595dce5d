package model

import (
	"strings"
	"time"
)

// Protocol is the transport-level class of a captured packet.
type Protocol uint8

const (
	ProtocolOther Protocol = iota
	ProtocolTCP
	ProtocolUDP
	ProtocolICMP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	case ProtocolICMP:
		return "icmp"
	default:
		return "other"
	}
}

// ParseProtocol is the inverse of Protocol.String. Unknown names map to ProtocolOther.
func ParseProtocol(s string) Protocol {
	switch strings.ToLower(s) {
	case "tcp":
		return ProtocolTCP
	case "udp":
		return ProtocolUDP
	case "icmp":
		return ProtocolICMP
	default:
		return ProtocolOther
	}
}

// ClassifiedPacket holds the metadata extracted from a single IP packet.
// It lives only as long as it takes to aggregate it.
type ClassifiedPacket struct {
	Protocol  Protocol
	DstPort   uint16
	HasPort   bool // true iff Protocol == ProtocolTCP
	Src       string
	Dst       string
	Timestamp time.Time
	Length    int
}

// Run kinds.
const (
	KindBaseline = "baseline"
	KindAttack   = "attack"
)

// PortCount is one row of the top-N destination port table.
type PortCount struct {
	Port  uint16 `json:"port"`
	Count uint64 `json:"count"`
}

// TrafficSummary is the immutable result of one capture run.
type TrafficSummary struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	TotalCount uint64 `json:"total_count"`
	TCPCount   uint64 `json:"tcp_count"`
	UDPCount   uint64 `json:"udp_count"`
	ICMPCount  uint64 `json:"icmp_count"`
	OtherCount uint64 `json:"other_count"`
	// SkippedCount counts non-IP packets. They take no part in any statistic.
	SkippedCount uint64 `json:"skipped_count"`

	UniqueSourceCount      int      `json:"unique_source_count"`
	UniqueDestinationCount int      `json:"unique_destination_count"`
	UniqueSources          []string `json:"unique_sources"`
	UniqueDestinations     []string `json:"unique_destinations"`

	PortFrequency []PortCount `json:"port_frequency"`

	RateBuffer  []uint64 `json:"rate_buffer"`
	RateSeconds []int64  `json:"rate_seconds"`

	Incomplete       bool   `json:"incomplete"`
	IncompleteReason string `json:"incomplete_reason,omitempty"`
}

// MaxZeroFillSeconds bounds the span ZeroFilledRates will expand.
const MaxZeroFillSeconds = 24 * 60 * 60

// RateSpan returns the number of seconds between the first and last bucket,
// both included. Without usable bucket seconds it is len(RateBuffer).
func (s *TrafficSummary) RateSpan() int64 {
	if len(s.RateBuffer) == 0 || len(s.RateSeconds) != len(s.RateBuffer) {
		return int64(len(s.RateBuffer))
	}
	first, last := s.RateSeconds[0], s.RateSeconds[0]
	for _, sec := range s.RateSeconds[1:] {
		first, last = min(first, sec), max(last, sec)
	}
	return last - first + 1
}

// ZeroFilledRates expands RateBuffer into one sample per elapsed second between
// the first and last bucket, inserting zeros for idle seconds. RateBuffer itself
// only has entries for seconds that saw traffic. A span longer than
// MaxZeroFillSeconds, or a buffer without bucket seconds, is returned unexpanded.
func (s *TrafficSummary) ZeroFilledRates() []uint64 {
	span := s.RateSpan()
	if len(s.RateBuffer) == 0 || len(s.RateSeconds) != len(s.RateBuffer) || span > MaxZeroFillSeconds {
		out := make([]uint64, len(s.RateBuffer))
		copy(out, s.RateBuffer)
		return out
	}
	first := s.RateSeconds[0]
	for _, sec := range s.RateSeconds[1:] {
		first = min(first, sec)
	}
	out := make([]uint64, span)
	for i, sec := range s.RateSeconds {
		out[sec-first] += s.RateBuffer[i]
	}
	return out
}

// AttackRecord describes what one attack module did.
type AttackRecord struct {
	Module          string         `json:"module"`
	Type            string         `json:"type"`
	Target          string         `json:"target"`
	Magnitude       int            `json:"magnitude"`
	PortsScanned    string         `json:"ports_scanned,omitempty"`
	PortsProbed     []int          `json:"ports_probed,omitempty"`
	ResponsivePorts []int          `json:"responsive_ports,omitempty"`
	ConnectedPorts  []int          `json:"connected_ports,omitempty"`
	Banners         map[int]string `json:"banners,omitempty"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	Error           string         `json:"error,omitempty"`
}

// AttackLog is the ordered list of module records for one attack run.
type AttackLog struct {
	RunID     string         `json:"run_id"`
	Target    string         `json:"target"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Records   []AttackRecord `json:"attacks_performed"`
}

// Failed returns the records whose module reported an error.
func (l *AttackLog) Failed() []AttackRecord {
	var out []AttackRecord
	for _, r := range l.Records {
		if r.Error != "" {
			out = append(out, r)
		}
	}
	return out
}

// DeviationResult holds the normalized comparison of two summaries.
type DeviationResult struct {
	BaselineRunID string    `json:"baseline_run_id"`
	AttackRunID   string    `json:"attack_run_id"`
	ComputedAt    time.Time `json:"computed_at"`

	TotalPacketIncreasePct float64 `json:"total_packet_increase_pct"`
	TCPIncreasePct         float64 `json:"tcp_increase_pct"`
	UDPIncreasePct         float64 `json:"udp_increase_pct"`
	ICMPIncreasePct        float64 `json:"icmp_increase_pct"`

	BaselineAvgPPS float64 `json:"baseline_avg_pps"`
	AttackAvgPPS   float64 `json:"attack_avg_pps"`

	BaselineZeroFilledAvgPPS float64 `json:"baseline_zero_filled_avg_pps"`
	AttackZeroFilledAvgPPS   float64 `json:"attack_zero_filled_avg_pps"`
}
