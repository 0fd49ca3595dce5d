package aggregator

import (
	"NetDeviation/internal/model"
	"cmp"
	"errors"
	"slices"
	"time"
)

// DefaultTopN is the size of the destination port table kept at finalization.
const DefaultTopN = 20

// ErrFinalized is returned by Observe once the summary has been produced.
var ErrFinalized = errors.New("aggregator already finalized")

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the clock used for the start and end timestamps.
func WithClock(clock func() time.Time) Option {
	return func(a *Aggregator) { a.clock = clock }
}

// WithTopN overrides the number of destination ports kept at finalization.
func WithTopN(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topN = n
		}
	}
}

// Counts is a live view of the running counters.
type Counts struct {
	Total, TCP, UDP, ICMP, Other, Skipped uint64
	// RateSum is the sum of the closed buckets; OpenBucket is the count of the current second.
	RateSum    uint64
	OpenBucket uint64
}

type portEntry struct {
	port  uint16
	count uint64
}

// endpointSet is an insertion-ordered set.
type endpointSet struct {
	seen  map[string]struct{}
	order []string
}

func newEndpointSet() endpointSet {
	return endpointSet{seen: make(map[string]struct{})}
}

func (s *endpointSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.order = append(s.order, v)
}

// Aggregator owns all mutable state of one capture run.
// It is not safe for concurrent use: exactly one goroutine, the capture loop,
// may call Observe, and it must do so in arrival order.
type Aggregator struct {
	runID string
	kind  string
	clock func() time.Time
	topN  int
	start time.Time

	total, tcp, udp, icmp, other, skipped uint64

	sources      endpointSet
	destinations endpointSet

	// ports grows without bound during capture and is truncated only in Finalize.
	ports     map[uint16]int // port -> index into portOrder
	portOrder []portEntry

	rates       []uint64
	rateSeconds []int64
	bucketSec   int64
	bucketCount uint64
	bucketOpen  bool

	incompleteReason string
	summary          *model.TrafficSummary
}

// New creates an aggregator for a single capture run.
func New(runID, kind string, opts ...Option) *Aggregator {
	a := &Aggregator{
		runID:        runID,
		kind:         kind,
		clock:        time.Now,
		topN:         DefaultTopN,
		sources:      newEndpointSet(),
		destinations: newEndpointSet(),
		ports:        make(map[uint16]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.start = a.clock()
	return a
}

// Observe folds one classified packet into the running statistics.
// now is the packet's arrival time; only its unix second matters.
func (a *Aggregator) Observe(pkt *model.ClassifiedPacket, now time.Time) error {
	if a.summary != nil {
		return ErrFinalized
	}

	a.total++
	switch pkt.Protocol {
	case model.ProtocolTCP:
		a.tcp++
		if pkt.HasPort {
			a.countPort(pkt.DstPort)
		}
	case model.ProtocolUDP:
		a.udp++
	case model.ProtocolICMP:
		a.icmp++
	default:
		a.other++
	}

	a.sources.add(pkt.Src)
	a.destinations.add(pkt.Dst)
	a.bucket(now.Unix())
	return nil
}

// Skip records a packet that was excluded by the classifier.
func (a *Aggregator) Skip() {
	if a.summary == nil {
		a.skipped++
	}
}

// MarkIncomplete flags the run as cut short. The first reason wins.
func (a *Aggregator) MarkIncomplete(reason string) {
	if a.summary == nil && a.incompleteReason == "" {
		a.incompleteReason = reason
	}
}

func (a *Aggregator) countPort(port uint16) {
	if idx, ok := a.ports[port]; ok {
		a.portOrder[idx].count++
		return
	}
	a.ports[port] = len(a.portOrder)
	a.portOrder = append(a.portOrder, portEntry{port: port, count: 1})
}

// bucket closes the open bucket when the second advances. Idle seconds are
// not back-filled, so the buffer only has entries for seconds with traffic.
func (a *Aggregator) bucket(sec int64) {
	switch {
	case !a.bucketOpen:
		a.bucketSec, a.bucketCount, a.bucketOpen = sec, 1, true
	case sec > a.bucketSec:
		a.rates = append(a.rates, a.bucketCount)
		a.rateSeconds = append(a.rateSeconds, a.bucketSec)
		a.bucketSec, a.bucketCount = sec, 1
	default:
		// Same second, or a clock step backwards: stay in the open bucket.
		a.bucketCount++
	}
}

// Counts returns the current counters without finalizing.
func (a *Aggregator) Counts() Counts {
	c := Counts{
		Total:   a.total,
		TCP:     a.tcp,
		UDP:     a.udp,
		ICMP:    a.icmp,
		Other:   a.other,
		Skipped: a.skipped,
	}
	for _, r := range a.rates {
		c.RateSum += r
	}
	if a.bucketOpen {
		c.OpenBucket = a.bucketCount
	}
	return c
}

// Finalize flushes the open bucket, truncates the port table and returns the
// immutable summary. Later calls return the same summary.
func (a *Aggregator) Finalize() *model.TrafficSummary {
	if a.summary != nil {
		return a.summary
	}

	if a.bucketOpen {
		a.rates = append(a.rates, a.bucketCount)
		a.rateSeconds = append(a.rateSeconds, a.bucketSec)
		a.bucketOpen = false
	}

	a.summary = &model.TrafficSummary{
		RunID:                  a.runID,
		Kind:                   a.kind,
		StartTime:              a.start,
		EndTime:                a.clock(),
		TotalCount:             a.total,
		TCPCount:               a.tcp,
		UDPCount:               a.udp,
		ICMPCount:              a.icmp,
		OtherCount:             a.other,
		SkippedCount:           a.skipped,
		UniqueSourceCount:      len(a.sources.order),
		UniqueDestinationCount: len(a.destinations.order),
		UniqueSources:          slices.Clone(a.sources.order),
		UniqueDestinations:     slices.Clone(a.destinations.order),
		PortFrequency:          topPorts(a.portOrder, a.topN),
		RateBuffer:             slices.Clone(a.rates),
		RateSeconds:            slices.Clone(a.rateSeconds),
		Incomplete:             a.incompleteReason != "",
		IncompleteReason:       a.incompleteReason,
	}
	if a.summary.RateBuffer == nil {
		a.summary.RateBuffer = []uint64{}
		a.summary.RateSeconds = []int64{}
	}
	return a.summary
}

// topPorts sorts by descending count, ties kept in first-seen order, and keeps n entries.
func topPorts(entries []portEntry, n int) []model.PortCount {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(x, y portEntry) int {
		return cmp.Compare(y.count, x.count)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]model.PortCount, len(sorted))
	for i, e := range sorted {
		out[i] = model.PortCount{Port: e.port, Count: e.count}
	}
	return out
}
