package aggregator

import (
	"NetDeviation/internal/model"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Unix(1_700_000_000, 0)

func fixedClock() func() time.Time {
	return func() time.Time { return base }
}

func tcp(port uint16) *model.ClassifiedPacket {
	return &model.ClassifiedPacket{Protocol: model.ProtocolTCP, DstPort: port, HasPort: true, Src: "10.0.0.1", Dst: "10.0.0.2"}
}

func TestObserve_CountsAndInvariant(t *testing.T) {
	a := New("run-1", model.KindBaseline, WithClock(fixedClock()))
	rng := rand.New(rand.NewSource(42))
	protos := []model.Protocol{model.ProtocolTCP, model.ProtocolUDP, model.ProtocolICMP, model.ProtocolOther}

	now := base
	for i := 0; i < 5000; i++ {
		p := &model.ClassifiedPacket{
			Protocol: protos[rng.Intn(len(protos))],
			Src:      "10.0.0." + string(rune('0'+rng.Intn(10))),
			Dst:      "10.0.1." + string(rune('0'+rng.Intn(10))),
		}
		if p.Protocol == model.ProtocolTCP {
			p.HasPort = true
			p.DstPort = uint16(rng.Intn(100))
		}
		now = now.Add(time.Duration(rng.Intn(400)) * time.Millisecond)
		require.NoError(t, a.Observe(p, now))

		c := a.Counts()
		require.Equal(t, c.Total, c.TCP+c.UDP+c.ICMP+c.Other)
		require.Equal(t, c.Total, c.RateSum+c.OpenBucket)
	}

	s := a.Finalize()
	assert.Equal(t, uint64(5000), s.TotalCount)
	assert.Equal(t, s.TotalCount, s.TCPCount+s.UDPCount+s.ICMPCount+s.OtherCount)

	var sum uint64
	for _, r := range s.RateBuffer {
		sum += r
	}
	assert.Equal(t, s.TotalCount, sum)
	assert.Len(t, s.RateSeconds, len(s.RateBuffer))

	require.LessOrEqual(t, len(s.PortFrequency), DefaultTopN)
	for i := 1; i < len(s.PortFrequency); i++ {
		assert.GreaterOrEqual(t, s.PortFrequency[i-1].Count, s.PortFrequency[i].Count)
	}
	assert.Equal(t, len(s.UniqueSources), s.UniqueSourceCount)
	assert.LessOrEqual(t, s.UniqueSourceCount, 10)
}

func TestObserve_OtherIsTotalOnly(t *testing.T) {
	a := New("run", model.KindBaseline)
	require.NoError(t, a.Observe(&model.ClassifiedPacket{Protocol: model.ProtocolOther, Src: "a", Dst: "b"}, base))

	s := a.Finalize()
	assert.Equal(t, uint64(1), s.TotalCount)
	assert.Zero(t, s.TCPCount+s.UDPCount+s.ICMPCount)
	assert.Equal(t, uint64(1), s.OtherCount)
	assert.Empty(t, s.PortFrequency)
}

func TestRateBuckets_NoBackfill(t *testing.T) {
	a := New("run", model.KindAttack)

	// Three packets in second 0, one in second 1, none in 2-4, two in second 5.
	offsets := []time.Duration{0, 100 * time.Millisecond, 900 * time.Millisecond, 1500 * time.Millisecond, 5 * time.Second, 5200 * time.Millisecond}
	for _, off := range offsets {
		require.NoError(t, a.Observe(tcp(80), base.Add(off)))
	}

	s := a.Finalize()
	assert.Equal(t, []uint64{3, 1, 2}, s.RateBuffer)
	assert.Equal(t, []int64{base.Unix(), base.Unix() + 1, base.Unix() + 5}, s.RateSeconds)
	assert.Equal(t, []uint64{3, 1, 0, 0, 0, 2}, s.ZeroFilledRates())
}

func TestRateBuckets_BackwardStepStaysInBucket(t *testing.T) {
	a := New("run", model.KindAttack)
	require.NoError(t, a.Observe(tcp(80), base.Add(2*time.Second)))
	require.NoError(t, a.Observe(tcp(80), base.Add(1*time.Second)))
	require.NoError(t, a.Observe(tcp(80), base.Add(3*time.Second)))

	s := a.Finalize()
	assert.Equal(t, []uint64{2, 1}, s.RateBuffer)
}

func TestFinalize_TopPortsStableOnTies(t *testing.T) {
	a := New("run", model.KindAttack)

	// 25 distinct ports; 9000 and 22 get extra hits. All others tie at 1,
	// so the first-seen order decides which make the cut.
	for p := uint16(1000); p < 1025; p++ {
		require.NoError(t, a.Observe(tcp(p), base))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, a.Observe(tcp(22), base))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Observe(tcp(9000), base))
	}

	s := a.Finalize()
	require.Len(t, s.PortFrequency, 20)
	assert.Equal(t, model.PortCount{Port: 9000, Count: 5}, s.PortFrequency[0])
	assert.Equal(t, model.PortCount{Port: 22, Count: 3}, s.PortFrequency[1])
	for i, pc := range s.PortFrequency[2:] {
		assert.Equal(t, uint16(1000+i), pc.Port)
		assert.Equal(t, uint64(1), pc.Count)
	}
}

func TestFinalize_Idempotent(t *testing.T) {
	calls := 0
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	a := New("run", model.KindBaseline, WithClock(clock))
	require.NoError(t, a.Observe(tcp(443), base))

	first := a.Finalize()
	second := a.Finalize()
	assert.Same(t, first, second)
	assert.Equal(t, *first, *second)

	assert.ErrorIs(t, a.Observe(tcp(443), base), ErrFinalized)
	a.Skip()
	a.MarkIncomplete("late")
	assert.Equal(t, uint64(1), second.TotalCount)
	assert.Zero(t, second.SkippedCount)
	assert.False(t, second.Incomplete)
}

func TestSkipAndIncomplete(t *testing.T) {
	a := New("run", model.KindBaseline, WithTopN(5))
	a.Skip()
	a.Skip()
	a.MarkIncomplete("source failed")
	a.MarkIncomplete("second reason ignored")

	s := a.Finalize()
	assert.Equal(t, uint64(2), s.SkippedCount)
	assert.Zero(t, s.TotalCount)
	assert.True(t, s.Incomplete)
	assert.Equal(t, "source failed", s.IncompleteReason)
	assert.NotNil(t, s.RateBuffer)
	assert.Empty(t, s.RateBuffer)
}

func TestUniqueEndpoints(t *testing.T) {
	a := New("run", model.KindBaseline)
	pkts := []*model.ClassifiedPacket{
		{Protocol: model.ProtocolUDP, Src: "1.1.1.1", Dst: "2.2.2.2"},
		{Protocol: model.ProtocolUDP, Src: "1.1.1.1", Dst: "3.3.3.3"},
		{Protocol: model.ProtocolICMP, Src: "4.4.4.4", Dst: "2.2.2.2"},
	}
	for _, p := range pkts {
		require.NoError(t, a.Observe(p, base))
	}
	s := a.Finalize()
	assert.Equal(t, []string{"1.1.1.1", "4.4.4.4"}, s.UniqueSources)
	assert.Equal(t, []string{"2.2.2.2", "3.3.3.3"}, s.UniqueDestinations)
	assert.Equal(t, 2, s.UniqueSourceCount)
	assert.Equal(t, 2, s.UniqueDestinationCount)
}
