package capture

import (
	"NetDeviation/internal/metrics"
	"NetDeviation/internal/model"
	"NetDeviation/internal/testutil"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource replays a fixed packet list. With hold set it keeps the stream
// open after the last packet until closed.
type fakeSource struct {
	packets []gopacket.Packet
	openErr error
	endErr  error
	hold    bool

	done   chan struct{}
	closed bool
}

func (f *fakeSource) Open(ctx context.Context) (<-chan gopacket.Packet, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.done = make(chan struct{})
	out := make(chan gopacket.Packet)
	go func() {
		defer close(out)
		for _, p := range f.packets {
			select {
			case out <- p:
			case <-f.done:
				return
			}
		}
		if f.hold {
			<-f.done
		}
	}()
	return out, nil
}

func (f *fakeSource) Err() error                { return f.endErr }
func (f *fakeSource) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func (f *fakeSource) Close() error {
	if !f.closed && f.done != nil {
		close(f.done)
	}
	f.closed = true
	return nil
}

func mixedTraffic(t *testing.T, start time.Time) []gopacket.Packet {
	t.Helper()
	var frames []testutil.Frame
	for i := 0; i < 10; i++ {
		proto := []model.Protocol{model.ProtocolTCP, model.ProtocolUDP, model.ProtocolICMP}[i%3]
		frames = append(frames, testutil.Frame{
			Protocol: proto,
			Src:      "10.0.0.1",
			Dst:      "10.0.0.2",
			SrcPort:  40000,
			DstPort:  uint16(80 + i%2),
			Time:     start.Add(time.Duration(i) * 300 * time.Millisecond),
		})
		if i%2 == 0 {
			frames = append(frames, testutil.Frame{NonIP: true, Time: start.Add(time.Duration(i) * 300 * time.Millisecond)})
		}
	}
	packets := make([]gopacket.Packet, 0, len(frames))
	for _, f := range frames {
		p, err := testutil.Packet(f)
		require.NoError(t, err)
		packets = append(packets, p)
	}
	return packets
}

func TestSession_SkipsNonIPPackets(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	src := &fakeSource{packets: mixedTraffic(t, start)}

	session := NewSession(Options{RunID: "run-1", Kind: model.KindBaseline})
	summary, err := session.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, uint64(10), summary.TotalCount)
	assert.Equal(t, uint64(4), summary.TCPCount)
	assert.Equal(t, uint64(3), summary.UDPCount)
	assert.Equal(t, uint64(3), summary.ICMPCount)
	assert.Equal(t, uint64(5), summary.SkippedCount)
	assert.False(t, summary.Incomplete)

	var rateSum uint64
	for _, r := range summary.RateBuffer {
		rateSum += r
	}
	assert.Equal(t, summary.TotalCount, rateSum)
	assert.True(t, src.closed)
}

func TestSession_CountBound(t *testing.T) {
	src := &fakeSource{packets: mixedTraffic(t, time.Unix(1_700_000_000, 0)), hold: true}

	session := NewSession(Options{RunID: "run-2", Kind: model.KindBaseline, Bound: Bound{Count: 4}})
	summary, err := session.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), summary.TotalCount)
}

func TestSession_DurationBound(t *testing.T) {
	src := &fakeSource{packets: mixedTraffic(t, time.Unix(1_700_000_000, 0)), hold: true}

	session := NewSession(Options{RunID: "run-3", Kind: model.KindAttack, Bound: Bound{Duration: 50 * time.Millisecond}})
	summary, err := session.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), summary.TotalCount)
	assert.False(t, summary.Incomplete)
}

func TestSession_SourceUnavailable(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	src := &fakeSource{openErr: errors.New("no such device")}

	session := NewSession(Options{RunID: "run-4", Kind: model.KindBaseline, Metrics: m})
	summary, err := session.Run(context.Background(), src)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "no such device")
	expected := `
# HELP netdev_capture_runs_total Capture sessions by outcome.
# TYPE netdev_capture_runs_total counter
netdev_capture_runs_total{kind="baseline",outcome="unavailable"} 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(reg, strings.NewReader(expected), "netdev_capture_runs_total"))
}

func TestSession_MidCaptureFailureKeepsPartialSummary(t *testing.T) {
	cause := errors.New("interface went down")
	src := &fakeSource{packets: mixedTraffic(t, time.Unix(1_700_000_000, 0)), endErr: cause}

	session := NewSession(Options{RunID: "run-5", Kind: model.KindAttack})
	summary, err := session.Run(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPartialCapture)
	assert.ErrorIs(t, err, cause)

	require.NotNil(t, summary)
	assert.Equal(t, uint64(10), summary.TotalCount)
	assert.True(t, summary.Incomplete)
	assert.Equal(t, cause.Error(), summary.IncompleteReason)
}

func TestSession_ContextCancelIsPartial(t *testing.T) {
	src := &fakeSource{hold: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := NewSession(Options{RunID: "run-6", Kind: model.KindBaseline})
	summary, err := session.Run(ctx, src)
	assert.ErrorIs(t, err, model.ErrPartialCapture)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.True(t, summary.Incomplete)
	assert.Equal(t, uint64(0), summary.TotalCount)
	assert.NotNil(t, summary.RateBuffer)
}

func TestSession_ArchivesQualifyingPackets(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{packets: mixedTraffic(t, time.Unix(1_700_000_000, 0))}

	session := NewSession(Options{RunID: "run-7", Kind: model.KindBaseline, ArchiveDir: dir})
	_, err := session.Run(context.Background(), src)
	require.NoError(t, err)
	require.NotEmpty(t, session.ArchivePath())
	assert.Contains(t, session.ArchivePath(), "baseline_")

	f, err := os.Open(session.ArchivePath())
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)

	var n int
	for {
		_, _, err := r.ReadPacketData()
		if err != nil {
			break
		}
		n++
	}
	assert.Equal(t, 10, n)
}
