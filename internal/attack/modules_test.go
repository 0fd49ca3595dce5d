package attack

import (
	"NetDeviation/internal/model"
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	sent   []model.OutboundPacket
	failAt int
}

func (s *recordingSink) Send(p model.OutboundPacket) error {
	if s.failAt > 0 && len(s.sent) == s.failAt {
		return errors.New("sendto: operation not permitted")
	}
	s.sent = append(s.sent, p)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func TestFlood_SYNPortsInRange(t *testing.T) {
	sink := &recordingSink{}
	flood := NewSYNFlood("syn_flood", 200, sink)

	var rec model.AttackRecord
	require.NoError(t, flood.Execute(context.Background(), "127.0.0.1", &rec))
	assert.Equal(t, 200, rec.Magnitude)
	require.Len(t, sink.sent, 200)
	for _, p := range sink.sent {
		assert.Equal(t, model.ProtocolTCP, p.Protocol)
		assert.True(t, p.SYN)
		assert.GreaterOrEqual(t, p.SrcPort, uint16(1024))
		assert.GreaterOrEqual(t, p.DstPort, uint16(1))
		assert.True(t, p.Dst.Equal(net.ParseIP("127.0.0.1")))
	}
}

func TestFlood_ICMPHasNoPorts(t *testing.T) {
	sink := &recordingSink{}
	var rec model.AttackRecord
	require.NoError(t, NewICMPFlood("icmp_flood", 100, sink).Execute(context.Background(), "127.0.0.1", &rec))
	assert.Equal(t, 100, rec.Magnitude)
	for _, p := range sink.sent {
		assert.Equal(t, model.ProtocolICMP, p.Protocol)
		assert.Zero(t, p.DstPort)
	}
}

func TestFlood_SendFailureKeepsSentCount(t *testing.T) {
	sink := &recordingSink{failAt: 40}
	var rec model.AttackRecord
	err := NewUDPFlood("udp_flood", 150, sink).Execute(context.Background(), "127.0.0.1", &rec)
	require.Error(t, err)
	assert.Equal(t, 40, rec.Magnitude)
	assert.Contains(t, err.Error(), "40/150")
}

func TestFlood_RejectsIPv6Target(t *testing.T) {
	var rec model.AttackRecord
	err := NewUDPFlood("udp_flood", 1, &recordingSink{}).Execute(context.Background(), "::1", &rec)
	assert.Error(t, err)
}

func TestPortScan_ParsesOpenPorts(t *testing.T) {
	output := `Starting Nmap 7.94 ( https://nmap.org )
Nmap scan report for localhost (127.0.0.1)
Host is up (0.000010s latency).
Not shown: 997 closed tcp ports (reset)
PORT    STATE SERVICE
22/tcp  open  ssh
80/tcp  open  http
631/tcp open  ipp

Nmap done: 1 IP address (1 host up) scanned in 0.10 seconds
`
	var gotArgs []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(output), nil
	}

	var rec model.AttackRecord
	scan := NewPortScan("nmap_port_scan", "", "1-1000", runner)
	require.NoError(t, scan.Execute(context.Background(), "127.0.0.1", &rec))

	assert.Equal(t, []string{"nmap", "-sS", "-p", "1-1000", "--open", "127.0.0.1"}, gotArgs)
	assert.Equal(t, 1000, rec.Magnitude)
	assert.Equal(t, "1-1000", rec.PortsScanned)
	assert.Equal(t, []int{22, 80, 631}, rec.ResponsivePorts)
}

func TestPortScan_RunnerFailure(t *testing.T) {
	runner := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exec: \"nmap\": executable file not found in $PATH")
	}
	var rec model.AttackRecord
	err := NewPortScan("scan", "nmap", "1-1000", runner).Execute(context.Background(), "127.0.0.1", &rec)
	assert.Error(t, err)
	assert.Equal(t, 1000, rec.Magnitude)
}

func TestCountPorts(t *testing.T) {
	tests := []struct {
		expr    string
		want    int
		wantErr bool
	}{
		{"1-1000", 1000, false},
		{"22,80,443", 3, false},
		{"20-25,80", 7, false},
		{"0-10", 0, true},
		{"100-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := countPorts(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBannerGrab_RecordsResponsiveSubset(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
			conn.Close()
		}
	}()
	openPort := ln.Addr().(*net.TCPAddr).Port

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	require.NoError(t, closed.Close())

	grab := NewBannerGrab("banner_grab", []int{closedPort, openPort}, 500*time.Millisecond, nil)
	var rec model.AttackRecord
	require.NoError(t, grab.Execute(context.Background(), "127.0.0.1", &rec))

	assert.Equal(t, []int{closedPort, openPort}, rec.PortsProbed)
	assert.Equal(t, []int{closedPort, openPort}, rec.ResponsivePorts, "a refused port answered with a RST")
	assert.Equal(t, []int{openPort}, rec.ConnectedPorts)
	assert.NotContains(t, rec.Banners, closedPort)
	assert.Equal(t, "SSH-2.0-OpenSSH_9.6", rec.Banners[openPort])
	assert.Equal(t, 2, rec.Magnitude)
}

func TestBannerGrab_NoResponseIsNotAFailure(t *testing.T) {
	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: context.DeadlineExceeded}
	}
	ports := []int{21, 22, 23, 25, 80, 443, 3306, 8080}
	grab := NewBannerGrab("banner_grab", ports, 0, dial)

	var rec model.AttackRecord
	require.NoError(t, grab.Execute(context.Background(), "192.0.2.1", &rec))
	assert.Empty(t, rec.ResponsivePorts)
	assert.NotNil(t, rec.ResponsivePorts)
	assert.Empty(t, rec.ConnectedPorts)
	assert.Len(t, rec.PortsProbed, 8)
}

func TestBannerGrab_RefusedCountsAsResponse(t *testing.T) {
	dial := func(_ context.Context, _, address string) (net.Conn, error) {
		if strings.HasSuffix(address, ":22") {
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
		}
		return nil, errors.New("i/o timeout")
	}
	grab := NewBannerGrab("banner_grab", []int{21, 22, 23}, 0, dial)

	var rec model.AttackRecord
	require.NoError(t, grab.Execute(context.Background(), "192.0.2.1", &rec))
	assert.Equal(t, []int{22}, rec.ResponsivePorts)
	assert.Empty(t, rec.ConnectedPorts)
	assert.Empty(t, rec.Banners)
}

func TestSerialize_SYN(t *testing.T) {
	pkt := model.OutboundPacket{
		Protocol: model.ProtocolTCP,
		Dst:      net.ParseIP("192.0.2.10"),
		SrcPort:  40000,
		DstPort:  443,
		SYN:      true,
	}
	frame, err := serialize(pkt, net.ParseIP("192.0.2.1").To4(), 7)
	require.NoError(t, err)
	// 20 byte IPv4 header plus 20 byte TCP header.
	require.Len(t, frame, 40)
	assert.Equal(t, byte(6), frame[9])
	assert.Equal(t, 443, int(frame[22])<<8|int(frame[23]))
	assert.Equal(t, byte(0x02), frame[33]&0x3f)
}
