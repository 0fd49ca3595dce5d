package attack

import (
	"NetDeviation/internal/model"
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"
)

// Flood sends a fixed number of crafted packets of one protocol through a
// PacketSink. Ports are drawn at random per packet.
type Flood struct {
	name     string
	typ      string
	count    int
	protocol model.Protocol
	syn      bool
	sink     model.PacketSink

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSYNFlood sends TCP packets with only the SYN flag set.
func NewSYNFlood(name string, count int, sink model.PacketSink) *Flood {
	return newFlood(name, "syn_flood", count, model.ProtocolTCP, true, sink)
}

// NewICMPFlood sends ICMP echo requests.
func NewICMPFlood(name string, count int, sink model.PacketSink) *Flood {
	return newFlood(name, "icmp_flood", count, model.ProtocolICMP, false, sink)
}

// NewUDPFlood sends empty UDP datagrams.
func NewUDPFlood(name string, count int, sink model.PacketSink) *Flood {
	return newFlood(name, "udp_flood", count, model.ProtocolUDP, false, sink)
}

func newFlood(name, typ string, count int, p model.Protocol, syn bool, sink model.PacketSink) *Flood {
	return &Flood{
		name:     name,
		typ:      typ,
		count:    count,
		protocol: p,
		syn:      syn,
		sink:     sink,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (f *Flood) Name() string { return f.name }
func (f *Flood) Type() string { return f.typ }

// Execute sends count packets. The first send error stops the flood; the
// number of packets already sent is kept as magnitude.
func (f *Flood) Execute(ctx context.Context, target string, rec *model.AttackRecord) error {
	dst, err := resolveIPv4(target)
	if err != nil {
		return err
	}

	for i := 0; i < f.count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.sink.Send(f.packet(dst)); err != nil {
			return fmt.Errorf("send failed after %d/%d packets: %w", rec.Magnitude, f.count, err)
		}
		rec.Magnitude++
	}
	return nil
}

func (f *Flood) packet(dst net.IP) model.OutboundPacket {
	f.mu.Lock()
	defer f.mu.Unlock()

	pkt := model.OutboundPacket{Protocol: f.protocol, Dst: dst, SYN: f.syn}
	if f.protocol == model.ProtocolTCP || f.protocol == model.ProtocolUDP {
		pkt.SrcPort = uint16(1024 + f.rnd.Intn(65535-1024+1))
		pkt.DstPort = uint16(1 + f.rnd.Intn(65535))
	}
	return pkt
}

func resolveIPv4(target string) (net.IP, error) {
	if ip := net.ParseIP(target); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("target %s is not an IPv4 address", target)
	}
	addr, err := net.ResolveIPAddr("ip4", target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target %s: %w", target, err)
	}
	return addr.IP.To4(), nil
}
