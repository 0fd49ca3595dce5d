package attack

import (
	"NetDeviation/internal/model"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/ipv4"
)

var errUnsupportedProtocol = errors.New("unsupported outbound protocol")

// RawSink writes crafted IPv4 packets through raw sockets. It needs
// CAP_NET_RAW. Sockets are opened per protocol on first use.
type RawSink struct {
	mu    sync.Mutex
	conns map[model.Protocol]*ipv4.RawConn
	srcs  map[string]net.IP
	ipID  uint16
}

// NewRawSink creates a sink. No socket is opened until the first Send.
func NewRawSink() *RawSink {
	return &RawSink{
		conns: make(map[model.Protocol]*ipv4.RawConn),
		srcs:  make(map[string]net.IP),
	}
}

// Send serializes pkt and writes it with a caller-built IP header.
func (s *RawSink) Send(pkt model.OutboundPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.conn(pkt.Protocol)
	if err != nil {
		return err
	}
	src, err := s.source(pkt.Dst)
	if err != nil {
		return err
	}

	s.ipID++
	frame, err := serialize(pkt, src, s.ipID)
	if err != nil {
		return err
	}
	h, err := ipv4.ParseHeader(frame)
	if err != nil {
		return fmt.Errorf("failed to parse crafted header: %w", err)
	}
	if err := conn.WriteTo(h, frame[h.Len:], nil); err != nil {
		return fmt.Errorf("raw write to %s: %w", pkt.Dst, err)
	}
	return nil
}

func (s *RawSink) conn(p model.Protocol) (*ipv4.RawConn, error) {
	if c, ok := s.conns[p]; ok {
		return c, nil
	}
	var network string
	switch p {
	case model.ProtocolTCP:
		network = "ip4:tcp"
	case model.ProtocolUDP:
		network = "ip4:udp"
	case model.ProtocolICMP:
		network = "ip4:icmp"
	default:
		return nil, errUnsupportedProtocol
	}
	pc, err := net.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("failed to open raw socket %s: %w", network, err)
	}
	c, err := ipv4.NewRawConn(pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to create raw conn %s: %w", network, err)
	}
	s.conns[p] = c
	return c, nil
}

// source picks the local address the kernel would route dst from. The
// transport checksums cover it, so it cannot be left for the kernel to fill.
func (s *RawSink) source(dst net.IP) (net.IP, error) {
	key := dst.String()
	if ip, ok := s.srcs[key]; ok {
		return ip, nil
	}
	c, err := net.Dial("udp4", net.JoinHostPort(key, "9"))
	if err != nil {
		return nil, fmt.Errorf("no route to %s: %w", key, err)
	}
	defer c.Close()
	ip := c.LocalAddr().(*net.UDPAddr).IP.To4()
	s.srcs[key] = ip
	return ip, nil
}

func serialize(pkt model.OutboundPacket, src net.IP, id uint16) ([]byte, error) {
	ip := &layers.IPv4{
		Version: 4,
		IHL:     5,
		TTL:     64,
		Id:      id,
		SrcIP:   src,
		DstIP:   pkt.Dst.To4(),
	}

	var transport gopacket.SerializableLayer
	switch pkt.Protocol {
	case model.ProtocolTCP:
		ip.Protocol = layers.IPProtocolTCP
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(pkt.SrcPort),
			DstPort: layers.TCPPort(pkt.DstPort),
			SYN:     pkt.SYN,
			Window:  1024,
			Seq:     uint32(id) << 16,
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		transport = tcp
	case model.ProtocolUDP:
		ip.Protocol = layers.IPProtocolUDP
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(pkt.SrcPort),
			DstPort: layers.UDPPort(pkt.DstPort),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		transport = udp
	case model.ProtocolICMP:
		ip.Protocol = layers.IPProtocolICMPv4
		transport = &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
			Id:       id,
			Seq:      id,
		}
	default:
		return nil, errUnsupportedProtocol
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, transport, gopacket.Payload(pkt.Payload)); err != nil {
		return nil, fmt.Errorf("failed to serialize packet: %w", err)
	}
	return buf.Bytes(), nil
}

// Close closes every raw socket that was opened.
func (s *RawSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for p, c := range s.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.conns, p)
	}
	return errors.Join(errs...)
}
