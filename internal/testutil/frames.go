// Package testutil builds synthetic Ethernet frames and pcap files for tests
// and for the pcapgen tool.
package testutil

import (
	"NetDeviation/internal/model"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Frame describes one synthetic packet.
type Frame struct {
	Protocol model.Protocol
	Src      string
	Dst      string
	SrcPort  uint16
	DstPort  uint16
	Time     time.Time
	// NonIP produces an ARP frame instead of an IP packet.
	NonIP bool
}

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

// experimentalProto is an IP protocol number with no gopacket decoder (RFC 3692).
const experimentalProto layers.IPProtocol = 253

// Build serializes f into Ethernet frame bytes.
func Build(f Frame) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}

	if f.NonIP {
		eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP}
		arp := &layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   srcMAC,
			SourceProtAddress: net.IP{192, 168, 1, 1}.To4(),
			DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
			DstProtAddress:    net.IP{192, 168, 1, 2}.To4(),
		}
		if err := gopacket.SerializeLayers(buf, opts, eth, arp); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	src, dst := net.ParseIP(f.Src), net.ParseIP(f.Dst)
	if src == nil || dst == nil {
		return nil, fmt.Errorf("invalid frame addresses %q -> %q", f.Src, f.Dst)
	}

	var network gopacket.NetworkLayer
	var netSer gopacket.SerializableLayer
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC}
	isV6 := src.To4() == nil
	proto := ipProtocol(f.Protocol, isV6)
	if isV6 {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{Version: 6, HopLimit: 64, SrcIP: src, DstIP: dst, NextHeader: proto}
		network, netSer = ip, ip
	} else {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{Version: 4, TTL: 64, SrcIP: src.To4(), DstIP: dst.To4(), Protocol: proto}
		network, netSer = ip, ip
	}

	stack := []gopacket.SerializableLayer{eth, netSer}
	switch f.Protocol {
	case model.ProtocolTCP:
		tcp := &layers.TCP{SrcPort: layers.TCPPort(f.SrcPort), DstPort: layers.TCPPort(f.DstPort), SYN: true, Window: 14600}
		tcp.SetNetworkLayerForChecksum(network)
		stack = append(stack, tcp)
	case model.ProtocolUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(f.SrcPort), DstPort: layers.UDPPort(f.DstPort)}
		udp.SetNetworkLayerForChecksum(network)
		stack = append(stack, udp)
	case model.ProtocolICMP:
		if isV6 {
			icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoRequest, 0)}
			icmp.SetNetworkLayerForChecksum(network)
			stack = append(stack, icmp, &layers.ICMPv6Echo{Identifier: 1, SeqNumber: 1})
		} else {
			stack = append(stack, &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1})
		}
	}
	stack = append(stack, gopacket.Payload([]byte("netdev")))

	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ipProtocol(p model.Protocol, v6 bool) layers.IPProtocol {
	switch p {
	case model.ProtocolTCP:
		return layers.IPProtocolTCP
	case model.ProtocolUDP:
		return layers.IPProtocolUDP
	case model.ProtocolICMP:
		if v6 {
			return layers.IPProtocolICMPv6
		}
		return layers.IPProtocolICMPv4
	default:
		return experimentalProto
	}
}

// Packet builds f and decodes it into a gopacket.Packet carrying f.Time as capture time.
func Packet(f Frame) (gopacket.Packet, error) {
	data, err := Build(f)
	if err != nil {
		return nil, err
	}
	pkt := gopacket.NewPacket(data, layers.LinkTypeEthernet, gopacket.Default)
	md := pkt.Metadata()
	md.Timestamp = f.Time
	md.CaptureLength = len(data)
	md.Length = len(data)
	return pkt, nil
}

// WritePcap writes frames into a pcap file at path.
func WritePcap(path string, frames []Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("failed to write pcap header: %w", err)
	}
	for _, fr := range frames {
		data, err := Build(fr)
		if err != nil {
			return err
		}
		ci := gopacket.CaptureInfo{Timestamp: fr.Time, CaptureLength: len(data), Length: len(data)}
		if err := w.WritePacket(ci, data); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	}
	return nil
}
