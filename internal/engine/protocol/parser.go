package protocol

import (
	"NetDeviation/internal/model"
	"errors"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrSkip marks a packet without an IP network layer. Such packets are
// filtered out of every statistic; it is not a failure.
var ErrSkip = errors.New("packet has no IP network layer")

// Classify extracts protocol class, destination port and endpoints from a decoded packet.
func Classify(packet gopacket.Packet) (*model.ClassifiedPacket, error) {
	info := &model.ClassifiedPacket{
		Timestamp: time.Now(), // Default to now, overwritten by capture metadata if available
		Length:    len(packet.Data()),
	}

	if meta := packet.Metadata(); meta != nil {
		if !meta.Timestamp.IsZero() {
			info.Timestamp = meta.Timestamp
		}
		if meta.Length > 0 {
			info.Length = meta.Length
		}
	}

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		info.Src = ip.SrcIP.String()
		info.Dst = ip.DstIP.String()
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		info.Src = ip.SrcIP.String()
		info.Dst = ip.DstIP.String()
	} else {
		return nil, ErrSkip
	}

	// TCP first, then UDP, then ICMP; anything else is still an IP packet.
	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		info.Protocol = model.ProtocolTCP
		info.DstPort = uint16(tcp.DstPort)
		info.HasPort = true
	} else if packet.Layer(layers.LayerTypeUDP) != nil {
		info.Protocol = model.ProtocolUDP
	} else if packet.Layer(layers.LayerTypeICMPv4) != nil || packet.Layer(layers.LayerTypeICMPv6) != nil {
		info.Protocol = model.ProtocolICMP
	} else {
		info.Protocol = model.ProtocolOther
	}

	return info, nil
}

// ParseFrame decodes raw frame bytes of the given link type and classifies them.
func ParseFrame(data []byte, linkType layers.LinkType) (*model.ClassifiedPacket, error) {
	packet := gopacket.NewPacket(data, linkType, gopacket.Default)
	return Classify(packet)
}
