package model

import (
	"context"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// PacketSource yields a stream of raw packets.
type PacketSource interface {
	// Open starts the source. The returned channel is closed when the source
	// is exhausted, fails, or is closed.
	Open(ctx context.Context) (<-chan gopacket.Packet, error)
	// Err reports why the channel closed early, or nil on normal exhaustion.
	Err() error
	// LinkType is the link layer of the packets, used for archiving.
	LinkType() layers.LinkType
	Close() error
}

// OutboundPacket holds the header fields of a single crafted packet.
type OutboundPacket struct {
	Protocol Protocol
	Dst      net.IP
	SrcPort  uint16
	DstPort  uint16
	SYN      bool
	Payload  []byte
}

// PacketSink sends one crafted packet onto the network. Fire-and-forget.
type PacketSink interface {
	Send(pkt OutboundPacket) error
	Close() error
}
