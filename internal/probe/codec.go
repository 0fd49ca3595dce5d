package probe

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Frame is one captured frame as shipped from a remote probe to the engine.
type Frame struct {
	ProbeID   string
	Timestamp time.Time
	LinkType  layers.LinkType
	Length    int
	Data      []byte
}

// Encode serializes a frame to a protobuf Struct message.
func Encode(f Frame) ([]byte, error) {
	st, err := structpb.NewStruct(map[string]interface{}{
		"probe_id":  f.ProbeID,
		"timestamp": f.Timestamp.UTC().Format(time.RFC3339Nano),
		"link_type": int64(f.LinkType),
		"length":    int64(f.Length),
		"data":      base64.StdEncoding.EncodeToString(f.Data),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}

// Decode is the inverse of Encode.
func Decode(b []byte) (Frame, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return Frame{}, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	fields := st.GetFields()

	ts, err := time.Parse(time.RFC3339Nano, fields["timestamp"].GetStringValue())
	if err != nil {
		return Frame{}, fmt.Errorf("invalid frame timestamp: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(fields["data"].GetStringValue())
	if err != nil {
		return Frame{}, fmt.Errorf("invalid frame data: %w", err)
	}

	return Frame{
		ProbeID:   fields["probe_id"].GetStringValue(),
		Timestamp: ts,
		LinkType:  layers.LinkType(fields["link_type"].GetNumberValue()),
		Length:    int(fields["length"].GetNumberValue()),
		Data:      data,
	}, nil
}

// FromPacket captures the bytes and metadata of a decoded packet.
func FromPacket(probeID string, linkType layers.LinkType, p gopacket.Packet) Frame {
	md := p.Metadata()
	return Frame{
		ProbeID:   probeID,
		Timestamp: md.Timestamp,
		LinkType:  linkType,
		Length:    md.Length,
		Data:      p.Data(),
	}
}

// Packet decodes the frame back into a gopacket.Packet with its original capture info.
func (f Frame) Packet() gopacket.Packet {
	p := gopacket.NewPacket(f.Data, f.LinkType, gopacket.Default)
	md := p.Metadata()
	md.Timestamp = f.Timestamp
	md.CaptureLength = len(f.Data)
	md.Length = f.Length
	if md.Length == 0 {
		md.Length = len(f.Data)
	}
	return p
}
