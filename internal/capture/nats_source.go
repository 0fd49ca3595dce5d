package capture

import (
	"NetDeviation/internal/config"
	"NetDeviation/internal/probe"
	"context"
	"errors"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

var errNATSClosed = errors.New("nats connection closed")

// NATSSource merges the frames published by any number of remote probes into
// one packet stream. The subscription callback is the only producer and runs
// serially, so the channel is a single-consumer queue in arrival order.
type NATSSource struct {
	url      string
	subject  string
	buffer   int
	logger   log.FieldLogger
	linkType layers.LinkType

	nc   *nats.Conn
	sub  *nats.Subscription
	out  chan gopacket.Packet
	done chan struct{}

	closeOnce sync.Once
	sendMu    sync.RWMutex
	outClosed bool

	mu  sync.Mutex
	err error
}

// NewNATSSource creates a source subscribed to the probe subject.
func NewNATSSource(cfg config.ProbeConfig, buffer int, logger log.FieldLogger) *NATSSource {
	if buffer <= 0 {
		buffer = 10000
	}
	return &NATSSource{
		url:      cfg.NATSURL,
		subject:  cfg.Subject,
		buffer:   buffer,
		logger:   logger,
		linkType: layers.LinkTypeEthernet,
		done:     make(chan struct{}),
	}
}

// Open connects to NATS and subscribes to the probe subject.
func (s *NATSSource) Open(ctx context.Context) (<-chan gopacket.Packet, error) {
	nc, err := nats.Connect(s.url, nats.ClosedHandler(func(*nats.Conn) {
		s.fail(errNATSClosed)
	}))
	if err != nil {
		return nil, err
	}
	s.nc = nc
	s.out = make(chan gopacket.Packet, s.buffer)

	s.sub, err = nc.Subscribe(s.subject, s.handleFrame)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.logger.WithFields(log.Fields{"url": s.url, "subject": s.subject}).Info("Subscribed to probe frames")

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s.out, nil
}

// handleFrame decodes the message and passes the packet to the consumer.
func (s *NATSSource) handleFrame(msg *nats.Msg) {
	frame, err := probe.Decode(msg.Data)
	if err != nil {
		s.logger.WithError(err).Warn("Dropping undecodable probe frame")
		return
	}
	s.mu.Lock()
	s.linkType = frame.LinkType
	s.mu.Unlock()

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.outClosed {
		return
	}
	select {
	case s.out <- frame.Packet():
	case <-s.done:
	}
}

func (s *NATSSource) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		select {
		case <-s.done:
			// Closed on purpose, not a failure.
		default:
			s.err = err
		}
	}
	s.mu.Unlock()
	s.Close()
}

func (s *NATSSource) closeOut() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.out != nil && !s.outClosed {
		close(s.out)
	}
	s.outClosed = true
}

// Err reports a connection loss that ended the stream.
func (s *NATSSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// LinkType returns the link layer of the most recent frame.
func (s *NATSSource) LinkType() layers.LinkType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkType
}

// Close unsubscribes and closes the NATS connection.
func (s *NATSSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.sub != nil {
			if err := s.sub.Unsubscribe(); err != nil {
				s.logger.WithError(err).Debug("Unsubscribe failed")
			}
		}
		if s.nc != nil {
			s.nc.Close()
		}
		s.closeOut()
	})
	return nil
}
