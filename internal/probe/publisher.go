package probe

import (
	"NetDeviation/internal/config"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher is responsible for publishing captured frames to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
	probeID string
	logger  log.FieldLogger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig, probeID string, logger log.FieldLogger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("nd-probe "+probeID))
	if err != nil {
		return nil, err
	}
	logger.WithField("url", cfg.NATSURL).Info("Connected to NATS server")
	return &Publisher{nc: nc, subject: cfg.Subject, probeID: probeID, logger: logger}, nil
}

// Publish serializes a frame to protobuf and publishes it to the configured NATS subject.
func (p *Publisher) Publish(f Frame) error {
	if f.ProbeID == "" {
		f.ProbeID = p.probeID
	}
	data, err := Encode(f)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.logger.WithError(err).Warn("NATS drain failed")
			return
		}
		p.logger.Info("NATS connection drained and closed.")
	}
}
