package capture

import (
	"NetDeviation/internal/metrics"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
)

// TimestampFormat names every run artifact.
const TimestampFormat = "20060102_150405"

const defaultArchiveBuffer = 10000

// Archive writes the raw qualifying packets of a run to a pcap file.
// A single worker goroutine keeps the file in arrival order.
type Archive struct {
	path    string
	file    *os.File
	writer  *pcapgo.Writer
	packets chan gopacket.Packet
	wg      sync.WaitGroup
	logger  log.FieldLogger
	metrics *metrics.Metrics
	written uint64
}

// NewArchive creates <dir>/<kind>_<timestamp>.pcap and starts the writer.
func NewArchive(dir, kind string, linkType layers.LinkType, snapLen uint32, bufferSize int,
	logger log.FieldLogger, m *metrics.Metrics) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	if bufferSize <= 0 {
		bufferSize = defaultArchiveBuffer
	}
	if snapLen == 0 {
		snapLen = 65536
	}

	fileName := fmt.Sprintf("%s_%s.pcap", kind, time.Now().Format(TimestampFormat))
	path := filepath.Join(dir, fileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(snapLen, linkType); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write pcap file header: %w", err)
	}

	a := &Archive{
		path:    path,
		file:    file,
		writer:  writer,
		packets: make(chan gopacket.Packet, bufferSize),
		logger:  logger.WithField("archive", path),
		metrics: m,
	}
	a.wg.Add(1)
	go a.run()
	return a, nil
}

func (a *Archive) run() {
	defer a.wg.Done()
	for p := range a.packets {
		if err := a.writer.WritePacket(p.Metadata().CaptureInfo, p.Data()); err != nil {
			a.logger.WithError(err).Warn("Error writing packet to archive")
			continue
		}
		a.written++
	}
}

// Enqueue hands a packet to the writer. It never blocks the capture loop.
func (a *Archive) Enqueue(p gopacket.Packet) {
	select {
	case a.packets <- p:
	default:
		a.metrics.ArchiveDropped()
		a.logger.Debug("Archive channel is full, dropping packet.")
	}
}

// Close flushes pending packets and closes the file.
func (a *Archive) Close() error {
	close(a.packets)
	a.wg.Wait()
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	a.logger.WithField("packets", a.written).Info("Archive closed")
	return nil
}

// Path returns the pcap file location.
func (a *Archive) Path() string {
	return a.path
}
