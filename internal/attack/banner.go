package attack

import (
	"NetDeviation/internal/model"
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DialFunc opens a TCP connection. Tests replace it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// BannerGrab probes a fixed list of ports and records which ones answer within
// the timeout. A refused connection is an answer (the target sent a RST); ports
// that accept the connection are also listed as connected, with the first line
// each one sends.
type BannerGrab struct {
	name    string
	ports   []int
	timeout time.Duration
	dial    DialFunc
}

// NewBannerGrab creates the probe. A nil dial uses net.Dialer.
func NewBannerGrab(name string, ports []int, timeout time.Duration, dial DialFunc) *BannerGrab {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	return &BannerGrab{name: name, ports: ports, timeout: timeout, dial: dial}
}

func (b *BannerGrab) Name() string { return b.name }
func (b *BannerGrab) Type() string { return "banner_grab" }

// Execute probes every port. Closed ports are not an error; only a cancelled
// context ends the sweep early.
func (b *BannerGrab) Execute(ctx context.Context, target string, rec *model.AttackRecord) error {
	rec.PortsProbed = append([]int(nil), b.ports...)
	rec.ResponsivePorts = []int{}
	rec.ConnectedPorts = []int{}
	rec.Magnitude = len(b.ports)

	for _, port := range b.ports {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := b.probe(ctx, target, port)
		if res.answered {
			rec.ResponsivePorts = append(rec.ResponsivePorts, port)
		}
		if !res.connected {
			continue
		}
		rec.ConnectedPorts = append(rec.ConnectedPorts, port)
		if res.banner != "" {
			if rec.Banners == nil {
				rec.Banners = make(map[int]string)
			}
			rec.Banners[port] = res.banner
		}
	}
	return nil
}

type probeResult struct {
	answered  bool
	connected bool
	banner    string
}

func (b *BannerGrab) probe(ctx context.Context, target string, port int) probeResult {
	dctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	conn, err := b.dial(dctx, "tcp", net.JoinHostPort(target, strconv.Itoa(port)))
	if err != nil {
		return probeResult{answered: errors.Is(err, syscall.ECONNREFUSED)}
	}
	defer conn.Close()

	// Many services stay silent until the client speaks; a connected port
	// without a banner is still connected.
	_ = conn.SetReadDeadline(time.Now().Add(b.timeout))
	line, _ := bufio.NewReader(conn).ReadString('\n')
	return probeResult{answered: true, connected: true, banner: strings.TrimSpace(line)}
}
