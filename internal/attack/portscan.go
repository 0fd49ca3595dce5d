package attack

import (
	"NetDeviation/internal/model"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// CommandRunner runs an external program and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

var openPortLine = regexp.MustCompile(`^(\d+)/tcp\s+open\b`)

// PortScan runs an nmap SYN scan over a port range.
type PortScan struct {
	name      string
	binary    string
	portRange string
	run       CommandRunner
}

// NewPortScan creates a scan of portRange ("1-1000", "22,80,443") using binary.
func NewPortScan(name, binary, portRange string, run CommandRunner) *PortScan {
	if binary == "" {
		binary = "nmap"
	}
	if run == nil {
		run = execRunner
	}
	return &PortScan{name: name, binary: binary, portRange: portRange, run: run}
}

func (p *PortScan) Name() string { return p.name }
func (p *PortScan) Type() string { return "port_scan" }

// Execute runs the scan. Magnitude is the number of ports in the range.
func (p *PortScan) Execute(ctx context.Context, target string, rec *model.AttackRecord) error {
	n, err := countPorts(p.portRange)
	if err != nil {
		return err
	}
	rec.PortsScanned = p.portRange
	rec.Magnitude = n

	out, err := p.run(ctx, p.binary, "-sS", "-p", p.portRange, "--open", target)
	if err != nil {
		return err
	}
	rec.ResponsivePorts = parseOpenPorts(out)
	return nil
}

func parseOpenPorts(out []byte) []int {
	var ports []int
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := openPortLine.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		if port, err := strconv.Atoi(m[1]); err == nil {
			ports = append(ports, port)
		}
	}
	return ports
}

// countPorts returns the number of ports named by an nmap port expression.
func countPorts(expr string) (int, error) {
	total := 0
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(lo)
		if err != nil {
			return 0, fmt.Errorf("invalid port range %q: %w", expr, err)
		}
		last := first
		if isRange {
			if last, err = strconv.Atoi(hi); err != nil {
				return 0, fmt.Errorf("invalid port range %q: %w", expr, err)
			}
		}
		if first < 1 || last > 65535 || last < first {
			return 0, fmt.Errorf("invalid port range %q", expr)
		}
		total += last - first + 1
	}
	if total == 0 {
		return 0, fmt.Errorf("empty port range")
	}
	return total, nil
}
