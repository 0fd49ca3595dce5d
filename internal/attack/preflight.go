package attack

import (
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// CheckPingFunc sends one ICMP echo to ip and returns the round trip time.
// Tests replace it.
var CheckPingFunc = func(ip string) (time.Duration, error) {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return 0, fmt.Errorf("failed to create pinger: %w", err)
	}

	pinger.Count = 1
	pinger.Timeout = 1 * time.Second
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err != nil {
		return 0, err
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("no echo reply from %s", ip)
	}
	return stats.AvgRtt, nil
}
