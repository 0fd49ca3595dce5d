package capture

import (
	"NetDeviation/pkg/pcap"
	"errors"
	"fmt"

	"github.com/vishvananda/netlink"
)

var errNoInterface = errors.New("no capture interface found")

// DefaultInterface returns the interface carrying the IPv4 default route.
// When routes cannot be listed it falls back to the first libpcap device with
// an address.
func DefaultInterface() (string, error) {
	if name, err := defaultRouteInterface(); err == nil {
		return name, nil
	}
	devs, err := pcap.Devices()
	if err != nil {
		return "", fmt.Errorf("failed to list capture devices: %w", err)
	}
	for _, d := range devs {
		if d != "lo" && d != "any" {
			return d, nil
		}
	}
	return "", errNoInterface
}

func defaultRouteInterface() (string, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", err
	}
	for _, r := range routes {
		if r.Dst != nil {
			if ones, _ := r.Dst.Mask.Size(); ones != 0 {
				continue
			}
		}
		link, err := netlink.LinkByIndex(r.LinkIndex)
		if err != nil {
			continue
		}
		return link.Attrs().Name, nil
	}
	return "", errNoInterface
}
