package rtc

import (
	"net"
	"strings"
)

// cgnatBlock is 100.64.0.0/10, used by Cloudflare WARP, Tailscale and
// carrier grade NATs.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

var vpnNameHints = []string{"tun", "tap", "wg", "ppp", "warp"}

// NetInterface is the part of net.Interface the relay heuristic reads.
type NetInterface struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

// ShouldForceRelay checks if the system is likely behind a restrictive VPN or CGNAT
// and returns true if we should force TURN usage.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	list := make([]NetInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, _ := iface.Addrs()
		list = append(list, NetInterface{Name: iface.Name, Flags: iface.Flags, Addrs: addrs})
	}
	return forceRelayFor(list)
}

func forceRelayFor(ifaces []NetInterface) bool {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		name := strings.ToLower(iface.Name)
		for _, hint := range vpnNameHints {
			if strings.Contains(name, hint) {
				return true
			}
		}

		for _, addr := range iface.Addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip != nil && cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}
