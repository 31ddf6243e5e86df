package utils

import (
	"net"
	"strings"

	pion "github.com/pion/webrtc/v4"
)

// Carrier-grade NAT range. Cloudflare WARP and Tailscale also live here.
var cgnatBlock = mustCIDR("100.64.0.0/10")

var tunnelNameHints = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

// ShouldForceRelay reports whether this host is likely behind a VPN tunnel
// or CGNAT, where direct candidates rarely connect.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if looksTunneled(iface.Name, addrs) {
			return true
		}
	}
	return false
}

func looksTunneled(name string, addrs []net.Addr) bool {
	name = strings.ToLower(name)
	for _, hint := range tunnelNameHints {
		if strings.Contains(name, hint) {
			return true
		}
	}

	for _, addr := range addrs {
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
	return false
}

// HasRelayServer reports whether any server in the list is a TURN server.
func HasRelayServer(servers []pion.ICEServer) bool {
	for _, s := range servers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				return true
			}
		}
	}
	return false
}

// TransportPolicy picks relay-only ICE when forced and a TURN server exists.
func TransportPolicy(force bool, servers []pion.ICEServer) pion.ICETransportPolicy {
	if force && HasRelayServer(servers) {
		return pion.ICETransportPolicyRelay
	}
	return pion.ICETransportPolicyAll
}

func mustCIDR(s string) *net.IPNet {
	_, block, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return block
}
