package utils

import (
	"net"
	"testing"

	pion "github.com/pion/webrtc/v4"
)

func TestLooksTunneled(t *testing.T) {
	t.Parallel()

	ipnet := func(s string) net.Addr {
		ip, block, err := net.ParseCIDR(s)
		if err != nil {
			t.Fatalf("ParseCIDR(%q): %v", s, err)
		}
		return &net.IPNet{IP: ip, Mask: block.Mask}
	}

	tests := []struct {
		name  string
		iface string
		addrs []net.Addr
		want  bool
	}{
		{"wireguard name", "wg0", nil, true},
		{"warp name", "CloudflareWARP", nil, true},
		{"cgnat address", "eth0", []net.Addr{ipnet("100.101.1.2/32")}, true},
		{"plain lan", "eth0", []net.Addr{ipnet("192.168.1.10/24")}, false},
		{"outside cgnat", "en0", []net.Addr{ipnet("100.128.0.1/16")}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := looksTunneled(tt.iface, tt.addrs); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTransportPolicy(t *testing.T) {
	t.Parallel()

	stunOnly := []pion.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	withTURN := append(stunOnly, pion.ICEServer{
		URLs:       []string{"turns:turn.example:5349?transport=tcp"},
		Username:   "u",
		Credential: "p",
	})

	if got := TransportPolicy(true, stunOnly); got != pion.ICETransportPolicyAll {
		t.Fatalf("expected all without TURN, got %v", got)
	}
	if got := TransportPolicy(true, withTURN); got != pion.ICETransportPolicyRelay {
		t.Fatalf("expected relay with TURN, got %v", got)
	}
	if got := TransportPolicy(false, withTURN); got != pion.ICETransportPolicyAll {
		t.Fatalf("expected all when not forced, got %v", got)
	}
}
