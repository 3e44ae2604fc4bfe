package util

import (
	"net"
	"testing"
)

func TestFormatAddr(t *testing.T) {
	if got := FormatAddr("1.2.3.4", 22); got != "1.2.3.4:22" {
		t.Errorf("got %q, want %q", got, "1.2.3.4:22")
	}
	if got := FormatAddr("", 8080); got != ":8080" {
		t.Errorf("got %q, want %q", got, ":8080")
	}
}

func TestPeerIP(t *testing.T) {
	tests := []struct {
		name string
		addr net.Addr
		want string
	}{
		{"nil", nil, ""},
		{"tcp v4", &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 51234}, "10.0.0.7"},
		{"tcp v6", &net.TCPAddr{IP: net.ParseIP("::1"), Port: 80}, "::1"},
		{"udp", &net.UDPAddr{IP: net.ParseIP("192.168.0.2"), Port: 53}, "192.168.0.2"},
		{"unix", &net.UnixAddr{Name: "/tmp/sock", Net: "unix"}, "/tmp/sock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeerIP(tt.addr); got != tt.want {
				t.Errorf("PeerIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	if port < 1 || port > 65535 {
		t.Errorf("port %d out of range", port)
	}
}
