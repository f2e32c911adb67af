package announce

import (
	"bytes"
	"net"
	"strings"
	"testing"
)

func TestLocalIP(t *testing.T) {
	ip := LocalIP()

	if ip == "" {
		t.Error("expected non-empty IP address")
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		t.Fatalf("expected valid IP address, got %q", ip)
	}
	if parsed.To4() == nil {
		t.Errorf("expected IPv4 address, got %q", ip)
	}
}

func TestSessionURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"0.0.0.0:8000", "http://192.168.1.20:8000"},
		{":8000", "http://192.168.1.20:8000"},
		{"[::]:8000", "http://192.168.1.20:8000"},
		{"10.0.0.5:9000", "http://10.0.0.5:9000"},
		{"[fe80::1]:8000", "http://[fe80::1]:8000"},
	}
	for _, tt := range tests {
		got, err := SessionURL(tt.addr, "192.168.1.20")
		if err != nil {
			t.Errorf("SessionURL(%q): %v", tt.addr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SessionURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
	if _, err := SessionURL("8000", "192.168.1.20"); err == nil {
		t.Error("expected error for missing port separator")
	}
}

func TestLocalURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"0.0.0.0:8000", "http://127.0.0.1:8000"},
		{":8000", "http://127.0.0.1:8000"},
		{"[::]:8000", "http://127.0.0.1:8000"},
		{"192.168.1.5:8000", "http://192.168.1.5:8000"},
		{"[fe80::1]:9000", "http://[fe80::1]:9000"},
	}
	for _, tt := range tests {
		got, err := LocalURL(tt.addr)
		if err != nil {
			t.Errorf("%s: %v", tt.addr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.addr, tt.want, got)
		}
	}
}

func TestPrintQR(t *testing.T) {
	var buf bytes.Buffer
	PrintQR(&buf, "http://192.168.1.20:8000")
	out := buf.String()
	if len(out) == 0 {
		t.Fatal("expected QR output")
	}
	if lines := strings.Count(out, "\n"); lines < 10 {
		t.Errorf("expected a multi-line QR code, got %d lines", lines)
	}
}

func TestBrowserCommand(t *testing.T) {
	name, args := browserCommand("linux", "http://x")
	if name != "xdg-open" || len(args) != 1 {
		t.Errorf("linux: unexpected %s %v", name, args)
	}
	name, _ = browserCommand("darwin", "http://x")
	if name != "open" {
		t.Errorf("darwin: unexpected %s", name)
	}
	name, args = browserCommand("windows", "http://x/?a=1&b=2")
	if name != "rundll32" || args[len(args)-1] != "http://x/?a=1&b=2" {
		t.Errorf("windows: unexpected %s %v", name, args)
	}
}
