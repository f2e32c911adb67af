// Package announce tells people where a running session can be reached:
// the LAN address, a terminal QR code of the URL, and a local browser tab.
// None of it touches the shared folder.
package announce

import (
	"fmt"
	"io"
	"net"
	"os/exec"
	"runtime"

	"github.com/jackpal/gateway"
	"github.com/mdp/qrterminal/v3"
)

// LocalIP returns the machine's LAN-facing IPv4 address.
// It prefers the interface that routes to the default gateway, then falls
// back to a UDP dial, then to interface enumeration, then to 127.0.0.1.
func LocalIP() string {
	if ip, err := gateway.DiscoverInterface(); err == nil && usable(ip) {
		return ip.String()
	}

	if conn, err := net.Dial("udp", "8.8.8.8:80"); err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && usable(addr.IP) {
			return addr.IP.String()
		}
	}

	addrs, _ := net.InterfaceAddrs()
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && usable(ipnet.IP) {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}

func usable(ip net.IP) bool {
	if ip == nil || ip.To4() == nil {
		return false
	}
	return !ip.IsLoopback() && !ip.IsLinkLocalUnicast() && !ip.IsUnspecified()
}

// SessionURL builds the URL other devices should open for a listener bound
// to listenAddr. Unspecified hosts (0.0.0.0, ::, "") are replaced by lanIP.
func SessionURL(listenAddr, lanIP string) (string, error) {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "", fmt.Errorf("bad listen addr %q: %w", listenAddr, err)
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = lanIP
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

// LocalURL is the URL for a browser on this machine: the bound host, or
// loopback when the listener is on all interfaces.
func LocalURL(listenAddr string) (string, error) {
	return SessionURL(listenAddr, "127.0.0.1")
}

// PrintQR renders url as a half-block QR code.
func PrintQR(w io.Writer, url string) {
	qrterminal.GenerateWithConfig(url, qrterminal.Config{
		Level:          qrterminal.M,
		Writer:         w,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
		QuietZone:      1,
	})
}

// OpenBrowser starts the platform URL opener and does not wait for it.
func OpenBrowser(url string) error {
	name, args := browserCommand(runtime.GOOS, url)
	return exec.Command(name, args...).Start()
}

func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}
