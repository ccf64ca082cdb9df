package netutil

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// DefaultFallbackPorts is how many ports above the preferred one Listen tries.
const DefaultFallbackPorts = 10

// Listen binds preferred. When it is busy and fallback is set, the next
// DefaultFallbackPorts ports on the same host are tried in order.
func Listen(preferred string, fallback bool) (net.Listener, error) {
	ln, err := net.Listen("tcp", preferred)
	if err == nil {
		return ln, nil
	}
	if !fallback {
		return nil, fmt.Errorf("bind %s: %w", preferred, err)
	}
	for _, addr := range Candidates(preferred, DefaultFallbackPorts) {
		if ln, err := net.Listen("tcp", addr); err == nil {
			return ln, nil
		}
	}
	return nil, errors.New("no available bind address near " + preferred)
}

// Candidates returns the n addresses following addr's port. Port 0 and
// unparsable addresses have no candidates.
func Candidates(addr string, n int) []string {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for p := port + 1; p <= port+n && p <= 65535; p++ {
		out = append(out, net.JoinHostPort(host, strconv.Itoa(p)))
	}
	return out
}
