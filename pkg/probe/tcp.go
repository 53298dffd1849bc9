// Package probe measures node reachability for the watch dashboard. It is
// telemetry only: workflow decisions never depend on probe results.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Result captures one reachability measurement.
type Result struct {
	Reachable bool
	Latency   time.Duration
	Message   string
	CheckedAt time.Time
}

// TCPProber measures dial latency against a fixed admin port on each node.
type TCPProber struct {
	// Port is the TCP port dialed on every node.
	Port int

	// Timeout is the connection timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewTCPProber creates a prober for the given admin port.
func NewTCPProber(port int) *TCPProber {
	return &TCPProber{
		Port:    port,
		Timeout: 5 * time.Second,
	}
}

// Probe dials the node once and reports latency, or unreachable when the
// dial fails.
func (p *TCPProber) Probe(ctx context.Context, node string) Result {
	start := time.Now()

	dialer := &net.Dialer{
		Timeout: p.Timeout,
	}

	address := net.JoinHostPort(node, fmt.Sprintf("%d", p.Port))
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Result{
			Reachable: false,
			Message:   fmt.Sprintf("connection failed: %v", err),
			CheckedAt: start,
		}
	}
	defer conn.Close()

	return Result{
		Reachable: true,
		Latency:   time.Since(start),
		Message:   fmt.Sprintf("TCP connection to %s successful", address),
		CheckedAt: start,
	}
}

// WithTimeout sets the connection timeout
func (p *TCPProber) WithTimeout(timeout time.Duration) *TCPProber {
	p.Timeout = timeout
	return p
}
