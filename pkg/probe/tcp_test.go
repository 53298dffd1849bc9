package probe

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_ReachableListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	p := NewTCPProber(port)
	result := p.Probe(context.Background(), "127.0.0.1")

	assert.True(t, result.Reachable)
	assert.Greater(t, result.Latency, time.Duration(0))
}

func TestProbe_UnreachablePort(t *testing.T) {
	// Grab a free port, then close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	p := NewTCPProber(port).WithTimeout(500 * time.Millisecond)
	result := p.Probe(context.Background(), "127.0.0.1")

	assert.False(t, result.Reachable)
	assert.Contains(t, result.Message, "connection failed")
}
