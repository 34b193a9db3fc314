package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedAddress returns a loopback address nothing is listening on
func closedAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestTCPChecker_Open(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	result := NewTCPChecker(listener.Addr().String()).Check(context.Background())
	assert.True(t, result.Healthy, result.Message)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestTCPChecker_Closed(t *testing.T) {
	result := NewTCPChecker(closedAddress(t)).WithTimeout(time.Second).Check(context.Background())

	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "connection failed")
}

func TestTCPChecker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewTCPChecker("127.0.0.1:443").Check(ctx)
	assert.False(t, result.Healthy)
}

func TestTCPChecker_Type(t *testing.T) {
	assert.Equal(t, CheckTypeTCP, NewTCPChecker("127.0.0.1:443").Type())
}
