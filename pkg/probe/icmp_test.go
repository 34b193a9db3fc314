package probe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPingStats_Loss(t *testing.T) {
	tests := []struct {
		name  string
		stats PingStats
		want  float64
	}{
		{"nothing sent", PingStats{}, 1.0},
		{"all lost", PingStats{Sent: 3}, 1.0},
		{"one of three", PingStats{Sent: 3, Received: 2}, 1.0 / 3.0},
		{"none lost", PingStats{Sent: 4, Received: 4}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.stats.Loss(), 1e-9)
		})
	}
}

func TestPingStats_AvgRTT(t *testing.T) {
	_, ok := PingStats{Sent: 3}.AvgRTT()
	assert.False(t, ok)

	avg, ok := PingStats{
		Sent:     3,
		Received: 2,
		RTTs:     []time.Duration{10 * time.Millisecond, 30 * time.Millisecond},
	}.AvgRTT()
	assert.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, avg)
}

func TestICMPPinger_InvalidAddress(t *testing.T) {
	stats := NewICMPPinger().Ping(context.Background(), "not-an-ip")

	assert.Equal(t, 3, stats.Sent)
	assert.Zero(t, stats.Received)
	assert.Equal(t, 1.0, stats.Loss())
}

func TestICMPPinger_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := (&ICMPPinger{Count: 2, Timeout: 100 * time.Millisecond}).Ping(ctx, "127.0.0.1")

	assert.Equal(t, 2, stats.Sent)
	assert.Zero(t, stats.Received)
}
