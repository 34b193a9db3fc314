package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)

	time.Sleep(20 * time.Millisecond)
	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, timer.Duration(), first, "duration keeps growing")
}

func TestTimerObserveDuration(t *testing.T) {
	timer := NewTimer()
	timer.ObserveDuration(BenchmarkDuration)

	out := writeAndRead(t)
	assert.Contains(t, out, "hostsaccel_benchmark_duration_seconds_count")
}

func TestTimerObserveDurationVec(t *testing.T) {
	NewTimer().ObserveDurationVec(SourceFetchDuration, "gitee")

	out := writeAndRead(t)
	assert.Contains(t, out, `hostsaccel_source_fetch_duration_seconds_count{source="gitee"} 1`)
}
