package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_TicksOncePerInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock)
	defer timer.Stop()

	var ticks atomic.Int64
	run := timer.Start(func(uint64) { ticks.Add(1) })
	assert.Equal(t, uint64(1), run)
	assert.True(t, timer.Running())

	for i := int64(1); i <= 3; i++ {
		clock.Advance(TickInterval)
		require.Eventually(t, func() bool { return ticks.Load() == i }, waitFor, poll)
	}

	clock.Advance(TickInterval / 2)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(3), ticks.Load())
}

func TestTimer_StartWhileRunningIsNoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock)
	defer timer.Stop()

	var ticks atomic.Int64
	first := timer.Start(func(uint64) { ticks.Add(1) })
	second := timer.Start(func(uint64) { ticks.Add(100) })
	assert.Equal(t, first, second)

	clock.Advance(TickInterval)
	require.Eventually(t, func() bool { return ticks.Load() == 1 }, waitFor, poll)
}

func TestTimer_StopEndsTicks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock)

	var ticks atomic.Int64
	timer.Start(func(uint64) { ticks.Add(1) })
	clock.Advance(TickInterval)
	require.Eventually(t, func() bool { return ticks.Load() == 1 }, waitFor, poll)

	timer.Stop()
	timer.Stop()
	assert.False(t, timer.Running())

	for range 3 {
		clock.Advance(TickInterval)
	}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(1), ticks.Load())
}

func TestTimer_RestartUsesNewRunID(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock)
	defer timer.Stop()

	var last atomic.Uint64
	first := timer.Start(func(run uint64) { last.Store(run) })
	timer.Stop()
	second := timer.Start(func(run uint64) { last.Store(run) })
	assert.Greater(t, second, first)

	clock.Advance(TickInterval)
	require.Eventually(t, func() bool { return last.Load() == second }, waitFor, poll)
}

func TestTimer_StopInsideCallback(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock)

	var ticks atomic.Int64
	timer.Start(func(uint64) {
		ticks.Add(1)
		timer.Stop()
	})
	clock.Advance(TickInterval)
	require.Eventually(t, func() bool { return !timer.Running() }, waitFor, poll)

	clock.Advance(TickInterval)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(1), ticks.Load())
}
