package helio

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeriodicCadence(t *testing.T) {
	p := newTestProactor(t)
	join := startLoop(t, p, NopScheduler{})

	var ticks atomic.Int32
	item := &PeriodicItem{
		Task:   func() { ticks.Add(1) },
		Period: 10 * time.Millisecond,
	}

	opErr := make(chan error, 1)
	p.Dispatch(func() { opErr <- p.SchedulePeriodic(1, item) })
	require.NoError(t, <-opErr)

	time.Sleep(200 * time.Millisecond)

	p.Dispatch(func() { opErr <- p.CancelPeriodic(item) })
	require.NoError(t, <-opErr)

	// A 10ms period over ~200ms lands near 20 ticks, within two either way.
	got := ticks.Load()
	require.GreaterOrEqual(t, got, int32(18))
	require.LessOrEqual(t, got, int32(22))

	// After cancel no further expiration may be delivered.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, got, ticks.Load())

	p.Stop()
	join()
}

func TestPeriodicCancelReleasesSlot(t *testing.T) {
	p := newTestProactor(t)
	armedBaseline := p.armedEntries()

	join := startLoop(t, p, NopScheduler{})

	item := &PeriodicItem{
		Task:   func() {},
		Period: 5 * time.Millisecond,
	}
	opErr := make(chan error, 1)
	p.Dispatch(func() { opErr <- p.SchedulePeriodic(2, item) })
	require.NoError(t, <-opErr)

	time.Sleep(20 * time.Millisecond)

	p.Dispatch(func() { opErr <- p.CancelPeriodic(item) })
	require.NoError(t, <-opErr)

	p.Stop()
	join()

	require.Equal(t, armedBaseline, p.armedEntries(),
		"cancelled periodic timer left its slot armed")
}

func TestTwoPeriodicTimersIndependent(t *testing.T) {
	p := newTestProactor(t)
	join := startLoop(t, p, NopScheduler{})

	var fast, slow atomic.Int32
	fastItem := &PeriodicItem{Task: func() { fast.Add(1) }, Period: 5 * time.Millisecond}
	slowItem := &PeriodicItem{Task: func() { slow.Add(1) }, Period: 25 * time.Millisecond}

	opErr := make(chan error, 2)
	p.Dispatch(func() {
		opErr <- p.SchedulePeriodic(10, fastItem)
		opErr <- p.SchedulePeriodic(11, slowItem)
	})
	require.NoError(t, <-opErr)
	require.NoError(t, <-opErr)

	time.Sleep(150 * time.Millisecond)

	p.Dispatch(func() {
		opErr <- p.CancelPeriodic(fastItem)
		opErr <- p.CancelPeriodic(slowItem)
	})
	require.NoError(t, <-opErr)
	require.NoError(t, <-opErr)

	require.Greater(t, fast.Load(), slow.Load(),
		"the 5ms timer must outpace the 25ms timer")
	require.Greater(t, slow.Load(), int32(0))

	p.Stop()
	join()
}
