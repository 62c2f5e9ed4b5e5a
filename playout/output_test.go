package playout

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockOutputPullsEveryPeriod(t *testing.T) {
	t.Parallel()

	var pulls, delivered atomic.Int64
	var frames atomic.Int64
	o := NewClockOutput(5*time.Millisecond, func(out [][]float32, ok bool) {
		frames.Store(int64(len(out[0])))
		if ok {
			delivered.Add(1)
		}
	}, nil)

	require.NoError(t, o.Start(Format{SampleRate: 8000, Channels: 2}, func(out [][]float32) bool {
		pulls.Add(1)
		return len(out) == 2
	}))
	require.Eventually(t, func() bool { return delivered.Load() >= 3 }, time.Second, time.Millisecond)
	require.Equal(t, int64(40), frames.Load())

	o.Stop()
	stopped := pulls.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, stopped, pulls.Load(), "no pull after Stop returns")
	o.Stop()
}

func TestClockOutputRestart(t *testing.T) {
	t.Parallel()

	var first, second atomic.Int64
	o := NewClockOutput(2*time.Millisecond, nil, nil)
	require.NoError(t, o.Start(monoMs, func([][]float32) bool { first.Add(1); return true }))
	require.Eventually(t, func() bool { return first.Load() > 0 }, time.Second, time.Millisecond)

	require.NoError(t, o.Start(monoMs, func([][]float32) bool { second.Add(1); return true }))
	stopped := first.Load()
	require.Eventually(t, func() bool { return second.Load() > 2 }, time.Second, time.Millisecond)
	require.Equal(t, stopped, first.Load())
	o.Stop()
}

func TestClockOutputRejectsShortPeriod(t *testing.T) {
	t.Parallel()

	o := NewClockOutput(100*time.Microsecond, nil, nil)
	require.ErrorIs(t, o.Start(monoMs, func([][]float32) bool { return false }), ErrInvalidPeriod)
}

func TestPlayerWithClockOutput(t *testing.T) {
	t.Parallel()

	var delivered atomic.Int64
	o := NewClockOutput(10*time.Millisecond, func(_ [][]float32, ok bool) {
		if ok {
			delivered.Add(1)
		}
	}, nil)
	p, err := NewPlayer(o, PlayerConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, p.StreamStarted(monoMs))
	require.True(t, p.FrameAvailable(ramp(1, 50), 0))

	require.Eventually(t, func() bool { return delivered.Load() >= 1 }, time.Second, time.Millisecond)
	p.Stop()
}
