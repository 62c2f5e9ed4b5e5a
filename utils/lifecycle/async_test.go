package lifecycle

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type counter struct {
	steps  atomic.Int64
	closed atomic.Int64
	fail   error
	panics bool
}

func (c *counter) Close_() { c.closed.Add(1) }

func (*counter) String() string { return "COUNTER" }

func (c *counter) Step(stopCh <-chan struct{}) error {
	c.steps.Add(1)
	select {
	case <-stopCh:
		return &BreakError{}
	case <-time.After(time.Millisecond):
	}
	if c.panics {
		panic("boom")
	}
	return c.fail
}

func TestAsyncStartAndClose(t *testing.T) {
	t.Parallel()

	inst := &counter{}
	manager := NewAsyncManager(inst, nil)
	require.NoError(t, manager.Start(func(*counter) error { return nil }))

	err := manager.Start(func(*counter) error { return nil })
	var already *StartedAlreadyError
	require.ErrorAs(t, err, &already)

	require.Eventually(t, func() bool { return inst.steps.Load() > 2 }, time.Second, time.Millisecond)
	manager.Close()
	manager.Close()
	require.Equal(t, int64(1), inst.closed.Load())
	require.NoError(t, manager.Err())

	err = manager.Start(func(*counter) error { return nil })
	var afterClose *StartedAfterCloseError
	require.ErrorAs(t, err, &afterClose)
}

func TestAsyncStartError(t *testing.T) {
	t.Parallel()

	startErr := errors.New("start")
	manager := NewAsyncManager(&counter{}, nil)
	require.ErrorIs(t, manager.Start(func(*counter) error { return startErr }), startErr)
	select {
	case <-manager.Done():
	default:
		t.FailNow()
	}
	require.ErrorIs(t, manager.Err(), startErr)
}

func TestAsyncStepErrorStopsLoop(t *testing.T) {
	t.Parallel()

	stepErr := errors.New("step")
	inst := &counter{fail: stepErr}
	manager := NewAsyncManager(inst, nil)
	require.NoError(t, manager.Start(func(*counter) error { return nil }))

	select {
	case <-manager.Done():
	case <-time.After(time.Second):
		t.FailNow()
	}
	require.Equal(t, int64(1), inst.steps.Load())
	require.ErrorIs(t, manager.Err(), stepErr)
	require.Zero(t, inst.closed.Load())
	manager.Close()
	require.Equal(t, int64(1), inst.closed.Load())
}

func TestAsyncPanicStopsLoop(t *testing.T) {
	t.Parallel()

	manager := NewAsyncManager(&counter{panics: true}, nil)
	require.NoError(t, manager.Start(func(*counter) error { return nil }))
	<-manager.Done()
	require.Error(t, manager.Err())
	manager.Close()
}

func TestFailSafeSurvivesErrors(t *testing.T) {
	t.Parallel()

	for _, inst := range []*counter{{fail: errors.New("step")}, {panics: true}} {
		manager := NewFailSafeAsyncManager(inst, nil)
		require.NoError(t, manager.Start(func(*counter) error { return nil }))
		require.Eventually(t, func() bool { return inst.steps.Load() > 3 }, time.Second, time.Millisecond)

		select {
		case <-manager.Done():
			t.FailNow()
		default:
		}
		manager.Close()
		require.NoError(t, manager.Err())
		require.Equal(t, int64(1), inst.closed.Load())
	}
}

func TestCloseWithoutStart(t *testing.T) {
	t.Parallel()

	inst := &counter{}
	manager := NewAsyncManager(inst, nil)
	manager.Close()
	require.Zero(t, inst.steps.Load())
	require.Equal(t, int64(1), inst.closed.Load())
}
