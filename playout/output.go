package playout

import (
	"errors"
	"sync"
	"time"

	"github.com/ugparu/mmstream/utils/lifecycle"
	"github.com/ugparu/mmstream/utils/logger"
)

// PullFunc fills out with one period of deinterleaved audio and reports
// whether real samples were produced.
type PullFunc func(out [][]float32) bool

// Output is a real-time audio sink that requests audio by calling pull.
// Stop must not return while a pull call is still running, so a stopped
// output never touches the engine it was started with again.
type Output interface {
	Start(format Format, pull PullFunc) error
	Stop()
}

// SinkFunc observes every period rendered by a ClockOutput.
type SinkFunc func(out [][]float32, delivered bool)

var ErrInvalidPeriod = errors.New("playout: output period is shorter than one frame")

// ClockOutput is a headless Output that pulls one period of audio on every
// tick of a wall clock.
type ClockOutput struct {
	period time.Duration
	sink   SinkFunc
	log    *logger.Logger

	mu      sync.Mutex
	manager lifecycle.AsyncManager[*clock]
}

func NewClockOutput(period time.Duration, sink SinkFunc, log *logger.Logger) *ClockOutput {
	return &ClockOutput{period: period, sink: sink, log: log}
}

func (o *ClockOutput) Start(format Format, pull PullFunc) error {
	if err := format.Validate(); err != nil {
		return err
	}
	frames := format.Frames(o.period)
	if frames <= 0 {
		return ErrInvalidPeriod
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.manager != nil {
		o.manager.Close()
	}

	c := &clock{
		format: format,
		period: o.period,
		pull:   pull,
		sink:   o.sink,
		out:    make([][]float32, format.Channels),
	}
	for i := range c.out {
		c.out[i] = make([]float32, frames)
	}
	o.manager = lifecycle.NewAsyncManager(c, o.log)
	return o.manager.Start(func(c *clock) error {
		c.ticker = time.NewTicker(c.period)
		return nil
	})
}

func (o *ClockOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.manager != nil {
		o.manager.Close()
		o.manager = nil
	}
}

type clock struct {
	format Format
	period time.Duration
	ticker *time.Ticker
	pull   PullFunc
	sink   SinkFunc
	out    [][]float32
}

func (c *clock) Step(stopCh <-chan struct{}) error {
	select {
	case <-stopCh:
		return &lifecycle.BreakError{}
	case <-c.ticker.C:
	}
	delivered := c.pull(c.out)
	if c.sink != nil {
		c.sink(c.out, delivered)
	}
	return nil
}

//nolint:revive // lifecycle hook
func (c *clock) Close_() {
	if c.ticker != nil {
		c.ticker.Stop()
	}
}

func (c *clock) String() string {
	return "AUDIO_CLOCK " + c.format.String()
}
