package rtp

import (
	"errors"
	"io"
	"time"

	"github.com/ugparu/mmstream/utils/lifecycle"
	"github.com/ugparu/mmstream/utils/logger"
)

var errFeederStopped = errors.New("rtp: feeder stopped")

// Feeder replays an interleaved RTP capture into a Receiver on its own
// goroutine. With pacing enabled packets are released at the rate their RTP
// timestamps dictate; otherwise as fast as the sink accepts them.
// The source is copied through a pipe so that a read blocked on it, such as
// one on stdin, is abandoned as soon as the feeder stops.
type Feeder struct {
	lifecycle.AsyncManager[*Feeder]
	src    io.Reader
	pr     *io.PipeReader
	pw     *io.PipeWriter
	ir     *InterleavedReader
	recv   *Receiver
	done   <-chan struct{}
	pace   bool
	start  time.Time
	clocks map[uint8]*tsUnwrapper
	log    *logger.Logger
}

// NewFeeder creates a feeder reading from r. The feeder stops at the end of
// input or once done is closed. r is closed with the feeder if it is an io.Closer.
func NewFeeder(r io.Reader, recv *Receiver, done <-chan struct{}, pace bool, log *logger.Logger) *Feeder {
	pr, pw := io.Pipe()
	f := &Feeder{
		src:    r,
		pr:     pr,
		pw:     pw,
		ir:     NewInterleavedReader(pr),
		recv:   recv,
		done:   done,
		pace:   pace,
		clocks: make(map[uint8]*tsUnwrapper),
		log:    log,
	}
	f.AsyncManager = lifecycle.NewFailSafeAsyncManager(f, log)
	return f
}

// Feed starts the replay.
func (f *Feeder) Feed() error {
	return f.Start(func(f *Feeder) error {
		f.start = time.Now()
		go f.copy()
		go f.watch()
		f.log.Info(f, "Replay started")
		return nil
	})
}

// Close interrupts a pending read and stops the replay.
func (f *Feeder) Close() {
	f.pr.CloseWithError(errFeederStopped)
	f.AsyncManager.Close()
}

func (f *Feeder) copy() {
	_, err := io.Copy(f.pw, f.src)
	f.pw.CloseWithError(err)
}

func (f *Feeder) watch() {
	select {
	case <-f.done:
		f.log.Debug(f, "Stop requested, interrupting capture read")
		f.pr.CloseWithError(errFeederStopped)
	case <-f.Done():
	}
}

func (f *Feeder) Step(stopCh <-chan struct{}) error {
	select {
	case <-stopCh:
		return &lifecycle.BreakError{}
	case <-f.done:
		return &lifecycle.BreakError{}
	default:
	}

	channel, pkt, err := f.ir.ReadPacket()
	switch {
	case errors.Is(err, io.EOF):
		f.log.Infof(f, "Replay finished, %d bytes skipped", f.ir.Skipped())
		return &lifecycle.BreakError{}
	case errors.Is(err, errFeederStopped):
		return &lifecycle.BreakError{}
	case errors.Is(err, ErrInvalidFrame):
		return err
	case err != nil:
		f.log.Errorf(f, "Reading capture failed: %v", err)
		return &lifecycle.BreakError{}
	}

	if f.pace {
		if !f.wait(channel, pkt.Timestamp, stopCh) {
			return &lifecycle.BreakError{}
		}
	}

	err = f.recv.Handle(channel, pkt)
	switch {
	case errors.Is(err, ErrUnknownChannel):
		f.log.Tracef(f, "Skipping packet on channel %d", channel)
	case err != nil:
		f.log.Errorf(f, "Sink rejected packet: %v", err)
		return &lifecycle.BreakError{}
	}
	return nil
}

// wait sleeps until the wall-clock offset matches the RTP timestamp offset of
// the channel. It reports false when the feeder is stopping.
func (f *Feeder) wait(channel uint8, ts uint32, stopCh <-chan struct{}) bool {
	rate := f.recv.ClockRate(channel)
	if rate == 0 {
		return true
	}
	clock, ok := f.clocks[channel]
	if !ok {
		clock = new(tsUnwrapper)
		f.clocks[channel] = clock
	}
	offset := time.Duration(clock.unwrap(ts) * uint64(time.Second) / uint64(rate))
	delay := time.Until(f.start.Add(offset))
	if delay <= 0 {
		return true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	case <-f.done:
		return false
	}
}

func (f *Feeder) Close_() {
	f.pr.CloseWithError(errFeederStopped)
	if c, ok := f.src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			f.log.Warningf(f, "Closing capture failed: %v", err)
		}
	}
}

func (f *Feeder) String() string {
	return "RTP_FEEDER"
}
