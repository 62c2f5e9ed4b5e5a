package playout

import (
	"errors"
	"fmt"
	"time"

	"github.com/ugparu/mmstream"
)

// Samples travel as mmstream.FLT, interleaved in the ring.
var bytesPerSample = mmstream.FLT.BytesPerSample()

var ErrInvalidFormat = errors.New("playout: invalid audio format")

// Format describes float32 audio. Samples are interleaved in the ring and
// delivered deinterleaved, one slice per channel.
type Format struct {
	SampleRate uint32
	Channels   int
}

func (f Format) Validate() error {
	if f.SampleRate == 0 || f.Channels <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, f)
	}
	return nil
}

// BytesPerFrame is the size of one interleaved frame.
func (f Format) BytesPerFrame() int {
	return f.Channels * bytesPerSample
}

// Frames converts a duration to a frame count, truncating.
func (f Format) Frames(d time.Duration) int {
	return int(int64(d) * int64(f.SampleRate) / int64(time.Second))
}

// Duration converts a frame count to a duration.
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(f.SampleRate))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}

// Watermarks are the buffered durations steering playout.
// Below Low the engine plays silence until Target is reached again; above
// High it skips ahead.
type Watermarks struct {
	Target time.Duration
	Low    time.Duration
	High   time.Duration
}

// DefaultWatermarks returns 40ms target, 20ms low and 60ms high.
func DefaultWatermarks() Watermarks {
	return Watermarks{
		Target: 40 * time.Millisecond, //nolint:mnd
		Low:    20 * time.Millisecond, //nolint:mnd
		High:   60 * time.Millisecond, //nolint:mnd
	}
}

func (w Watermarks) Validate() error {
	if w.Low <= 0 || w.Low > w.Target || w.Target > w.High || w.High >= time.Second {
		return fmt.Errorf("playout: watermarks must satisfy 0 < low <= target <= high < 1s, got %v/%v/%v",
			w.Low, w.Target, w.High)
	}
	return nil
}
