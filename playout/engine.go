package playout

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/ugparu/mmstream/utils/logger"
	"github.com/ugparu/mmstream/utils/ring"
)

// Stats is a snapshot of engine counters.
type Stats struct {
	EnqueuedFrames  uint64        `json:"enqueued_frames"`
	Overruns        uint64        `json:"overruns"`
	DroppedFrames   uint64        `json:"dropped_frames"`
	Pulls           uint64        `json:"pulls"`
	SilencePulls    uint64        `json:"silence_pulls"`
	DeliveredFrames uint64        `json:"delivered_frames"`
	SkippedFrames   uint64        `json:"skipped_frames"`
	BufferedFrames  int           `json:"buffered_frames"`
	Latency         time.Duration `json:"latency"`
	Refill          bool          `json:"refill"`
}

// Engine buffers decoded audio between a decode goroutine and a real-time
// pull clock. Enqueue is the only producer and Pull the only consumer; they
// may run concurrently. Pull never locks, allocates or logs.
type Engine struct {
	format Format
	buf    *ring.Buffer

	targetFrames int
	lowFrames    int
	highFrames   int
	refill       atomic.Bool

	enqueued  atomic.Uint64
	overruns  atomic.Uint64
	dropped   atomic.Uint64
	pulls     atomic.Uint64
	silence   atomic.Uint64
	delivered atomic.Uint64
	skipped   atomic.Uint64

	log *logger.Logger
}

// NewEngine creates an engine holding up to one second of audio.
func NewEngine(format Format, marks Watermarks, log *logger.Logger) (*Engine, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if err := marks.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		format:       format,
		buf:          ring.New(int(format.SampleRate) * format.BytesPerFrame()),
		targetFrames: format.Frames(marks.Target),
		lowFrames:    format.Frames(marks.Low),
		highFrames:   format.Frames(marks.High),
		log:          log,
	}, nil
}

func (e *Engine) Format() Format {
	return e.format
}

// Enqueue appends interleaved samples. A trailing partial frame is ignored.
// When the frames do not fit they are dropped as a whole and false is returned.
func (e *Engine) Enqueue(pcm []float32) bool {
	frames := len(pcm) / e.format.Channels
	if frames == 0 {
		return true
	}
	samples := pcm[:frames*e.format.Channels]
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*bytesPerSample)
	if !e.buf.Produce(raw) {
		e.overruns.Add(1)
		e.dropped.Add(uint64(frames)) //nolint:gosec // positive
		e.log.Warningf(e, "buffer overrun, dropping %d frames (%d buffered, room for %d)",
			frames, e.BufferedFrames(), e.buf.Free()/e.format.BytesPerFrame())
		return false
	}
	e.enqueued.Add(uint64(frames)) //nolint:gosec // positive
	return true
}

// BufferedFrames returns the number of frames waiting for playout.
func (e *Engine) BufferedFrames() int {
	return e.buf.Len() / e.format.BytesPerFrame()
}

// Latency returns the buffered duration.
func (e *Engine) Latency() time.Duration {
	return e.format.Duration(e.BufferedFrames())
}

// Pull fills out, one slice per channel of equal length, and reports whether
// real samples were delivered. When the buffer drops below the low watermark
// it plays silence until the target is reached again. When more than the
// high watermark is buffered it skips whole multiples of len(out[0]).
func (e *Engine) Pull(out [][]float32) bool {
	e.pulls.Add(1)
	if !e.validOutput(out) {
		Silence(out)
		e.silence.Add(1)
		return false
	}
	frameCount := len(out[0])
	bpf := e.format.BytesPerFrame()

	available := e.buf.Len() / bpf
	if available < e.lowFrames || (e.refill.Load() && available < e.targetFrames) {
		e.refill.Store(true)
		Silence(out)
		e.silence.Add(1)
		return false
	}
	e.refill.Store(false)

	frames := min(frameCount, available)
	first, second := e.buf.Peek(frames * bpf)
	a, b := asFloats(first), asFloats(second)
	channels := e.format.Channels
	for ch := range channels {
		dst := out[ch]
		i := 0
		for s := ch; s < len(a); s += channels {
			dst[i] = a[s]
			i++
		}
		for s := ch; s < len(b); s += channels {
			dst[i] = b[s]
			i++
		}
		clear(dst[i:])
	}

	consumed := frames
	if available > e.highFrames {
		if skip := (available/frameCount - 1) * frameCount; skip > 0 {
			consumed += skip
			e.skipped.Add(uint64(skip)) //nolint:gosec // positive
		}
	}
	e.buf.Consume(consumed * bpf)
	e.delivered.Add(uint64(frames)) //nolint:gosec // positive
	return true
}

func (e *Engine) validOutput(out [][]float32) bool {
	if len(out) != e.format.Channels || len(out[0]) == 0 {
		return false
	}
	for _, ch := range out[1:] {
		if len(ch) != len(out[0]) {
			return false
		}
	}
	return true
}

// Stats returns a snapshot of the counters. Safe from any goroutine.
func (e *Engine) Stats() Stats {
	buffered := e.BufferedFrames()
	return Stats{
		EnqueuedFrames:  e.enqueued.Load(),
		Overruns:        e.overruns.Load(),
		DroppedFrames:   e.dropped.Load(),
		Pulls:           e.pulls.Load(),
		SilencePulls:    e.silence.Load(),
		DeliveredFrames: e.delivered.Load(),
		SkippedFrames:   e.skipped.Load(),
		BufferedFrames:  buffered,
		Latency:         e.format.Duration(buffered),
		Refill:          e.refill.Load(),
	}
}

func (e *Engine) String() string {
	return fmt.Sprintf("AUDIO_ENGINE %v", e.format)
}

// Silence zeroes every channel of out.
func Silence(out [][]float32) {
	for _, ch := range out {
		clear(ch)
	}
}

func asFloats(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/bytesPerSample)
}
