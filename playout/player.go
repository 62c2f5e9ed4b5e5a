package playout

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ugparu/mmstream/utils/logger"
)

// syncInterval is the minimum spacing of recorded sync points.
const syncInterval = time.Second

// SyncPoint relates a presentation timestamp to the moment it was heard.
type SyncPoint struct {
	PTS        uint64
	MeasuredAt time.Time
}

// PlayerConfig tunes a Player. A zero OutputSampleRate keeps the stream rate.
type PlayerConfig struct {
	Watermarks       Watermarks
	OutputSampleRate uint32
}

// Player owns the Output and the Engine of the current audio stream.
// Every StreamStarted replaces the engine; pulls issued for an older
// stream produce silence.
type Player struct {
	output Output
	cfg    PlayerConfig
	log    *logger.Logger

	generation atomic.Uint64

	mu        sync.Mutex
	engine    *Engine
	resampler *resampler
	running   bool
	point     SyncPoint
	hasSync   bool
}

func NewPlayer(output Output, cfg PlayerConfig, log *logger.Logger) (*Player, error) {
	if cfg.Watermarks == (Watermarks{}) {
		cfg.Watermarks = DefaultWatermarks()
	}
	if err := cfg.Watermarks.Validate(); err != nil {
		return nil, err
	}
	return &Player{output: output, cfg: cfg, log: log}, nil
}

// StreamStarted prepares playout of a new stream with the given interleaved
// input format, restarting the output with a fresh engine.
func (p *Player) StreamStarted(in Format) error {
	if err := in.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	gen := p.generation.Load()

	out := in
	p.resampler = nil
	if rate := p.cfg.OutputSampleRate; rate != 0 && rate != in.SampleRate {
		r, err := newResampler(in.Channels, in.SampleRate, rate)
		if err != nil {
			p.log.Warningf(p, "Playing at %dHz without resampling: %v", in.SampleRate, err)
		} else {
			p.resampler = r
			out.SampleRate = rate
		}
	}

	engine, err := NewEngine(out, p.cfg.Watermarks, p.log)
	if err != nil {
		return err
	}
	p.engine = engine

	pull := func(dst [][]float32) bool {
		if p.generation.Load() != gen {
			Silence(dst)
			return false
		}
		return engine.Pull(dst)
	}
	if err = p.output.Start(out, pull); err != nil {
		p.engine = nil
		p.resampler = nil
		p.log.Errorf(p, "Failed to start audio output %v: %v", out, err)
		return fmt.Errorf("playout: start output: %w", err)
	}
	p.running = true
	p.log.Infof(p, "Audio stream started: input %v, output %v", in, out)
	return nil
}

// FrameAvailable enqueues decoded interleaved samples of the current stream.
// It returns false when the samples were dropped.
func (p *Player) FrameAvailable(pcm []float32, pts uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine == nil {
		return false
	}
	if p.resampler != nil {
		converted, err := p.resampler.Resample(pcm)
		if err != nil {
			p.log.Warningf(p, "Resampling frame pts=%d failed: %v", pts, err)
			return false
		}
		pcm = converted
	}
	return p.engine.Enqueue(pcm)
}

// Sync records pts as heard at measuredAt. The first point is always kept,
// later ones at most once per second. It reports whether the point was kept.
func (p *Player) Sync(pts uint64, measuredAt time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasSync && measuredAt.Sub(p.point.MeasuredAt) < syncInterval {
		return false
	}
	p.point = SyncPoint{PTS: pts, MeasuredAt: measuredAt}
	p.hasSync = true
	return true
}

// SyncPoint returns the last recorded point.
func (p *Player) SyncPoint() (SyncPoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.point, p.hasSync
}

// Stop halts the output and discards buffered audio.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.engine = nil
	p.resampler = nil
	p.hasSync = false
}

func (p *Player) stopLocked() {
	p.generation.Add(1)
	if p.running {
		p.output.Stop()
		p.running = false
	}
}

// Stats returns the counters of the current engine.
func (p *Player) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine == nil {
		return Stats{}
	}
	return p.engine.Stats()
}

func (p *Player) String() string {
	return "AUDIO_PLAYER"
}
