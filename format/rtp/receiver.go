package rtp

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/utils/logger"
)

// Sequence number windows. A step forward of less than maxDropout is loss, a
// step back of at most maxMisorder is a late packet and anything else is a
// discontinuity of the sender.
const (
	maxDropout  = 3000
	maxMisorder = 100
)

var (
	ErrUnknownChannel = errors.New("rtp: no track on channel")
	ErrInvalidTrack   = errors.New("rtp: invalid track configuration")

	errLatePacket = errors.New("rtp: late packet")
)

// Sink receives the stream announcements and packets recovered from RTP.
// *session.Session implements it.
type Sink interface {
	StartVideo(seq uint64, params mmstream.VideoStreamParams) error
	SubmitVideo(pkt mmstream.Packet) error
	DroppedVideo(d mmstream.DroppedPacket) error
	StartAudio(seq uint64, params mmstream.AudioStreamParams) error
	SubmitAudio(pkt mmstream.Packet) error
}

// TrackConfig binds an interleaved channel to a codec.
type TrackConfig struct {
	Channel   uint8              `json:"channel"`
	Codec     mmstream.CodecType `json:"codec"`
	ClockRate uint32             `json:"clock_rate"`
	Channels  int                `json:"channels"` // audio only

	// ParameterSets announced out of band, submitted ahead of the first
	// access unit of every video stream.
	ParameterSets [][]byte `json:"-"`
}

func (c TrackConfig) validate() error {
	if c.ClockRate == 0 {
		return fmt.Errorf("%w: zero clock rate on channel %d", ErrInvalidTrack, c.Channel)
	}
	switch c.Codec {
	case mmstream.H264, mmstream.H265:
		if n := len(c.ParameterSets); n == 1 {
			return fmt.Errorf("%w: single parameter set on channel %d", ErrInvalidTrack, c.Channel)
		}
	case mmstream.OPUS, mmstream.PCMAlaw, mmstream.PCMMulaw:
		if mmstream.ChannelLayoutFromCount(c.Channels) == 0 {
			return fmt.Errorf("%w: %d channels on channel %d", ErrInvalidTrack, c.Channels, c.Channel)
		}
	default:
		return fmt.Errorf("%w: codec %v on channel %d", ErrInvalidTrack, c.Codec, c.Channel)
	}
	return nil
}

// Stats counts RTP level events of a Receiver.
type Stats struct {
	Packets    uint64 `json:"packets"`
	Lost       uint64 `json:"lost"`
	Late       uint64 `json:"late"`
	Frames     uint64 `json:"frames"`
	Errors     uint64 `json:"errors"`
	NewStreams uint64 `json:"new_streams"`
	Resyncs    uint64 `json:"resyncs"`
}

// tsUnwrapper extends 32-bit RTP timestamps to a monotonic-ish 64-bit count
// relative to the first timestamp seen. Backward steps are allowed but the
// result never goes below zero.
type tsUnwrapper struct {
	last uint32
	acc  int64
	init bool
}

func (u *tsUnwrapper) unwrap(ts uint32) uint64 {
	if !u.init {
		u.init = true
		u.last = ts
		return 0
	}
	u.acc += int64(int32(ts - u.last))
	u.last = ts
	if u.acc < 0 {
		return 0
	}
	return uint64(u.acc)
}

func (u *tsUnwrapper) reset() {
	*u = tsUnwrapper{}
}

type track struct {
	cfg     TrackConfig
	dep     depacketizer
	started bool
	ssrc    uint32
	seq     uint64
	lastSN  uint16
	ts      tsUnwrapper
}

func (t *track) video() bool {
	return t.cfg.Codec.IsVideo()
}

func (t *track) pts(ts uint32) uint64 {
	return t.ts.unwrap(ts) * 1000 / uint64(t.cfg.ClockRate) //nolint:mnd
}

// Receiver turns RTP packets into the packets and announcements a Sink
// consumes. Every SSRC change starts a new stream instance. Sequence number
// gaps reset the depacketizer and, for video, report a dropped packet so the
// consumer can ask for a refresh. Jumps outside the loss window resynchronise
// on the new sequence number the same way. Receiver is not safe for concurrent use.
type Receiver struct {
	sink    Sink
	tracks  map[uint8]*track
	nextSeq uint64
	log     *logger.Logger

	packets    atomic.Uint64
	lost       atomic.Uint64
	late       atomic.Uint64
	frames     atomic.Uint64
	failures   atomic.Uint64
	newStreams atomic.Uint64
	resyncs    atomic.Uint64
}

func NewReceiver(sink Sink, log *logger.Logger) *Receiver {
	return &Receiver{
		sink:    sink,
		tracks:  make(map[uint8]*track),
		nextSeq: 1,
		log:     log,
	}
}

// AddTrack registers a track. A channel can be bound once.
func (r *Receiver) AddTrack(cfg TrackConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if _, ok := r.tracks[cfg.Channel]; ok {
		return fmt.Errorf("%w: channel %d already bound", ErrInvalidTrack, cfg.Channel)
	}

	t := &track{cfg: cfg}
	switch cfg.Codec {
	case mmstream.H264:
		t.dep = newH264Depacketizer()
	case mmstream.H265:
		t.dep = newH265Depacketizer()
	default:
		t.dep = &audioDepacketizer{opus: cfg.Codec == mmstream.OPUS}
	}
	r.tracks[cfg.Channel] = t
	r.log.Debugf(r, "Channel %d bound to %v at %d Hz", cfg.Channel, cfg.Codec, cfg.ClockRate)
	return nil
}

// ClockRate returns the RTP clock rate of the track on channel, or zero.
func (r *Receiver) ClockRate(channel uint8) uint32 {
	if t, ok := r.tracks[channel]; ok {
		return t.cfg.ClockRate
	}
	return 0
}

// Handle processes one RTP packet received on channel. Errors returned by the
// sink are passed through; malformed payloads are logged and counted.
func (r *Receiver) Handle(channel uint8, pkt *rtp.Packet) error {
	t, ok := r.tracks[channel]
	if !ok {
		return fmt.Errorf("%w %d", ErrUnknownChannel, channel)
	}
	r.packets.Add(1)

	if !t.started || pkt.SSRC != t.ssrc {
		if err := r.startStream(t, pkt); err != nil {
			return err
		}
	} else if err := r.sequence(t, pkt.SequenceNumber); err != nil {
		if errors.Is(err, errLatePacket) {
			return nil
		}
		return err
	}

	frames, err := t.dep.Push(pkt)
	if err != nil {
		r.failures.Add(1)
		r.log.Warningf(r, "Depacketizing failed on channel %d: %v", channel, err)
		if dropErr := r.drop(t); dropErr != nil {
			return dropErr
		}
	}
	for _, f := range frames {
		if err = r.deliver(t, f); err != nil {
			return err
		}
	}
	return nil
}

// sequence checks sn against the last sequence number of t. It returns
// errLatePacket for duplicates and reordered packets, which must be skipped.
func (r *Receiver) sequence(t *track, sn uint16) error {
	delta := sn - t.lastSN
	switch {
	case delta == 0 || delta > 0xffff-maxMisorder:
		r.late.Add(1)
		r.log.Tracef(r, "Late packet %d on channel %d, last %d", sn, t.cfg.Channel, t.lastSN)
		return errLatePacket
	case delta == 1:
		t.lastSN = sn
		return nil
	case delta < maxDropout:
		r.lost.Add(uint64(delta - 1))
		r.log.Debugf(r, "Lost %d packets on channel %d", delta-1, t.cfg.Channel)
	default:
		r.resyncs.Add(1)
		r.log.Warningf(r, "Sequence jump %d -> %d on channel %d, resyncing", t.lastSN, sn, t.cfg.Channel)
	}
	t.lastSN = sn
	return r.drop(t)
}

func (r *Receiver) startStream(t *track, pkt *rtp.Packet) (err error) {
	t.started = true
	t.ssrc = pkt.SSRC
	t.lastSN = pkt.SequenceNumber
	t.seq = r.nextSeq
	r.nextSeq++
	t.dep.Reset()
	t.ts.reset()
	r.newStreams.Add(1)
	r.log.Infof(r, "New %v stream %d with SSRC %08x", t.cfg.Codec, t.seq, t.ssrc)

	if t.video() {
		if err = r.sink.StartVideo(t.seq, mmstream.VideoStreamParams{Codec: t.cfg.Codec}); err != nil {
			return err
		}
		if len(t.cfg.ParameterSets) == 0 {
			return nil
		}
		return r.sink.SubmitVideo(mmstream.Packet{StreamSeq: t.seq, Data: annexB(t.cfg.ParameterSets)})
	}
	return r.sink.StartAudio(t.seq, mmstream.AudioStreamParams{
		Codec:      t.cfg.Codec,
		SampleRate: t.cfg.ClockRate,
		Channels:   mmstream.ChannelLayoutFromCount(t.cfg.Channels),
	})
}

func annexB(nalus [][]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func (r *Receiver) drop(t *track) error {
	t.dep.Reset()
	if !t.video() {
		return nil
	}
	return r.sink.DroppedVideo(mmstream.DroppedPacket{StreamSeq: t.seq})
}

func (r *Receiver) deliver(t *track, f frame) error {
	r.frames.Add(1)
	pkt := mmstream.Packet{
		StreamSeq: t.seq,
		PTS:       t.pts(f.timestamp),
		Data:      f.data,
	}
	if t.video() {
		return r.sink.SubmitVideo(pkt)
	}
	return r.sink.SubmitAudio(pkt)
}

func (r *Receiver) Stats() Stats {
	return Stats{
		Packets:    r.packets.Load(),
		Lost:       r.lost.Load(),
		Late:       r.late.Load(),
		Frames:     r.frames.Load(),
		Errors:     r.failures.Load(),
		NewStreams: r.newStreams.Load(),
		Resyncs:    r.resyncs.Load(),
	}
}

func (r *Receiver) String() string {
	return "RTP_RECEIVER"
}
