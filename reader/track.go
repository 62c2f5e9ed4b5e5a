package reader

import (
	"errors"
	"fmt"

	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/format/annexb"
	"github.com/ugparu/mmstream/utils/buffer"
	"github.com/ugparu/mmstream/utils/logger"
)

// ErrNoConfiguration is returned for slice data that arrives before the
// stream's parameter sets. The packet is dropped.
var ErrNoConfiguration = errors.New("reader: access unit before decoder configuration")

// State of a VideoStreamTrack.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingConfiguration
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingConfiguration:
		return "awaiting configuration"
	case StateStreaming:
		return "streaming"
	}
	return "unknown"
}

// AccessUnit is a length prefixed frame ready for the decoder. The consumer
// owns Data and must Release it, and must resolve Completion once the frame
// was presented or dropped.
type AccessUnit struct {
	Data          buffer.PooledBuffer
	StreamSeq     uint64
	PTS           uint64
	NALUs         int
	ResetRequired bool
	Completion    *Completion
}

// Release returns Data to the pool.
func (au *AccessUnit) Release() {
	if au.Data != nil {
		au.Data.Release()
		au.Data = nil
	}
}

// Action is what a submitted packet produced: a new configuration, an access
// unit, both, or nothing.
type Action struct {
	Config mmstream.DecoderConfiguration
	Unit   *AccessUnit
}

func (a Action) Empty() bool {
	return a.Config == nil && a.Unit == nil
}

// VideoStreamTrack owns the decode state of one logical video stream.
// It is not safe for concurrent use.
type VideoStreamTrack struct {
	state      State
	seq        uint64
	params     mmstream.VideoStreamParams
	parser     *annexb.Parser
	config     mmstream.DecoderConfiguration
	needsReset bool
	log        *logger.Logger
}

func NewVideoStreamTrack(log *logger.Logger) *VideoStreamTrack {
	return &VideoStreamTrack{log: log}
}

// Start handles a stream announcement. A new sequence discards the cached
// configuration and arms a decoder reset; repeating the current announcement
// changes nothing.
func (t *VideoStreamTrack) Start(seq uint64, params mmstream.VideoStreamParams) error {
	if t.state != StateUninitialized && seq == t.seq && params == t.params {
		t.log.Debugf(t, "Ignoring repeated announcement of stream %d", seq)
		return nil
	}
	parser, err := annexb.NewParser(params.Codec, t.log)
	if err != nil {
		return err
	}
	t.parser = parser
	t.seq = seq
	t.params = params
	t.config = nil
	t.needsReset = true
	t.state = StateAwaitingConfiguration
	t.log.Infof(t, "Video stream %d started: %v %dx%d", seq, params.Codec, params.Width, params.Height)
	return nil
}

// SubmitPacket parses one packet of the current stream. onDisplayed is
// attached to the produced access unit; when no access unit is delivered it
// is resolved with false before SubmitPacket returns. Packets of any other
// stream sequence are discarded without error.
func (t *VideoStreamTrack) SubmitPacket(pkt mmstream.Packet, onDisplayed func(presented bool)) (Action, error) {
	completion := NewCompletion(onDisplayed)
	action, err := t.submit(pkt, completion)
	if action.Unit == nil {
		completion.Resolve(false)
	}
	return action, err
}

func (t *VideoStreamTrack) submit(pkt mmstream.Packet, completion *Completion) (action Action, err error) {
	if t.state == StateUninitialized || pkt.StreamSeq != t.seq {
		t.log.Tracef(t, "Discarding packet of stream %d, current %d", pkt.StreamSeq, t.seq)
		return action, nil
	}

	res, err := t.parser.Parse(pkt.Data)
	if err != nil {
		return action, err
	}

	if res.Config != nil {
		t.config = res.Config
		t.needsReset = true
		t.state = StateStreaming
		action.Config = res.Config
		t.log.Infof(t, "Decoder configuration changed: %v %dx%d",
			res.Config.Type(), res.Config.Width(), res.Config.Height())
	}

	if res.AccessUnit == nil {
		return action, nil
	}
	if t.config == nil {
		res.AccessUnit.Release()
		return action, ErrNoConfiguration
	}

	action.Unit = &AccessUnit{
		Data:          res.AccessUnit,
		StreamSeq:     t.seq,
		PTS:           pkt.PTS,
		NALUs:         res.NALUs,
		ResetRequired: t.needsReset,
		Completion:    completion,
	}
	t.needsReset = false
	return action, nil
}

func (t *VideoStreamTrack) State() State {
	return t.state
}

func (t *VideoStreamTrack) StreamSeq() uint64 {
	return t.seq
}

// Config returns the current decoder configuration, or nil.
func (t *VideoStreamTrack) Config() mmstream.DecoderConfiguration {
	return t.config
}

func (t *VideoStreamTrack) NeedsReset() bool {
	return t.needsReset
}

func (t *VideoStreamTrack) String() string {
	return fmt.Sprintf("VIDEO_TRACK %d", t.seq)
}
