package opus

import (
	"errors"
	"fmt"

	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/codec"
)

var ErrInvalidParameters = errors.New("opus: unsupported sample rate or channel count")

// MaxFrameDuration is the longest Opus packet in milliseconds.
const MaxFrameDuration = 120

var sampleRates = map[uint32]bool{8000: true, 12000: true, 16000: true, 24000: true, 48000: true}

type CodecParameters struct {
	codec.BaseParameters
	mmstream.ChannelLayout
	sampleRate uint32
}

// NewCodecParameters validates the stream announcement against the rates and
// channel counts an Opus decoder accepts.
func NewCodecParameters(cl mmstream.ChannelLayout, sr uint32) (*CodecParameters, error) {
	if !sampleRates[sr] || cl.Count() < 1 || cl.Count() > 2 {
		return nil, fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidParameters, sr, cl.Count())
	}
	return &CodecParameters{
		ChannelLayout:  cl,
		BaseParameters: codec.BaseParameters{CodecType: mmstream.OPUS},
		sampleRate:     sr,
	}, nil
}

// SampleFormat is the format produced by the decoder.
func (p *CodecParameters) SampleFormat() mmstream.SampleFormat {
	return mmstream.FLT
}

func (p *CodecParameters) SampleRate() uint32 {
	return p.sampleRate
}

func (p *CodecParameters) Channels() uint8 {
	return uint8(p.ChannelLayout.Count()) //nolint:gosec // validated to 1 or 2
}

// MaxFrameSamples is the per-channel sample count of the longest packet.
func (p *CodecParameters) MaxFrameSamples() int {
	return int(p.sampleRate) * MaxFrameDuration / 1000 //nolint:mnd
}

func (p *CodecParameters) Tag() string {
	return "opus"
}

func (p *CodecParameters) String() string {
	return fmt.Sprintf("OPUS %dHz %v", p.sampleRate, p.ChannelLayout)
}
