package pcm

import (
	"errors"
	"fmt"

	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/codec"
)

var ErrInvalidParameters = errors.New("pcm: unsupported codec, sample rate or channel count")

const maxChannels = 2

type CodecParameters struct {
	codec.BaseParameters
	chCount    uint8
	sampleRate uint32
}

// NewCodecParameters describes a G.711 stream (PCMAlaw or PCMMulaw).
func NewCodecParameters(ct mmstream.CodecType, channelCount uint8, sr uint32) (*CodecParameters, error) {
	if (ct != mmstream.PCMAlaw && ct != mmstream.PCMMulaw) || sr == 0 ||
		channelCount == 0 || channelCount > maxChannels {
		return nil, fmt.Errorf("%w: %v %d Hz, %d channels", ErrInvalidParameters, ct, sr, channelCount)
	}
	return &CodecParameters{
		BaseParameters: codec.BaseParameters{CodecType: ct},
		sampleRate:     sr,
		chCount:        channelCount,
	}, nil
}

// SampleFormat is FLT: the decoder expands G.711 to S16 and scales it to float.
func (p *CodecParameters) SampleFormat() mmstream.SampleFormat {
	return mmstream.FLT
}

func (p *CodecParameters) SampleRate() uint32 {
	return p.sampleRate
}

func (p *CodecParameters) Channels() uint8 {
	return p.chCount
}

func (p *CodecParameters) Tag() string {
	if p.CodecType == mmstream.PCMMulaw {
		return "pcmu"
	}
	return "pcma"
}
