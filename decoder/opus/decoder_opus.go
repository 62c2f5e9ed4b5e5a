package opus

import (
	"errors"
	"fmt"
	"time"

	"github.com/hraban/opus"
	"github.com/ugparu/mmstream"
	goopus "github.com/ugparu/mmstream/codec/opus"
	"github.com/ugparu/mmstream/decoder"
)

var errPacketTooLong = errors.New("opus: packet longer than 120ms")

type opusDecoder struct {
	*opus.Decoder
	channels int
	pcm      []float32
}

func NewOpusDecoder() decoder.InnerAudioDecoder {
	return &opusDecoder{
		Decoder:  nil,
		channels: 0,
		pcm:      nil,
	}
}

func (d *opusDecoder) Init(params mmstream.AudioCodecParameters) (err error) {
	d.channels = int(params.Channels())
	//nolint:gosec // opus rates are at most 48kHz
	if d.Decoder, err = opus.NewDecoder(int(params.SampleRate()), d.channels); err != nil {
		return err
	}
	frameSamples := int(params.SampleRate()) * goopus.MaxFrameDuration / 1000 //nolint:mnd
	d.pcm = make([]float32, frameSamples*d.channels)
	return nil
}

// Decode rejects packets whose TOC announces more audio than fits the
// output buffer before handing them to libopus.
func (d *opusDecoder) Decode(inData []byte) ([]float32, error) {
	dur, err := goopus.PacketDuration(inData)
	if err != nil {
		return nil, err
	}
	if dur > goopus.MaxFrameDuration*time.Millisecond {
		return nil, fmt.Errorf("%w: %v", errPacketTooLong, dur)
	}
	n, err := d.Decoder.DecodeFloat32(inData, d.pcm)
	if err != nil {
		return nil, err
	}
	return d.pcm[:n*d.channels], nil
}

func (d *opusDecoder) Close() {
	d.Decoder = nil
}
