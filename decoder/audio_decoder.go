package decoder

import (
	"errors"
	"fmt"

	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/utils/logger"
)

var ErrUnsupportedCodec = errors.New("decoder: unsupported audio codec")

// InnerAudioDecoder turns one compressed packet into interleaved float32
// samples. The returned slice is only valid until the next Decode call.
type InnerAudioDecoder interface {
	Init(params mmstream.AudioCodecParameters) error
	Decode([]byte) ([]float32, error)
	Close()
}

// Factory creates codec decoders by codec type.
type Factory map[mmstream.CodecType]func() InnerAudioDecoder

// AudioDecoder decodes packets of one stream, switching the codec decoder
// whenever the codec parameters change.
type AudioDecoder struct {
	InnerAudioDecoder
	factory  Factory
	codecPar mmstream.AudioCodecParameters
	log      *logger.Logger
}

func NewAudioDecoder(factory Factory, log *logger.Logger) *AudioDecoder {
	return &AudioDecoder{factory: factory, log: log}
}

func (d *AudioDecoder) updateCodecPar(par mmstream.AudioCodecParameters) error {
	if d.InnerAudioDecoder != nil {
		d.InnerAudioDecoder.Close()
		d.InnerAudioDecoder = nil
	}
	d.codecPar = nil

	decoderFn, ok := d.factory[par.Type()]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnsupportedCodec, par.Type())
	}
	inner := decoderFn()
	if err := inner.Init(par); err != nil {
		inner.Close()
		return fmt.Errorf("decoder: init %v: %w", par.Type(), err)
	}
	d.InnerAudioDecoder = inner
	d.codecPar = par
	d.log.Debugf(d, "Decoder initialized for %v", par)
	return nil
}

// Decode returns the interleaved samples of data encoded with par.
func (d *AudioDecoder) Decode(par mmstream.AudioCodecParameters, data []byte) ([]float32, error) {
	if par != d.codecPar {
		if err := d.updateCodecPar(par); err != nil {
			return nil, err
		}
	}
	return d.InnerAudioDecoder.Decode(data)
}

func (d *AudioDecoder) Close() {
	if d.InnerAudioDecoder != nil {
		d.InnerAudioDecoder.Close()
		d.InnerAudioDecoder = nil
	}
	d.codecPar = nil
}

func (d *AudioDecoder) String() string {
	return "AUDIO_DECODER"
}
