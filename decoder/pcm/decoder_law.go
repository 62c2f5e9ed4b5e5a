package pcm

import (
	"encoding/binary"
	"math"

	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/decoder"
	"github.com/zaf/g711"
)

type lawDecoder struct {
	decodeF func([]byte) []byte
	pcm     []float32
}

func NewALAWDecoder() decoder.InnerAudioDecoder {
	return &lawDecoder{
		decodeF: g711.DecodeAlaw,
	}
}

func NewULAWDecoder() decoder.InnerAudioDecoder {
	return &lawDecoder{
		decodeF: g711.DecodeUlaw,
	}
}

func (d *lawDecoder) Init(_ mmstream.AudioCodecParameters) error {
	return nil
}

// Decode expands G.711 bytes to 16-bit samples and scales them to [-1, 1).
func (d *lawDecoder) Decode(inData []byte) ([]float32, error) {
	s16 := d.decodeF(inData)
	d.pcm = d.pcm[:0]
	for i := 0; i+1 < len(s16); i += 2 {
		d.pcm = append(d.pcm, float32(int16(binary.LittleEndian.Uint16(s16[i:])))/(math.MaxInt16+1)) //nolint:gosec
	}
	return d.pcm, nil
}

func (d *lawDecoder) Close() {
}
