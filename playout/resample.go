package playout

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/winlinvip/go-aresample/aresample"
)

// minResampleFrames is the smallest input accepted by the spline resampler.
const minResampleFrames = 4

// resampler converts interleaved float32 audio between sample rates. The
// spline resampler works on 16-bit samples, so audio is quantized on the way.
type resampler struct {
	r        aresample.ResampleSampleRate
	channels int
	from, to uint32
	s16      []byte
	out      []float32
}

func newResampler(channels int, from, to uint32) (*resampler, error) {
	r, err := aresample.NewPcmS16leResampler(channels, int(from), int(to))
	if err != nil {
		return nil, fmt.Errorf("playout: resampler %dHz->%dHz/%dch: %w", from, to, channels, err)
	}
	return &resampler{r: r, channels: channels, from: from, to: to}, nil
}

// Resample returns the converted samples. The result is reused by the next call.
func (r *resampler) Resample(pcm []float32) ([]float32, error) {
	frames := len(pcm) / r.channels
	if frames < minResampleFrames {
		return nil, nil
	}
	pcm = pcm[:frames*r.channels]

	r.s16 = r.s16[:0]
	for _, s := range pcm {
		r.s16 = binary.LittleEndian.AppendUint16(r.s16, uint16(floatToS16(s))) //nolint:gosec // two's complement
	}
	converted, err := r.r.Resample(r.s16)
	if err != nil {
		return nil, err
	}

	r.out = r.out[:0]
	for i := 0; i+1 < len(converted); i += 2 {
		r.out = append(r.out, float32(int16(binary.LittleEndian.Uint16(converted[i:])))/math.MaxInt16) //nolint:gosec
	}
	return r.out, nil
}

func floatToS16(s float32) int16 {
	switch {
	case s >= 1:
		return math.MaxInt16
	case s <= -1:
		return -math.MaxInt16
	}
	return int16(s * math.MaxInt16)
}
