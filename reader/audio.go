package reader

import (
	"fmt"

	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/codec/opus"
	"github.com/ugparu/mmstream/codec/pcm"
	"github.com/ugparu/mmstream/decoder"
	decopus "github.com/ugparu/mmstream/decoder/opus"
	decpcm "github.com/ugparu/mmstream/decoder/pcm"
	"github.com/ugparu/mmstream/playout"
	"github.com/ugparu/mmstream/utils/lifecycle"
	"github.com/ugparu/mmstream/utils/logger"
)

// AudioSink receives decoded interleaved audio. *playout.Player implements it.
type AudioSink interface {
	StreamStarted(format playout.Format) error
	FrameAvailable(pcm []float32, pts uint64) bool
	Stop()
}

// DefaultAudioFactory decodes Opus and G.711.
func DefaultAudioFactory() decoder.Factory {
	return decoder.Factory{
		mmstream.OPUS:     decopus.NewOpusDecoder,
		mmstream.PCMAlaw:  decpcm.NewALAWDecoder,
		mmstream.PCMMulaw: decpcm.NewULAWDecoder,
	}
}

// NewAudioCodecParameters validates an audio announcement.
func NewAudioCodecParameters(params mmstream.AudioStreamParams) (mmstream.AudioCodecParameters, error) {
	switch params.Codec {
	case mmstream.OPUS:
		return opus.NewCodecParameters(params.Channels, params.SampleRate)
	case mmstream.PCMAlaw, mmstream.PCMMulaw:
		return pcm.NewCodecParameters(params.Codec, uint8(params.Channels.Count()), params.SampleRate) //nolint:gosec
	}
	return nil, fmt.Errorf("%w: %v", decoder.ErrUnsupportedCodec, params.Codec)
}

// AudioStreamReader decodes the packets of one audio stream into a sink.
// It is not safe for concurrent use.
type AudioStreamReader struct {
	lifecycle.Manager[*AudioStreamReader]
	seq      uint64
	codecPar mmstream.AudioCodecParameters
	decoder  *decoder.AudioDecoder
	sink     AudioSink
	frames   uint64
	log      *logger.Logger
}

// NewAudioStreamReader validates the announcement and starts the sink with
// the stream's format.
func NewAudioStreamReader(seq uint64, params mmstream.AudioStreamParams, factory decoder.Factory,
	sink AudioSink, log *logger.Logger) (*AudioStreamReader, error) {
	codecPar, err := NewAudioCodecParameters(params)
	if err != nil {
		log.Errorf("AUDIO_READER", "Rejecting audio stream %d: %v", seq, err)
		return nil, err
	}

	r := &AudioStreamReader{
		seq:      seq,
		codecPar: codecPar,
		decoder:  decoder.NewAudioDecoder(factory, log),
		sink:     sink,
		log:      log,
	}
	r.Manager = lifecycle.NewDefaultManager(r, log)
	if err = r.Start(func(r *AudioStreamReader) error {
		return r.sink.StreamStarted(playout.Format{
			SampleRate: codecPar.SampleRate(),
			Channels:   int(codecPar.Channels()),
		})
	}); err != nil {
		r.decoder.Close()
		return nil, err
	}
	r.log.Infof(r, "Audio stream started: %v", codecPar)
	return r, nil
}

// SubmitPacket decodes a packet of this stream and hands the samples to the
// sink. It reports whether samples were accepted. Packets of other streams
// are discarded without error.
func (r *AudioStreamReader) SubmitPacket(pkt mmstream.Packet) (bool, error) {
	if pkt.StreamSeq != r.seq {
		return false, nil
	}
	samples, err := r.decoder.Decode(r.codecPar, pkt.Data)
	if err != nil {
		return false, err
	}
	if len(samples) == 0 {
		return false, nil
	}
	r.frames++
	return r.sink.FrameAvailable(samples, pkt.PTS), nil
}

func (r *AudioStreamReader) StreamSeq() uint64 {
	return r.seq
}

func (r *AudioStreamReader) CodecParameters() mmstream.AudioCodecParameters {
	return r.codecPar
}

// Frames returns the number of decoded packets.
func (r *AudioStreamReader) Frames() uint64 {
	return r.frames
}

//nolint:revive // lifecycle hook
func (r *AudioStreamReader) Close_() {
	r.sink.Stop()
	r.decoder.Close()
}

func (r *AudioStreamReader) String() string {
	return fmt.Sprintf("AUDIO_READER %d", r.seq)
}
