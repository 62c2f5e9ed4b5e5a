package mmstream

// Packet is a compressed media packet handed over by the transport.
type Packet struct {
	StreamSeq uint64 // Identifier of the stream instance the packet belongs to.
	PTS       uint64 // Presentation timestamp in milliseconds with an arbitrary epoch.
	Data      []byte // Compressed payload. Annex-B byte stream for video.
	Optional  bool   // The packet may be lost without breaking decode.
}

// DroppedPacket notifies that the transport gave up on a packet.
type DroppedPacket struct {
	StreamSeq uint64
	Optional  bool
}

// VideoStreamParams is the announcement of a new video stream.
type VideoStreamParams struct {
	Codec  CodecType
	Width  uint
	Height uint
}

// AudioStreamParams is the announcement of a new audio stream.
type AudioStreamParams struct {
	Codec      CodecType
	SampleRate uint32
	Channels   ChannelLayout
}

// CodecParameters defines the interface for codec configuration.
type CodecParameters interface {
	Type() CodecType // Returns the codec type (audio/video).
	Tag() string     // Returns the codec identifier string.
}

// DecoderConfiguration is the decoder-facing view of a set of video parameter sets.
// A new configuration replaces the previous one as a whole.
type DecoderConfiguration interface {
	CodecParameters
	Width() uint             // Returns the coded frame width in pixels.
	Height() uint            // Returns the coded frame height in pixels.
	ParameterSets() [][]byte // Returns raw parameter set NALUs without start codes, in stream order.
	Record() []byte          // Returns the avcC/hvcC decoder configuration record.
	NALULengthSize() int     // Returns the size of access unit length prefixes.
}

// AudioCodecParameters extends CodecParameters with audio-specific properties.
type AudioCodecParameters interface {
	CodecParameters
	SampleRate() uint32         // Returns the audio sampling frequency in Hz.
	SampleFormat() SampleFormat // Returns the format of decoded samples.
	Channels() uint8            // Returns the number of audio channels.
}
