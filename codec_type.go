package mmstream

// CodecType represents the type of a codec.
type CodecType uint32

// avCodecTypeMagic is a magic number used to create unique codec types.
const avCodecTypeMagic = 233333

// makeAudioCodecType creates an audio CodecType based on the provided base.
func makeAudioCodecType(base uint32) (c CodecType) {
	c = CodecType(base)<<codecTypeOtherBits | CodecType(codecTypeAudioBit)
	return
}

// makeVideoCodecType creates a video CodecType based on the provided base.
func makeVideoCodecType(base uint32) (c CodecType) {
	c = CodecType(base) << codecTypeOtherBits
	return
}

// variables representing specific codec types.
var (
	H264     = makeVideoCodecType(avCodecTypeMagic + 1) //nolint:mnd
	H265     = makeVideoCodecType(avCodecTypeMagic + 2) //nolint:mnd
	PCMMulaw = makeAudioCodecType(avCodecTypeMagic + 2) //nolint:mnd
	PCMAlaw  = makeAudioCodecType(avCodecTypeMagic + 3) //nolint:mnd
	OPUS     = makeAudioCodecType(avCodecTypeMagic + 7) //nolint:mnd
)

// Bitwise flags for codec types.
const (
	codecTypeAudioBit  = 0x1
	codecTypeOtherBits = 1
)

// String returns the human-readable string representation of a CodecType.
func (ct CodecType) String() string {
	switch ct {
	case H264:
		return "H264"
	case H265:
		return "H265"
	case PCMMulaw:
		return "PCM_MULAW"
	case PCMAlaw:
		return "PCM_ALAW"
	case OPUS:
		return "OPUS"
	}
	return "UNKNOWN"
}

// ParseCodecType maps a configuration name onto a CodecType.
func ParseCodecType(name string) (CodecType, bool) {
	switch name {
	case "h264", "H264", "avc":
		return H264, true
	case "h265", "H265", "hevc":
		return H265, true
	case "opus", "OPUS":
		return OPUS, true
	case "pcma", "alaw", "PCM_ALAW":
		return PCMAlaw, true
	case "pcmu", "mulaw", "PCM_MULAW":
		return PCMMulaw, true
	}
	return 0, false
}

// IsAudio returns true if the CodecType represents an audio codec.
func (ct CodecType) IsAudio() bool {
	return ct&codecTypeAudioBit != 0
}

// IsVideo returns true if the CodecType represents a video codec.
func (ct CodecType) IsVideo() bool {
	return ct&codecTypeAudioBit == 0
}
