package h264

// NALU types handled by the stream reader.
const (
	NaluNonIDR   = 1
	NaluCodedIDR = 5
	NaluSEI      = 6
	NaluSPS      = 7
	NaluPPS      = 8
	NaluAUD      = 9
	NaluSPSExt   = 13
)

// IsParameterSet reports whether the NALU type carries decoder configuration.
func IsParameterSet(typ uint8) bool {
	return typ == NaluSPS || typ == NaluPPS || typ == NaluSPSExt
}

// IsKeyFrame reports whether the NALU type is an IDR slice.
func IsKeyFrame(typ uint8) bool {
	return typ == NaluCodedIDR
}

const (
	maskLengthSizeMinusOne    = 0x03
	maskSPSCount              = 0x1f
	maskLengthSizeMinusOneInv = 0xfc
	maskSPSCountInv           = 0xe0
	maskChromaFormatInv       = 0xfc
	maskBitDepthInv           = 0xf8

	// length field size in AVCDecoderConfRecord
	lengthFieldSize = 2

	// NALU length prefix size announced in the record
	naluLengthSize = 4
)

// profiles carrying the chroma/bit depth extension in avcC
var highProfiles = map[uint8]bool{100: true, 110: true, 122: true, 144: true}
