package h265

// NALU types handled by the stream reader.
const (
	NalUnitCodedSliceTrailN    = 0
	NalUnitCodedSliceTrailR    = 1
	NalUnitCodedSliceIdrWRadl  = 19
	NalUnitCodedSliceIdrNLp    = 20
	NalUnitCodedSliceCra       = 21
	NalUnitVps                 = 32
	NalUnitSps                 = 33
	NalUnitPps                 = 34
	NalUnitAccessUnitDelimiter = 35
	NalUnitPrefixSei           = 39
	NalUnitSuffixSei           = 40

	// RTP payload structures, RFC 7798
	NalUnitAP   = 48
	NalUnitFU   = 49
	NalUnitPACI = 50
)

// IsParameterSet reports whether the NALU type carries decoder configuration.
func IsParameterSet(typ uint8) bool {
	return typ == NalUnitVps || typ == NalUnitSps || typ == NalUnitPps
}

// IsKeyFrame reports whether the NALU type is an IRAP picture.
func IsKeyFrame(typ uint8) bool {
	return typ >= 16 && typ <= 23 //nolint:mnd // BLA_W_LP..RSV_IRAP_VCL23
}

const (
	naluLengthSize  = 4
	lengthFieldSize = 2

	// byte offsets inside the SPS RBSP following the 2-byte NALU header
	spsLayersOffset = 0
	spsPTLOffset    = 1
	spsPTLSize      = 12

	// size of the fixed part of HEVCDecoderConfigurationRecord
	hvccHeaderSize = 23
)
