package codec

import (
	"errors"
	"fmt"

	"github.com/ugparu/mmstream"
)

// BaseParameters carries the codec identity shared by all parameter types.
type BaseParameters struct {
	mmstream.CodecType
}

func (par *BaseParameters) Type() mmstream.CodecType {
	if par == nil {
		return 0
	}
	return par.CodecType
}

func (par *BaseParameters) String() string {
	if par == nil {
		return "EMPTY_CODEC_PARAMETERS"
	}
	return fmt.Sprintf("CODEC_PARAMETERS codec=%v", par.CodecType)
}

var (
	ErrInvalidFrameSize        = errors.New("invalid frame size")
	ErrUnsupportedChromaFormat = errors.New("unsupported chroma format")
)

// chromaFormat420 is the only chroma_format_idc accepted for decoding.
const chromaFormat420 = 1

// CheckPicture validates the picture format of a parsed SPS.
func CheckPicture(ct mmstream.CodecType, width, height int, chromaFormatIdc uint32) error {
	switch {
	case width <= 0 || height <= 0:
		return &ImportError{Codec: ct, Err: ErrInvalidFrameSize}
	case chromaFormatIdc != chromaFormat420:
		return &ImportError{Codec: ct, Err: fmt.Errorf("%w %d", ErrUnsupportedChromaFormat, chromaFormatIdc)}
	}
	return nil
}

// ImportError reports parameter sets that parse cleanly but describe a
// picture format that can not be decoded. Unparsable sets are not ImportErrors.
type ImportError struct {
	Codec mmstream.CodecType
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("%v: failed to import parameter sets: %v", e.Codec, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// CloneSets deep-copies parameter sets so they outlive the packet buffer.
func CloneSets(sets [][]byte) [][]byte {
	out := make([][]byte, len(sets))
	for i, s := range sets {
		out[i] = append([]byte(nil), s...)
	}
	return out
}
