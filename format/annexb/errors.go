package annexb

import (
	"errors"
	"fmt"
)

// Kind classifies parse failures by how the caller should react.
type Kind int

const (
	// KindInvalidBitstream is a malformed packet. The packet is dropped and the stream continues.
	KindInvalidBitstream Kind = iota + 1
	// KindImportFailed means the parameter sets decoded cleanly but describe a
	// picture the decoder can not handle. The stream can not continue.
	KindImportFailed
	// KindUnsupportedCodec is returned for codecs other than H.264 and H.265.
	KindUnsupportedCodec
)

func (k Kind) String() string {
	switch k {
	case KindInvalidBitstream:
		return "invalid bitstream"
	case KindImportFailed:
		return "import failed"
	case KindUnsupportedCodec:
		return "unsupported codec"
	}
	return "unknown"
}

var (
	ErrNoNALUs                = errors.New("no NALUs in packet")
	ErrParameterSetAfterSlice = errors.New("parameter set after slice in packet")
	ErrSingleParameterSet     = errors.New("only one parameter set in packet")
)

// ParseError is returned by Parser.Parse.
type ParseError struct {
	Kind Kind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error terminates the stream.
func (e *ParseError) Fatal() bool {
	return e.Kind == KindImportFailed
}

// IsFatal reports whether err is a ParseError that terminates the stream.
func IsFatal(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Fatal()
}
