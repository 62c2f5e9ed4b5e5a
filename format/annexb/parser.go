package annexb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/codec"
	"github.com/ugparu/mmstream/codec/h264"
	"github.com/ugparu/mmstream/codec/h265"
	"github.com/ugparu/mmstream/utils/buffer"
	"github.com/ugparu/mmstream/utils/logger"
	"github.com/ugparu/mmstream/utils/nal"
)

// Result is the outcome of a successful Parse call. Config is set when the
// packet carried parameter sets, AccessUnit when it carried anything else.
// Both may be set at once.
type Result struct {
	Config     mmstream.DecoderConfiguration
	AccessUnit buffer.PooledBuffer
	NALUs      int // number of NALUs written to AccessUnit
}

// Parser turns Annex-B packets into length prefixed access units and
// decoder configurations. It keeps no state between calls.
type Parser struct {
	codec          mmstream.CodecType
	classify       nal.Classifier
	isParameterSet func(uint8) bool
	newConfig      func([][]byte) (mmstream.DecoderConfiguration, error)
	log            *logger.Logger
}

// NewParser creates a parser for H.264 or H.265 packets.
func NewParser(ct mmstream.CodecType, log *logger.Logger) (*Parser, error) {
	p := &Parser{codec: ct, log: log}
	switch ct {
	case mmstream.H264:
		p.classify = nal.H264Type
		p.isParameterSet = h264.IsParameterSet
		p.newConfig = func(sets [][]byte) (mmstream.DecoderConfiguration, error) {
			return h264.NewCodecParameters(sets)
		}
	case mmstream.H265:
		p.classify = nal.H265Type
		p.isParameterSet = h265.IsParameterSet
		p.newConfig = func(sets [][]byte) (mmstream.DecoderConfiguration, error) {
			return h265.NewCodecParameters(sets)
		}
	default:
		return nil, &ParseError{Kind: KindUnsupportedCodec, Err: fmt.Errorf("codec %v", ct)}
	}
	return p, nil
}

func (p *Parser) Codec() mmstream.CodecType {
	return p.codec
}

// Parse scans one packet. Parameter sets must lead the packet and come at
// least in pairs; they are folded into a new configuration and never copied
// into the access unit. The returned AccessUnit must be released by its consumer.
func (p *Parser) Parse(data []byte) (res Result, err error) {
	units := nal.Scan(data, p.classify)
	if len(units) == 0 {
		return res, &ParseError{Kind: KindInvalidBitstream, Err: ErrNoNALUs}
	}

	paramSets := 0
	for i, u := range units {
		if !p.isParameterSet(u.Type) {
			continue
		}
		if i != paramSets {
			return res, &ParseError{Kind: KindInvalidBitstream, Err: ErrParameterSetAfterSlice}
		}
		paramSets++
	}

	if paramSets > 0 {
		if res.Config, err = p.buildConfig(data, units[:paramSets]); err != nil {
			return res, err
		}
		if paramSets == len(units) {
			return res, nil
		}
	}

	slices := units[paramSets:]
	size := 0
	for _, u := range slices {
		size += u.Size - nal.StartCodeSize + nal.LengthSize
	}

	res.AccessUnit = buffer.Get(size)
	out := res.AccessUnit.Data()
	n := 0
	for _, u := range slices {
		payload := u.Payload(data)
		binary.BigEndian.PutUint32(out[n:], uint32(len(payload))) //nolint:gosec // bounded by packet size
		n += nal.LengthSize
		n += copy(out[n:], payload)
	}
	res.NALUs = len(slices)
	p.log.Tracef(p, "access unit: %d NALUs, %d bytes", res.NALUs, size)
	return res, nil
}

func (p *Parser) buildConfig(data []byte, units []nal.Unit) (mmstream.DecoderConfiguration, error) {
	sizes := make([]int, len(units))
	for i, u := range units {
		sizes[i] = u.Size
	}
	p.log.Debugf(p, "found %d parameter sets, sizes %v", len(units), sizes)

	if len(units) < 2 { //nolint:mnd
		return nil, &ParseError{Kind: KindInvalidBitstream, Err: ErrSingleParameterSet}
	}

	sets := make([][]byte, len(units))
	for i, u := range units {
		sets[i] = u.Payload(data)
	}
	cfg, err := p.newConfig(sets)
	if err != nil {
		var importErr *codec.ImportError
		if errors.As(err, &importErr) {
			return nil, &ParseError{Kind: KindImportFailed, Err: err}
		}
		return nil, &ParseError{Kind: KindInvalidBitstream, Err: err}
	}
	return cfg, nil
}

func (p *Parser) String() string {
	return fmt.Sprintf("ANNEXB_%v", p.codec)
}
