package h265

import (
	"encoding/binary"
	"errors"
	"fmt"

	mch265 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/codec"
	"github.com/ugparu/mmstream/utils/nal"
)

var (
	ErrNoVPS = errors.New("h265parser: no VPS found in parameter sets")
	ErrNoSPS = errors.New("h265parser: no SPS found in parameter sets")
	ErrNoPPS = errors.New("h265parser: no PPS found in parameter sets")

	errShortSPS = errors.New("SPS too short for profile_tier_level")
)

// CodecParameters is an H.265 decoder configuration.
type CodecParameters struct {
	codec.BaseParameters
	RecordInfo HEVCDecoderConfRecord
	SPSInfo    mch265.SPS
	record     []byte
	sets       [][]byte
}

// NewCodecParameters builds a configuration from raw VPS, SPS and PPS NALUs
// (start codes stripped) in stream order.
func NewCodecParameters(sets [][]byte) (codecPar *CodecParameters, err error) {
	codecPar = &CodecParameters{
		BaseParameters: codec.BaseParameters{CodecType: mmstream.H265},
		sets:           codec.CloneSets(sets),
	}

	info := &codecPar.RecordInfo
	info.LengthSizeMinusOne = naluLengthSize - 1
	for _, set := range codecPar.sets {
		if len(set) == 0 {
			continue
		}
		switch nal.H265Type(set[0]) {
		case NalUnitVps:
			info.VPS = append(info.VPS, set)
		case NalUnitSps:
			info.SPS = append(info.SPS, set)
		case NalUnitPps:
			info.PPS = append(info.PPS, set)
		}
	}
	switch {
	case len(info.VPS) == 0:
		return nil, ErrNoVPS
	case len(info.SPS) == 0:
		return nil, ErrNoSPS
	case len(info.PPS) == 0:
		return nil, ErrNoPPS
	}

	if err = codecPar.SPSInfo.Unmarshal(info.SPS[0]); err != nil {
		return nil, fmt.Errorf("parse SPS failed(%w)", err)
	}
	if err = info.fillFromSPS(info.SPS[0]); err != nil {
		return nil, err
	}
	if err = codec.CheckPicture(mmstream.H265,
		codecPar.SPSInfo.Width(), codecPar.SPSInfo.Height(), codecPar.SPSInfo.ChromaFormatIdc); err != nil {
		return nil, err
	}
	info.ChromaFormat = uint8(codecPar.SPSInfo.ChromaFormatIdc)              //nolint:gosec // 2 bit field
	info.BitDepthLumaMinus8 = uint8(codecPar.SPSInfo.BitDepthLumaMinus8)     //nolint:gosec // 3 bit field
	info.BitDepthChromaMinus8 = uint8(codecPar.SPSInfo.BitDepthChromaMinus8) //nolint:gosec // 3 bit field

	codecPar.record = make([]byte, info.Len())
	info.Marshal(codecPar.record)
	return codecPar, nil
}

// fillFromSPS copies the byte aligned general profile_tier_level of the SPS.
func (rec *HEVCDecoderConfRecord) fillFromSPS(sps []byte) error {
	rbsp := nal.RBSP(sps[2:])
	if len(rbsp) < spsPTLOffset+spsPTLSize {
		return errShortSPS
	}
	layers := rbsp[spsLayersOffset]
	rec.NumTemporalLayers = (layers>>1)&0x07 + 1
	rec.TemporalIDNested = layers&0x01 != 0

	ptl := rbsp[spsPTLOffset:]
	rec.GeneralProfile = ptl[0]
	rec.ProfileCompatibility = binary.BigEndian.Uint32(ptl[1:])
	copy(rec.ConstraintIndicator[:], ptl[5:11])
	rec.GeneralLevelIDC = ptl[11]
	return nil
}

// NewCodecDataFromHEVCDecoderConfRecord builds a configuration from an hvcC record.
func NewCodecDataFromHEVCDecoderConfRecord(record []byte) (*CodecParameters, error) {
	var info HEVCDecoderConfRecord
	if _, err := info.Unmarshal(record); err != nil {
		return nil, err
	}
	sets := make([][]byte, 0, len(info.VPS)+len(info.SPS)+len(info.PPS))
	sets = append(sets, info.VPS...)
	sets = append(sets, info.SPS...)
	sets = append(sets, info.PPS...)
	return NewCodecParameters(sets)
}

func (par *CodecParameters) VPS() []byte {
	return par.RecordInfo.VPS[0]
}

func (par *CodecParameters) SPS() []byte {
	return par.RecordInfo.SPS[0]
}

func (par *CodecParameters) PPS() []byte {
	return par.RecordInfo.PPS[0]
}

func (par *CodecParameters) ParameterSets() [][]byte {
	return par.sets
}

// Record returns the marshaled hvcC record.
func (par *CodecParameters) Record() []byte {
	return par.record
}

func (par *CodecParameters) NALULengthSize() int {
	return int(par.RecordInfo.LengthSizeMinusOne) + 1
}

func (par *CodecParameters) Width() uint {
	return uint(par.SPSInfo.Width()) //nolint:gosec // checked positive on construction
}

func (par *CodecParameters) Height() uint {
	return uint(par.SPSInfo.Height()) //nolint:gosec // checked positive on construction
}

func (par *CodecParameters) Tag() string {
	tier := "L"
	if par.RecordInfo.GeneralProfile&0x20 != 0 {
		tier = "H"
	}
	return fmt.Sprintf("hvc1.%d.%X.%s%d",
		par.RecordInfo.GeneralProfile&0x1f, reverseBits(par.RecordInfo.ProfileCompatibility),
		tier, par.RecordInfo.GeneralLevelIDC)
}

func (par *CodecParameters) String() string {
	return fmt.Sprintf("H265 %s %dx%d", par.Tag(), par.Width(), par.Height())
}

func reverseBits(v uint32) (r uint32) {
	for range 32 {
		r = r<<1 | v&1
		v >>= 1
	}
	return
}
