package h264

import (
	"errors"
	"fmt"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/codec"
	"github.com/ugparu/mmstream/utils/nal"
)

var (
	ErrNoSPS = errors.New("h264parser: no SPS found in parameter sets")
	ErrNoPPS = errors.New("h264parser: no PPS found in parameter sets")
)

// CodecParameters is an H.264 decoder configuration.
type CodecParameters struct {
	codec.BaseParameters
	RecordInfo AVCDecoderConfRecord
	SPSInfo    mch264.SPS
	record     []byte
	sets       [][]byte
}

// NewCodecParameters builds a configuration from raw parameter set NALUs
// (SPS, PPS and SPS extension, start codes stripped) in stream order.
func NewCodecParameters(sets [][]byte) (codecPar *CodecParameters, err error) {
	codecPar = &CodecParameters{
		BaseParameters: codec.BaseParameters{CodecType: mmstream.H264},
		sets:           codec.CloneSets(sets),
	}

	info := &codecPar.RecordInfo
	info.LengthSizeMinusOne = naluLengthSize - 1
	for _, set := range codecPar.sets {
		if len(set) == 0 {
			continue
		}
		switch nal.H264Type(set[0]) {
		case NaluSPS:
			info.SPS = append(info.SPS, set)
		case NaluPPS:
			info.PPS = append(info.PPS, set)
		case NaluSPSExt:
			info.SPSExt = append(info.SPSExt, set)
		}
	}
	if len(info.SPS) == 0 {
		return nil, ErrNoSPS
	}
	if len(info.PPS) == 0 {
		return nil, ErrNoPPS
	}

	sps := info.SPS[0]
	if err = codecPar.SPSInfo.Unmarshal(sps); err != nil {
		return nil, fmt.Errorf("parse SPS failed(%w)", err)
	}
	if err = codec.CheckPicture(mmstream.H264,
		codecPar.SPSInfo.Width(), codecPar.SPSInfo.Height(), codecPar.SPSInfo.ChromaFormatIdc); err != nil {
		return nil, err
	}

	info.AVCProfileIndication = sps[1]
	info.ProfileCompatibility = sps[2]
	info.AVCLevelIndication = sps[3]
	info.ChromaFormat = uint8(codecPar.SPSInfo.ChromaFormatIdc)              //nolint:gosec // 2 bit field
	info.BitDepthLumaMinus8 = uint8(codecPar.SPSInfo.BitDepthLumaMinus8)     //nolint:gosec // 3 bit field
	info.BitDepthChromaMinus8 = uint8(codecPar.SPSInfo.BitDepthChromaMinus8) //nolint:gosec // 3 bit field

	codecPar.record = make([]byte, info.Len())
	info.Marshal(codecPar.record)
	return codecPar, nil
}

// NewCodecDataFromAVCDecoderConfRecord builds a configuration from an avcC record.
func NewCodecDataFromAVCDecoderConfRecord(record []byte) (*CodecParameters, error) {
	var info AVCDecoderConfRecord
	if _, err := info.Unmarshal(record); err != nil {
		return nil, err
	}
	sets := make([][]byte, 0, len(info.SPS)+len(info.PPS)+len(info.SPSExt))
	sets = append(sets, info.SPS...)
	sets = append(sets, info.PPS...)
	sets = append(sets, info.SPSExt...)
	return NewCodecParameters(sets)
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

// Record returns the marshaled avcC record.
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

func (par *CodecParameters) FPS() float64 {
	return par.SPSInfo.FPS()
}

func (par *CodecParameters) Tag() string {
	return fmt.Sprintf("avc1.%02X%02X%02X",
		par.RecordInfo.AVCProfileIndication, par.RecordInfo.ProfileCompatibility, par.RecordInfo.AVCLevelIndication)
}

func (par *CodecParameters) String() string {
	return fmt.Sprintf("H264 %s %dx%d", par.Tag(), par.Width(), par.Height())
}
