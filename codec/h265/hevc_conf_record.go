package h265

import (
	"encoding/binary"
	"errors"
)

var ErrDecconfInvalid = errors.New("h265parser: HEVCDecoderConfRecord invalid")

// HEVCDecoderConfRecord represents the HEVC decoder configuration record (hvcC).
type HEVCDecoderConfRecord struct {
	// profile_tier_level of the SPS: profile space/tier/profile byte,
	// compatibility flags, constraint flags and level.
	GeneralProfile       uint8
	ProfileCompatibility uint32
	ConstraintIndicator  [6]byte
	GeneralLevelIDC      uint8
	ChromaFormat         uint8
	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8
	NumTemporalLayers    uint8
	TemporalIDNested     bool
	LengthSizeMinusOne   uint8
	VPS                  [][]byte
	SPS                  [][]byte
	PPS                  [][]byte
}

func (rec *HEVCDecoderConfRecord) arrays() []struct {
	typ  uint8
	sets [][]byte
} {
	return []struct {
		typ  uint8
		sets [][]byte
	}{
		{NalUnitVps, rec.VPS},
		{NalUnitSps, rec.SPS},
		{NalUnitPps, rec.PPS},
	}
}

// Len returns the size of the marshaled record.
func (rec *HEVCDecoderConfRecord) Len() (n int) {
	n = hvccHeaderSize
	for _, arr := range rec.arrays() {
		if len(arr.sets) == 0 {
			continue
		}
		n += 3
		for _, set := range arr.sets {
			n += lengthFieldSize + len(set)
		}
	}
	return
}

// Marshal writes the record into b, which must hold at least Len bytes.
func (rec *HEVCDecoderConfRecord) Marshal(b []byte) (n int) {
	b[0] = 1
	b[1] = rec.GeneralProfile
	binary.BigEndian.PutUint32(b[2:], rec.ProfileCompatibility)
	copy(b[6:12], rec.ConstraintIndicator[:])
	b[12] = rec.GeneralLevelIDC
	b[13] = 0xf0 // min_spatial_segmentation_idc = 0
	b[14] = 0x00
	b[15] = 0xfc // parallelismType = 0
	b[16] = 0xfc | rec.ChromaFormat
	b[17] = 0xf8 | rec.BitDepthLumaMinus8
	b[18] = 0xf8 | rec.BitDepthChromaMinus8
	b[19] = 0 // avgFrameRate
	b[20] = 0
	b[21] = (rec.NumTemporalLayers&0x07)<<3 | rec.LengthSizeMinusOne&0x03
	if rec.TemporalIDNested {
		b[21] |= 0x04
	}
	n = 23

	count := 0
	for _, arr := range rec.arrays() {
		if len(arr.sets) > 0 {
			count++
		}
	}
	b[22] = uint8(count) //nolint:gosec // at most 3 arrays

	for _, arr := range rec.arrays() {
		if len(arr.sets) == 0 {
			continue
		}
		b[n] = 0x80 | arr.typ                                      // array_completeness
		binary.BigEndian.PutUint16(b[n+1:], uint16(len(arr.sets))) //nolint:gosec // few sets per array
		n += 3
		for _, set := range arr.sets {
			binary.BigEndian.PutUint16(b[n:], uint16(len(set))) //nolint:gosec // parameter sets are far below 64KB
			n += lengthFieldSize
			n += copy(b[n:], set)
		}
	}
	return
}

// Unmarshal decodes an hvcC record and returns the number of bytes read.
func (rec *HEVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < hvccHeaderSize || b[0] != 1 {
		err = ErrDecconfInvalid
		return
	}
	rec.GeneralProfile = b[1]
	rec.ProfileCompatibility = binary.BigEndian.Uint32(b[2:])
	copy(rec.ConstraintIndicator[:], b[6:12])
	rec.GeneralLevelIDC = b[12]
	rec.ChromaFormat = b[16] & 0x03
	rec.BitDepthLumaMinus8 = b[17] & 0x07
	rec.BitDepthChromaMinus8 = b[18] & 0x07
	rec.NumTemporalLayers = (b[21] >> 3) & 0x07
	rec.TemporalIDNested = b[21]&0x04 != 0
	rec.LengthSizeMinusOne = b[21] & 0x03
	arrays := int(b[22])
	n = hvccHeaderSize

	for range arrays {
		if len(b) < n+3 {
			return n, ErrDecconfInvalid
		}
		typ := b[n] & 0x3f
		count := int(binary.BigEndian.Uint16(b[n+1:]))
		n += 3
		for range count {
			if len(b) < n+lengthFieldSize {
				return n, ErrDecconfInvalid
			}
			size := int(binary.BigEndian.Uint16(b[n:]))
			n += lengthFieldSize
			if len(b) < n+size {
				return n, ErrDecconfInvalid
			}
			set := b[n : n+size]
			n += size
			switch typ {
			case NalUnitVps:
				rec.VPS = append(rec.VPS, set)
			case NalUnitSps:
				rec.SPS = append(rec.SPS, set)
			case NalUnitPps:
				rec.PPS = append(rec.PPS, set)
			}
		}
	}
	return
}
