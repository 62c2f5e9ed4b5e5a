package h264

import (
	"encoding/binary"
	"errors"
)

var ErrDecconfInvalid = errors.New("h264parser: AVCDecoderConfRecord invalid")

// AVCDecoderConfRecord represents the AVC decoder configuration record (avcC).
type AVCDecoderConfRecord struct {
	AVCProfileIndication uint8    // Profile indication for the AVC stream.
	ProfileCompatibility uint8    // Profile compatibility for the AVC stream.
	AVCLevelIndication   uint8    // Level indication for the AVC stream.
	LengthSizeMinusOne   uint8    // Length size (in bytes) minus one of NALU prefixes.
	SPS                  [][]byte // Sequence Parameter Sets.
	PPS                  [][]byte // Picture Parameter Sets.

	// Present for high profiles only.
	ChromaFormat         uint8
	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8
	SPSExt               [][]byte
}

func (avc *AVCDecoderConfRecord) hasExtension() bool {
	return highProfiles[avc.AVCProfileIndication]
}

// Unmarshal decodes an avcC record and returns the number of bytes read.
func (avc *AVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	const minLength = 7
	if len(b) < minLength || b[0] != 1 {
		err = ErrDecconfInvalid
		return
	}

	avc.AVCProfileIndication = b[1]
	avc.ProfileCompatibility = b[2]
	avc.AVCLevelIndication = b[3]
	avc.LengthSizeMinusOne = b[4] & maskLengthSizeMinusOne
	n = 6

	if avc.SPS, n, err = readSets(b, n, int(b[5]&maskSPSCount)); err != nil {
		return
	}
	if len(b) < n+1 {
		err = ErrDecconfInvalid
		return
	}
	count := int(b[n])
	n++
	if avc.PPS, n, err = readSets(b, n, count); err != nil {
		return
	}

	if !avc.hasExtension() || len(b) < n+4 {
		return
	}
	avc.ChromaFormat = b[n] &^ maskChromaFormatInv
	avc.BitDepthLumaMinus8 = b[n+1] &^ maskBitDepthInv
	avc.BitDepthChromaMinus8 = b[n+2] &^ maskBitDepthInv
	count = int(b[n+3])
	n += 4
	avc.SPSExt, n, err = readSets(b, n, count)
	return
}

func readSets(b []byte, n, count int) (sets [][]byte, _ int, err error) {
	for range count {
		if len(b) < n+lengthFieldSize {
			return nil, n, ErrDecconfInvalid
		}
		size := int(binary.BigEndian.Uint16(b[n:]))
		n += lengthFieldSize

		if len(b) < n+size {
			return nil, n, ErrDecconfInvalid
		}
		sets = append(sets, b[n:n+size])
		n += size
	}
	return sets, n, nil
}

// Len returns the size of the marshaled record.
func (avc *AVCDecoderConfRecord) Len() (n int) {
	n = 7
	for _, sps := range avc.SPS {
		n += lengthFieldSize + len(sps)
	}
	for _, pps := range avc.PPS {
		n += lengthFieldSize + len(pps)
	}
	if avc.hasExtension() {
		n += 4
		for _, ext := range avc.SPSExt {
			n += lengthFieldSize + len(ext)
		}
	}
	return
}

// Marshal writes the record into b, which must hold at least Len bytes.
func (avc *AVCDecoderConfRecord) Marshal(b []byte) (n int) {
	b[0] = 1
	b[1] = avc.AVCProfileIndication
	b[2] = avc.ProfileCompatibility
	b[3] = avc.AVCLevelIndication
	b[4] = avc.LengthSizeMinusOne | maskLengthSizeMinusOneInv
	b[5] = uint8(len(avc.SPS)) | maskSPSCountInv //nolint:gosec // at most 31 sets
	n = 6
	n = writeSets(b, n, avc.SPS)

	b[n] = uint8(len(avc.PPS)) //nolint:gosec // at most 255 sets
	n++
	n = writeSets(b, n, avc.PPS)

	if avc.hasExtension() {
		b[n] = avc.ChromaFormat | maskChromaFormatInv
		b[n+1] = avc.BitDepthLumaMinus8 | maskBitDepthInv
		b[n+2] = avc.BitDepthChromaMinus8 | maskBitDepthInv
		b[n+3] = uint8(len(avc.SPSExt)) //nolint:gosec // at most 255 sets
		n += 4
		n = writeSets(b, n, avc.SPSExt)
	}
	return
}

func writeSets(b []byte, n int, sets [][]byte) int {
	for _, set := range sets {
		binary.BigEndian.PutUint16(b[n:], uint16(len(set))) //nolint:gosec // parameter sets are far below 64KB
		n += lengthFieldSize
		n += copy(b[n:], set)
	}
	return n
}
