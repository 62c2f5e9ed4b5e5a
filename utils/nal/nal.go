package nal

import (
	"encoding/binary"
	"errors"
)

// StartCodeSize is the size of the Annex-B start code replaced by a length prefix.
const StartCodeSize = 3

// LengthSize is the size of the big-endian length prefix written before every NALU.
const LengthSize = 4

// minTail is the number of bytes that must remain from a start code position
// for it to be recognised: the start code, the header byte and at least one more byte.
const minTail = 5

var errTruncated = errors.New("nal: length prefix exceeds buffer")

// Unit describes one NALU located inside a packet.
// Offset points at the first byte of the 0x000001 start code and Size
// includes the start code, so the payload is data[Offset+3 : Offset+Size].
type Unit struct {
	Offset int
	Size   int
	Type   uint8
}

// Payload returns the NALU bytes without the start code.
func (u Unit) Payload(data []byte) []byte {
	return data[u.Offset+StartCodeSize : u.Offset+u.Size]
}

// Classifier extracts the NALU type from the first header byte.
type Classifier func(header byte) uint8

// H264Type returns nal_unit_type of an H.264 NALU header.
func H264Type(header byte) uint8 {
	return header & 0x1F //nolint:mnd
}

// H265Type returns nal_unit_type of an H.265 NALU header.
func H265Type(header byte) uint8 {
	return (header & 0x7E) >> 1 //nolint:mnd
}

// NextStartCode returns the position of the next 0x000001 sequence at or
// after off, or -1. The position is only reported when at least two bytes
// follow the start code. Bytes that cannot be part of a start code are
// skipped up to three at a time.
func NextStartCode(data []byte, off int) int {
	if off < 0 {
		off = 0
	}
	for {
		switch {
		case len(data)-off < minTail:
			return -1
		case data[off+2] > 1:
			off += 3
		case data[off+1] > 0:
			off += 2
		case data[off] > 0 || data[off+2] != 1:
			off++
		default:
			return off
		}
	}
}

// Scan locates all start-code delimited NALUs in data. Each unit extends up to
// the next start code or to the end of the buffer.
func Scan(data []byte, classify Classifier) []Unit {
	var units []Unit
	search := 0
	for {
		off := NextStartCode(data, search)
		if off < 0 {
			break
		}
		if n := len(units); n > 0 {
			units[n-1].Size = off - units[n-1].Offset
		}
		units = append(units, Unit{
			Offset: off,
			Size:   len(data) - off,
			Type:   classify(data[off+StartCodeSize]),
		})
		search = off + StartCodeSize + 1
	}
	return units
}

// SplitLengthPrefixed splits a buffer of 4-byte big-endian length prefixed NALUs.
func SplitLengthPrefixed(b []byte) ([][]byte, error) {
	var nalus [][]byte
	for len(b) > 0 {
		if len(b) < LengthSize {
			return nil, errTruncated
		}
		size := binary.BigEndian.Uint32(b)
		b = b[LengthSize:]
		if uint64(size) > uint64(len(b)) {
			return nil, errTruncated
		}
		nalus = append(nalus, b[:size])
		b = b[size:]
	}
	return nalus, nil
}

// RBSP removes emulation prevention bytes (0x03 following 0x0000) from a NALU.
func RBSP(nalu []byte) []byte {
	out := make([]byte, 0, len(nalu))
	zeros := 0
	for _, b := range nalu {
		if zeros >= 2 && b == 3 { //nolint:mnd
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}
