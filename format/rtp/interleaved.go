package rtp

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pion/rtp"
)

const (
	interleavedMagic  = '$'
	interleavedHeader = 4
	rtpHeaderSize     = 12
	rtcpFirstType     = 192
	rtcpLastType      = 223
)

var ErrInvalidFrame = errors.New("rtp: invalid interleaved frame")

// InterleavedReader reads RTP packets framed as `$`, channel, 16-bit length,
// the way RTSP carries them over TCP. RTCP frames are skipped and garbage
// between frames is skipped up to the next `$`.
type InterleavedReader struct {
	rdr     *bufio.Reader
	buf     []byte
	skipped uint64
}

func NewInterleavedReader(r io.Reader) *InterleavedReader {
	return &InterleavedReader{rdr: bufio.NewReader(r)}
}

// ReadPacket returns the next RTP packet and its channel. io.EOF is returned
// at a clean end of input. The packet payload is only valid until the next call.
func (ir *InterleavedReader) ReadPacket() (uint8, *rtp.Packet, error) {
	for {
		if err := ir.sync(); err != nil {
			return 0, nil, err
		}
		var header [interleavedHeader - 1]byte
		if _, err := io.ReadFull(ir.rdr, header[:]); err != nil {
			return 0, nil, fmt.Errorf("%w: truncated header: %w", ErrInvalidFrame, err)
		}
		channel := header[0]
		length := int(binary.BigEndian.Uint16(header[1:]))

		if cap(ir.buf) < length {
			ir.buf = make([]byte, length)
		}
		ir.buf = ir.buf[:length]
		if _, err := io.ReadFull(ir.rdr, ir.buf); err != nil {
			return 0, nil, fmt.Errorf("%w: truncated payload: %w", ErrInvalidFrame, err)
		}
		if isRTCP(ir.buf) {
			continue
		}
		if length < rtpHeaderSize {
			return 0, nil, fmt.Errorf("%w: RTP incorrect packet size %d", ErrInvalidFrame, length)
		}

		pkt := new(rtp.Packet)
		if err := pkt.Unmarshal(ir.buf); err != nil {
			return channel, nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
		}
		return channel, pkt, nil
	}
}

// sync consumes input up to and including the next '$'.
func (ir *InterleavedReader) sync() error {
	for {
		b, err := ir.rdr.ReadByte()
		if err != nil {
			return err
		}
		if b == interleavedMagic {
			return nil
		}
		ir.skipped++
	}
}

// Skipped returns the number of bytes dropped while looking for frame starts.
func (ir *InterleavedReader) Skipped() uint64 {
	return ir.skipped
}

// isRTCP tells RTCP from RTP by the packet type byte, sender and receiver
// reports being 200 and 201.
func isRTCP(b []byte) bool {
	return len(b) > 1 && b[1] >= rtcpFirstType && b[1] <= rtcpLastType
}

// InterleavedWriter writes RTP packets in the framing InterleavedReader reads.
type InterleavedWriter struct {
	w io.Writer
}

func NewInterleavedWriter(w io.Writer) *InterleavedWriter {
	return &InterleavedWriter{w: w}
}

func (iw *InterleavedWriter) WritePacket(channel uint8, pkt *rtp.Packet) error {
	raw, err := pkt.Marshal()
	if err != nil {
		return err
	}
	if len(raw) > 0xFFFF {
		return fmt.Errorf("%w: packet of %d bytes", ErrInvalidFrame, len(raw))
	}
	header := []byte{interleavedMagic, channel, 0, 0}
	binary.BigEndian.PutUint16(header[2:], uint16(len(raw))) //nolint:gosec // checked above
	if _, err = iw.w.Write(header); err != nil {
		return err
	}
	_, err = iw.w.Write(raw)
	return err
}
