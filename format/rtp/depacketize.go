package rtp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/ugparu/mmstream/codec/h264"
	"github.com/ugparu/mmstream/codec/h265"
	"github.com/ugparu/mmstream/utils/nal"
)

var (
	errShortPacket       = errors.New("rtp: payload too short")
	errUnsupportedPacket = errors.New("rtp: unsupported payload structure")
)

// frame is one compressed unit recovered from RTP: an Annex-B access unit
// for video, one codec frame for audio. data is owned by the caller.
type frame struct {
	data      []byte
	timestamp uint32
}

type depacketizer interface {
	Push(pkt *rtp.Packet) ([]frame, error)
	// Reset drops partially assembled data after packet loss.
	Reset()
}

// auAssembler collects the NALUs sharing an RTP timestamp into one Annex-B
// access unit with 3-byte start codes.
type auAssembler struct {
	buf       []byte
	timestamp uint32
	open      bool
}

// begin flushes the pending access unit when ts starts a new one.
func (a *auAssembler) begin(ts uint32) []frame {
	var out []frame
	if a.open && ts != a.timestamp {
		out = a.flush()
	}
	a.timestamp = ts
	a.open = true
	return out
}

func (a *auAssembler) add(nalu []byte) {
	if len(nalu) == 0 {
		return
	}
	a.buf = append(a.buf, 0, 0, 1)
	a.buf = append(a.buf, nalu...)
}

func (a *auAssembler) flush() []frame {
	a.open = false
	if len(a.buf) == 0 {
		return nil
	}
	f := frame{data: a.buf, timestamp: a.timestamp}
	a.buf = nil
	return []frame{f}
}

func (a *auAssembler) drop() {
	a.buf = nil
	a.open = false
}

type h264Depacketizer struct {
	auAssembler
	pkt codecs.H264Packet
}

func newH264Depacketizer() *h264Depacketizer {
	return &h264Depacketizer{pkt: codecs.H264Packet{IsAVC: true}}
}

func (d *h264Depacketizer) Push(pkt *rtp.Packet) ([]frame, error) {
	frames := d.begin(pkt.Timestamp)
	out, err := d.pkt.Unmarshal(pkt.Payload)
	if err != nil {
		return frames, err
	}
	nalus, err := nal.SplitLengthPrefixed(out)
	if err != nil {
		return frames, err
	}
	for _, n := range nalus {
		if len(n) > 0 && nal.H264Type(n[0]) != h264.NaluAUD {
			d.add(n)
		}
	}
	if pkt.Marker {
		frames = append(frames, d.flush()...)
	}
	return frames, nil
}

func (d *h264Depacketizer) Reset() {
	d.drop()
	d.pkt = codecs.H264Packet{IsAVC: true}
}

type h265Depacketizer struct {
	auAssembler
	fu        []byte
	fuStarted bool
}

func newH265Depacketizer() *h265Depacketizer {
	return new(h265Depacketizer)
}

// nolint: mnd
func (d *h265Depacketizer) Push(pkt *rtp.Packet) ([]frame, error) {
	frames := d.begin(pkt.Timestamp)
	payload := pkt.Payload
	if len(payload) < 3 {
		return frames, errShortPacket
	}

	switch nal.H265Type(payload[0]) {
	case h265.NalUnitAP:
		b := payload[2:]
		for len(b) > 0 {
			if len(b) < 2 {
				return frames, errShortPacket
			}
			size := int(binary.BigEndian.Uint16(b))
			b = b[2:]
			if size > len(b) {
				return frames, errShortPacket
			}
			d.add(b[:size])
			b = b[size:]
		}
	case h265.NalUnitFU:
		fuHeader := payload[2]
		isStart := fuHeader&0x80 != 0
		isEnd := fuHeader&0x40 != 0
		fuType := fuHeader & 0x3f
		if isStart {
			d.fu = append(d.fu[:0], (payload[0]&0x81)|(fuType<<1), payload[1])
			d.fuStarted = true
		}
		if !d.fuStarted {
			return frames, nil
		}
		d.fu = append(d.fu, payload[3:]...)
		if isEnd {
			d.add(d.fu)
			d.fuStarted = false
		}
	case h265.NalUnitPACI:
		return frames, fmt.Errorf("%w: PACI", errUnsupportedPacket)
	case h265.NalUnitAccessUnitDelimiter:
	default:
		d.add(payload)
	}

	if pkt.Marker {
		frames = append(frames, d.flush()...)
	}
	return frames, nil
}

func (d *h265Depacketizer) Reset() {
	d.drop()
	d.fu = d.fu[:0]
	d.fuStarted = false
}

// audioDepacketizer returns every RTP payload as one frame.
type audioDepacketizer struct {
	opus bool
	pkt  codecs.OpusPacket
}

func (d *audioDepacketizer) Push(pkt *rtp.Packet) ([]frame, error) {
	payload := pkt.Payload
	if d.opus {
		var err error
		if payload, err = d.pkt.Unmarshal(payload); err != nil {
			return nil, err
		}
	}
	if len(payload) == 0 {
		return nil, nil
	}
	return []frame{{data: append([]byte(nil), payload...), timestamp: pkt.Timestamp}}, nil
}

func (d *audioDepacketizer) Reset() {}
