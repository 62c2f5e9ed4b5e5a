package rtp

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func packet(ts uint32, marker bool, payload ...byte) *rtp.Packet {
	return &rtp.Packet{
		Header:  rtp.Header{Version: 2, Timestamp: ts, Marker: marker},
		Payload: payload,
	}
}

func push(t *testing.T, d depacketizer, pkts ...*rtp.Packet) []frame {
	t.Helper()
	var out []frame
	for _, p := range pkts {
		frames, err := d.Push(p)
		require.NoError(t, err)
		out = append(out, frames...)
	}
	return out
}

func TestH264Depacketizer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pkts []*rtp.Packet
		want []frame
	}{
		{
			name: "single nalu",
			pkts: []*rtp.Packet{packet(100, true, 0x65, 0x88, 0x84)},
			want: []frame{{data: []byte{0, 0, 1, 0x65, 0x88, 0x84}, timestamp: 100}},
		},
		{
			name: "stap-a followed by slice",
			pkts: []*rtp.Packet{
				packet(100, false, 0x18, 0x00, 0x04, 0x67, 0x42, 0x00, 0x1e, 0x00, 0x02, 0x68, 0xce),
				packet(100, true, 0x65, 0x88),
			},
			want: []frame{{
				data:      []byte{0, 0, 1, 0x67, 0x42, 0x00, 0x1e, 0, 0, 1, 0x68, 0xce, 0, 0, 1, 0x65, 0x88},
				timestamp: 100,
			}},
		},
		{
			name: "fu-a",
			pkts: []*rtp.Packet{
				packet(7, false, 0x7c, 0x85, 0x01, 0x02),
				packet(7, false, 0x7c, 0x05, 0x03),
				packet(7, true, 0x7c, 0x45, 0x04),
			},
			want: []frame{{data: []byte{0, 0, 1, 0x65, 0x01, 0x02, 0x03, 0x04}, timestamp: 7}},
		},
		{
			name: "delimiter dropped",
			pkts: []*rtp.Packet{packet(1, false, 0x09, 0xf0), packet(1, true, 0x41, 0x9a)},
			want: []frame{{data: []byte{0, 0, 1, 0x41, 0x9a}, timestamp: 1}},
		},
		{
			name: "timestamp change flushes without marker",
			pkts: []*rtp.Packet{packet(1, false, 0x41, 0x9a), packet(2, true, 0x41, 0x9b)},
			want: []frame{
				{data: []byte{0, 0, 1, 0x41, 0x9a}, timestamp: 1},
				{data: []byte{0, 0, 1, 0x41, 0x9b}, timestamp: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, push(t, newH264Depacketizer(), tt.pkts...))
		})
	}
}

func TestH264DepacketizerReset(t *testing.T) {
	t.Parallel()

	d := newH264Depacketizer()
	require.Empty(t, push(t, d, packet(1, false, 0x41, 0x9a)))
	d.Reset()
	require.Equal(t,
		[]frame{{data: []byte{0, 0, 1, 0x41, 0x9b}, timestamp: 2}},
		push(t, d, packet(2, true, 0x41, 0x9b)))
}

func TestH265Depacketizer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pkts []*rtp.Packet
		want []frame
	}{
		{
			name: "single nalu",
			pkts: []*rtp.Packet{packet(5, true, 0x26, 0x01, 0xaf)},
			want: []frame{{data: []byte{0, 0, 1, 0x26, 0x01, 0xaf}, timestamp: 5}},
		},
		{
			name: "aggregation packet",
			pkts: []*rtp.Packet{packet(5, true,
				0x60, 0x01,
				0x00, 0x03, 0x40, 0x01, 0x0c,
				0x00, 0x03, 0x42, 0x01, 0x01)},
			want: []frame{{data: []byte{0, 0, 1, 0x40, 0x01, 0x0c, 0, 0, 1, 0x42, 0x01, 0x01}, timestamp: 5}},
		},
		{
			name: "fragmentation unit",
			pkts: []*rtp.Packet{
				packet(9, false, 0x62, 0x01, 0x93, 0xaa, 0xbb),
				packet(9, false, 0x62, 0x01, 0x13, 0xcc),
				packet(9, true, 0x62, 0x01, 0x53, 0xdd),
			},
			want: []frame{{data: []byte{0, 0, 1, 0x26, 0x01, 0xaa, 0xbb, 0xcc, 0xdd}, timestamp: 9}},
		},
		{
			name: "fragment without start dropped",
			pkts: []*rtp.Packet{packet(9, true, 0x62, 0x01, 0x53, 0xdd)},
		},
		{
			name: "delimiter dropped",
			pkts: []*rtp.Packet{packet(3, false, 0x46, 0x01, 0x50), packet(3, true, 0x02, 0x01, 0xd0)},
			want: []frame{{data: []byte{0, 0, 1, 0x02, 0x01, 0xd0}, timestamp: 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, push(t, newH265Depacketizer(), tt.pkts...))
		})
	}
}

func TestH265DepacketizerErrors(t *testing.T) {
	t.Parallel()

	d := newH265Depacketizer()
	_, err := d.Push(packet(1, true, 0x26))
	require.ErrorIs(t, err, errShortPacket)

	_, err = d.Push(packet(1, true, 0x64, 0x01, 0x00))
	require.ErrorIs(t, err, errUnsupportedPacket)

	_, err = d.Push(packet(1, true, 0x60, 0x01, 0x00, 0x09, 0x40))
	require.ErrorIs(t, err, errShortPacket)
}

func TestH265DepacketizerResetDropsFragment(t *testing.T) {
	t.Parallel()

	d := newH265Depacketizer()
	require.Empty(t, push(t, d, packet(9, false, 0x62, 0x01, 0x93, 0xaa)))
	d.Reset()
	require.Empty(t, push(t, d, packet(9, true, 0x62, 0x01, 0x53, 0xdd)))
}

func TestAudioDepacketizer(t *testing.T) {
	t.Parallel()

	payload := []byte{0xd5, 0x55, 0xd5}
	p := packet(160, false, payload...)

	for _, opus := range []bool{false, true} {
		d := &audioDepacketizer{opus: opus}
		frames := push(t, d, p)
		require.Equal(t, []frame{{data: payload, timestamp: 160}}, frames)
		frames[0].data[0] = 0
		require.Equal(t, byte(0xd5), p.Payload[0])
	}

	require.Empty(t, push(t, &audioDepacketizer{}, packet(1, false)))
}
