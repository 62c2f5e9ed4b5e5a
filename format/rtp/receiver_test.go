package rtp

import (
	"errors"
	"sync"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
	"github.com/ugparu/mmstream"
)

type videoStart struct {
	seq    uint64
	params mmstream.VideoStreamParams
}

type audioStart struct {
	seq    uint64
	params mmstream.AudioStreamParams
}

type fakeSink struct {
	mu          sync.Mutex
	videoStarts []videoStart
	audioStarts []audioStart
	video       []mmstream.Packet
	audio       []mmstream.Packet
	dropped     []mmstream.DroppedPacket
	err         error
}

func (s *fakeSink) StartVideo(seq uint64, params mmstream.VideoStreamParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoStarts = append(s.videoStarts, videoStart{seq, params})
	return s.err
}

func (s *fakeSink) SubmitVideo(pkt mmstream.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = append(s.video, pkt)
	return s.err
}

func (s *fakeSink) DroppedVideo(d mmstream.DroppedPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = append(s.dropped, d)
	return s.err
}

func (s *fakeSink) StartAudio(seq uint64, params mmstream.AudioStreamParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioStarts = append(s.audioStarts, audioStart{seq, params})
	return s.err
}

func (s *fakeSink) SubmitAudio(pkt mmstream.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, pkt)
	return s.err
}

func ssrcPacket(ssrc uint32, sn uint16, ts uint32, payload ...byte) *rtp.Packet {
	p := testPacket(sn, ts, payload...)
	p.SSRC = ssrc
	return p
}

func newVideoReceiver(t *testing.T, sink Sink) *Receiver {
	t.Helper()
	r := NewReceiver(sink, nil)
	require.NoError(t, r.AddTrack(TrackConfig{Channel: 0, Codec: mmstream.H264, ClockRate: 90000}))
	return r
}

func TestReceiverVideo(t *testing.T) {
	t.Parallel()

	sink := new(fakeSink)
	r := newVideoReceiver(t, sink)

	require.NoError(t, r.Handle(0, testPacket(10, 1000, 0x65, 0x88)))
	require.NoError(t, r.Handle(0, testPacket(11, 10000, 0x41, 0x9a)))

	require.Equal(t, []videoStart{{seq: 1, params: mmstream.VideoStreamParams{Codec: mmstream.H264}}}, sink.videoStarts)
	require.Equal(t, []mmstream.Packet{
		{StreamSeq: 1, PTS: 0, Data: []byte{0, 0, 1, 0x65, 0x88}},
		{StreamSeq: 1, PTS: 100, Data: []byte{0, 0, 1, 0x41, 0x9a}},
	}, sink.video)
	require.Equal(t, Stats{Packets: 2, Frames: 2, NewStreams: 1}, r.Stats())
	require.Equal(t, uint32(90000), r.ClockRate(0))
	require.Zero(t, r.ClockRate(5))
}

func TestReceiverSequenceGap(t *testing.T) {
	t.Parallel()

	sink := new(fakeSink)
	r := newVideoReceiver(t, sink)

	require.NoError(t, r.Handle(0, testPacket(10, 0, 0x65, 0x88)))
	require.NoError(t, r.Handle(0, testPacket(13, 3000, 0x41, 0x9a)))

	require.Equal(t, []mmstream.DroppedPacket{{StreamSeq: 1}}, sink.dropped)
	require.Len(t, sink.video, 2)
	require.Equal(t, uint64(2), r.Stats().Lost)
}

func TestReceiverLatePackets(t *testing.T) {
	t.Parallel()

	sink := new(fakeSink)
	r := newVideoReceiver(t, sink)

	require.NoError(t, r.Handle(0, testPacket(10, 0, 0x65, 0x88)))
	require.NoError(t, r.Handle(0, testPacket(10, 0, 0x65, 0x88)))
	require.NoError(t, r.Handle(0, testPacket(9, 0, 0x65, 0x88)))

	require.Len(t, sink.video, 1)
	require.Equal(t, uint64(2), r.Stats().Late)
	require.Empty(t, sink.dropped)
}

func TestReceiverSequenceWrap(t *testing.T) {
	t.Parallel()

	sink := new(fakeSink)
	r := newVideoReceiver(t, sink)

	require.NoError(t, r.Handle(0, testPacket(0xffff, 0, 0x65, 0x88)))
	require.NoError(t, r.Handle(0, testPacket(0, 3000, 0x41, 0x9a)))

	require.Len(t, sink.video, 2)
	require.Empty(t, sink.dropped)
	require.Zero(t, r.Stats().Late)
}

func TestReceiverSequenceJumpResyncs(t *testing.T) {
	t.Parallel()

	sink := new(fakeSink)
	r := NewReceiver(sink, nil)
	require.NoError(t, r.AddTrack(TrackConfig{Channel: 2, Codec: mmstream.PCMAlaw, ClockRate: 8000, Channels: 1}))

	require.NoError(t, r.Handle(2, testPacket(100, 0, 0xd5)))
	for i := range 50 {
		require.NoError(t, r.Handle(2, testPacket(uint16(40100+i), uint32(160*(i+1)), 0xd5)))
	}

	require.Len(t, sink.audio, 51)
	stats := r.Stats()
	require.Zero(t, stats.Late)
	require.Zero(t, stats.Lost)
	require.Equal(t, uint64(1), stats.Resyncs)
}

func TestReceiverBackwardJumpResyncs(t *testing.T) {
	t.Parallel()

	sink := new(fakeSink)
	r := newVideoReceiver(t, sink)

	require.NoError(t, r.Handle(0, testPacket(5000, 0, 0x65, 0x88)))
	require.NoError(t, r.Handle(0, testPacket(4950, 3000, 0x41, 0x9a)))
	require.NoError(t, r.Handle(0, testPacket(100, 6000, 0x41, 0x9b)))
	require.NoError(t, r.Handle(0, testPacket(101, 9000, 0x41, 0x9c)))

	require.Len(t, sink.video, 3)
	require.Equal(t, []mmstream.DroppedPacket{{StreamSeq: 1}}, sink.dropped)
	stats := r.Stats()
	require.Equal(t, uint64(1), stats.Late)
	require.Equal(t, uint64(1), stats.Resyncs)
	require.Len(t, sink.videoStarts, 1)
}

func TestReceiverSSRCChangeStartsNewStream(t *testing.T) {
	t.Parallel()

	sink := new(fakeSink)
	r := newVideoReceiver(t, sink)

	require.NoError(t, r.Handle(0, ssrcPacket(1, 10, 5000, 0x65, 0x88)))
	require.NoError(t, r.Handle(0, ssrcPacket(2, 500, 90000, 0x65, 0x88)))

	require.Len(t, sink.videoStarts, 2)
	require.Equal(t, uint64(2), sink.videoStarts[1].seq)
	require.Equal(t, uint64(2), sink.video[1].StreamSeq)
	require.Zero(t, sink.video[1].PTS)
	require.Empty(t, sink.dropped)
}

func TestReceiverDepacketizingError(t *testing.T) {
	t.Parallel()

	sink := new(fakeSink)
	r := NewReceiver(sink, nil)
	require.NoError(t, r.AddTrack(TrackConfig{Channel: 0, Codec: mmstream.H265, ClockRate: 90000}))

	require.NoError(t, r.Handle(0, testPacket(1, 0, 0x64, 0x01, 0x00)))
	require.Equal(t, []mmstream.DroppedPacket{{StreamSeq: 1}}, sink.dropped)
	require.Equal(t, uint64(1), r.Stats().Errors)
	require.Empty(t, sink.video)
}

func TestReceiverAudio(t *testing.T) {
	t.Parallel()

	sink := new(fakeSink)
	r := NewReceiver(sink, nil)
	require.NoError(t, r.AddTrack(TrackConfig{Channel: 2, Codec: mmstream.PCMAlaw, ClockRate: 8000, Channels: 1}))

	require.NoError(t, r.Handle(2, testPacket(1, 0xffffff00, 0xd5, 0xd5)))
	require.NoError(t, r.Handle(2, testPacket(3, 0x40, 0x55)))

	require.Equal(t, []audioStart{{seq: 1, params: mmstream.AudioStreamParams{
		Codec:      mmstream.PCMAlaw,
		SampleRate: 8000,
		Channels:   mmstream.ChMono,
	}}}, sink.audioStarts)
	require.Equal(t, []mmstream.Packet{
		{StreamSeq: 1, PTS: 0, Data: []byte{0xd5, 0xd5}},
		{StreamSeq: 1, PTS: 40, Data: []byte{0x55}},
	}, sink.audio)
	require.Empty(t, sink.dropped)
	require.Equal(t, uint64(1), r.Stats().Lost)
}

func TestReceiverAddTrack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  TrackConfig
	}{
		{name: "zero clock rate", cfg: TrackConfig{Codec: mmstream.H264}},
		{name: "audio without channels", cfg: TrackConfig{Codec: mmstream.OPUS, ClockRate: 48000}},
		{name: "unknown codec", cfg: TrackConfig{Codec: mmstream.CodecType(0), ClockRate: 90000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, NewReceiver(new(fakeSink), nil).AddTrack(tt.cfg), ErrInvalidTrack)
		})
	}

	r := newVideoReceiver(t, new(fakeSink))
	require.ErrorIs(t, r.AddTrack(TrackConfig{Channel: 0, Codec: mmstream.H265, ClockRate: 90000}), ErrInvalidTrack)
}

func TestReceiverErrors(t *testing.T) {
	t.Parallel()

	sinkErr := errors.New("detached")
	r := newVideoReceiver(t, &fakeSink{err: sinkErr})

	require.ErrorIs(t, r.Handle(3, testPacket(1, 0, 0x65)), ErrUnknownChannel)
	require.ErrorIs(t, r.Handle(0, testPacket(1, 0, 0x65)), sinkErr)
}

func TestTimestampUnwrap(t *testing.T) {
	t.Parallel()

	var u tsUnwrapper
	require.Zero(t, u.unwrap(0xfffffff0))
	require.Equal(t, uint64(0x20), u.unwrap(0x10))
	require.Equal(t, uint64(0x10), u.unwrap(0x00))
	require.Zero(t, u.unwrap(0xffff0000))
	u.reset()
	require.Zero(t, u.unwrap(5))
}

func TestReceiverOutOfBandParameterSets(t *testing.T) {
	t.Parallel()

	sink := new(fakeSink)
	r := NewReceiver(sink, nil)
	require.NoError(t, r.AddTrack(TrackConfig{
		Channel:       0,
		Codec:         mmstream.H264,
		ClockRate:     90000,
		ParameterSets: [][]byte{{0x67, 0x42}, {0x68, 0xce}},
	}))

	require.NoError(t, r.Handle(0, testPacket(1, 0, 0x65, 0x88)))
	require.NoError(t, r.Handle(0, ssrcPacket(9, 1, 0, 0x65, 0x88)))
	require.Equal(t, []mmstream.Packet{
		{StreamSeq: 1, Data: []byte{0, 0, 1, 0x67, 0x42, 0, 0, 1, 0x68, 0xce}},
		{StreamSeq: 1, Data: []byte{0, 0, 1, 0x65, 0x88}},
		{StreamSeq: 2, Data: []byte{0, 0, 1, 0x67, 0x42, 0, 0, 1, 0x68, 0xce}},
		{StreamSeq: 2, Data: []byte{0, 0, 1, 0x65, 0x88}},
	}, sink.video)
	require.Equal(t, uint64(2), r.Stats().Frames)

	err := r.AddTrack(TrackConfig{Channel: 1, Codec: mmstream.H264, ClockRate: 90000, ParameterSets: [][]byte{{0x67}}})
	require.ErrorIs(t, err, ErrInvalidTrack)
}
