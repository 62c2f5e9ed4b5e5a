// Package session binds one video track and one audio stream of an
// attachment together and drives them from a single goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/decoder"
	"github.com/ugparu/mmstream/format/annexb"
	"github.com/ugparu/mmstream/playout"
	"github.com/ugparu/mmstream/reader"
	"github.com/ugparu/mmstream/utils/lifecycle"
	"github.com/ugparu/mmstream/utils/logger"
)

const DefaultMailboxSize = 256

var ErrDetached = errors.New("session: detached")

// Renderer consumes decoder configurations and access units. Both calls are
// made from the session goroutine, a configuration always before the access
// units that depend on it. The renderer owns every AccessUnit it receives:
// it must Release the data and Resolve the completion exactly once.
type Renderer interface {
	ConfigurationChanged(cfg mmstream.DecoderConfiguration)
	AccessUnitReady(au *reader.AccessUnit)
}

// RefreshRequester asks the transport for a decoder refresh of a stream.
type RefreshRequester interface {
	RequestRefresh(streamSeq uint64)
}

// AudioPlayer plays decoded audio. *playout.Player implements it.
type AudioPlayer interface {
	reader.AudioSink
	Sync(pts uint64, measuredAt time.Time) bool
	Stats() playout.Stats
}

// StreamError ends an attachment.
type StreamError struct {
	StreamSeq uint64
	Err       error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %d: %v", e.StreamSeq, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

type Options struct {
	MailboxSize  int
	AudioFactory decoder.Factory
	Now          func() time.Time
}

type eventKind int

const (
	eventStart eventKind = iota
	eventPacket
	eventDropped
	eventFlush
)

type videoEvent struct {
	kind    eventKind
	seq     uint64
	params  mmstream.VideoStreamParams
	packet  mmstream.Packet
	dropped mmstream.DroppedPacket
	flushed chan struct{}
}

type audioEvent struct {
	kind    eventKind
	seq     uint64
	params  mmstream.AudioStreamParams
	packet  mmstream.Packet
	flushed chan struct{}
}

// Session routes packets of one attachment. Public methods only enqueue;
// all track and reader state lives in the session goroutine.
type Session struct {
	lifecycle.AsyncManager[*Session]
	renderer  Renderer
	refresher RefreshRequester
	player    AudioPlayer
	factory   decoder.Factory
	now       func() time.Time

	videoCh  chan videoEvent
	audioCh  chan audioEvent
	detached atomic.Bool

	video *reader.VideoStreamTrack
	audio *reader.AudioStreamReader

	stats counters
	log   *logger.Logger
}

func New(renderer Renderer, refresher RefreshRequester, player AudioPlayer, opts Options, log *logger.Logger) *Session {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultMailboxSize
	}
	if opts.AudioFactory == nil {
		opts.AudioFactory = reader.DefaultAudioFactory()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{
		renderer:  renderer,
		refresher: refresher,
		player:    player,
		factory:   opts.AudioFactory,
		now:       opts.Now,
		videoCh:   make(chan videoEvent, opts.MailboxSize),
		audioCh:   make(chan audioEvent, opts.MailboxSize),
		log:       log,
	}
	s.AsyncManager = lifecycle.NewAsyncManager(s, log)
	return s
}

// Attach starts the session goroutine.
func (s *Session) Attach() error {
	return s.Start(func(s *Session) error {
		s.log.Info(s, "Session attached")
		return nil
	})
}

// Detach stops routing at once, then stops the session goroutine and tears
// down audio playout.
func (s *Session) Detach() {
	s.detached.Store(true)
	s.Close()
}

func (s *Session) Detached() bool {
	return s.detached.Load()
}

func (s *Session) StartVideo(seq uint64, params mmstream.VideoStreamParams) error {
	return s.sendVideo(videoEvent{kind: eventStart, seq: seq, params: params})
}

func (s *Session) SubmitVideo(pkt mmstream.Packet) error {
	return s.sendVideo(videoEvent{kind: eventPacket, packet: pkt})
}

// DroppedVideo reports a video packet the transport gave up on.
func (s *Session) DroppedVideo(d mmstream.DroppedPacket) error {
	return s.sendVideo(videoEvent{kind: eventDropped, dropped: d})
}

func (s *Session) StartAudio(seq uint64, params mmstream.AudioStreamParams) error {
	return s.sendAudio(audioEvent{kind: eventStart, seq: seq, params: params})
}

func (s *Session) SubmitAudio(pkt mmstream.Packet) error {
	return s.sendAudio(audioEvent{kind: eventPacket, packet: pkt})
}

// Drain waits until every event queued before the call has been handled.
func (s *Session) Drain(ctx context.Context) error {
	video := make(chan struct{})
	audio := make(chan struct{})
	if err := s.sendVideo(videoEvent{kind: eventFlush, flushed: video}); err != nil {
		return err
	}
	if err := s.sendAudio(audioEvent{kind: eventFlush, flushed: audio}); err != nil {
		return err
	}
	for _, ch := range []chan struct{}{video, audio} {
		select {
		case <-ch:
		case <-s.Done():
			return ErrDetached
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Session) sendVideo(ev videoEvent) error {
	if s.detached.Load() {
		return ErrDetached
	}
	select {
	case s.videoCh <- ev:
		return nil
	case <-s.Done():
		return ErrDetached
	}
}

func (s *Session) sendAudio(ev audioEvent) error {
	if s.detached.Load() {
		return ErrDetached
	}
	select {
	case s.audioCh <- ev:
		return nil
	case <-s.Done():
		return ErrDetached
	}
}

func (s *Session) Step(stopCh <-chan struct{}) error {
	select {
	case <-stopCh:
		return &lifecycle.BreakError{}
	case ev := <-s.videoCh:
		if ev.kind == eventFlush {
			close(ev.flushed)
			return nil
		}
		if s.detached.Load() {
			return nil
		}
		return s.handleVideo(ev)
	case ev := <-s.audioCh:
		if ev.kind == eventFlush {
			close(ev.flushed)
			return nil
		}
		if s.detached.Load() {
			return nil
		}
		s.handleAudio(ev)
		return nil
	}
}

func (s *Session) handleVideo(ev videoEvent) error {
	switch ev.kind {
	case eventStart:
		return s.startVideo(ev.seq, ev.params)
	case eventPacket:
		return s.routeVideo(ev.packet)
	case eventDropped:
		s.handleDropped(ev.dropped)
	}
	return nil
}

func (s *Session) startVideo(seq uint64, params mmstream.VideoStreamParams) error {
	if s.video == nil || s.video.StreamSeq() != seq {
		s.video = reader.NewVideoStreamTrack(s.log)
	}
	if err := s.video.Start(seq, params); err != nil {
		return s.fail(seq, err)
	}
	s.stats.videoStreams.Add(1)
	return nil
}

func (s *Session) routeVideo(pkt mmstream.Packet) error {
	s.stats.videoPackets.Add(1)
	if s.video == nil || pkt.StreamSeq != s.video.StreamSeq() {
		s.stats.stalePackets.Add(1)
		return nil
	}

	pts := pkt.PTS
	action, err := s.video.SubmitPacket(pkt, func(presented bool) {
		if presented && !s.detached.Load() {
			s.player.Sync(pts, s.now())
		}
	})
	if err != nil {
		if annexb.IsFatal(err) {
			return s.fail(pkt.StreamSeq, err)
		}
		s.stats.parseErrors.Add(1)
		s.log.Warningf(s, "Dropping video packet pts=%d: %v", pkt.PTS, err)
		return nil
	}

	if action.Config != nil {
		s.stats.configChanges.Add(1)
		s.renderer.ConfigurationChanged(action.Config)
	}
	if action.Unit != nil {
		s.stats.accessUnits.Add(1)
		s.renderer.AccessUnitReady(action.Unit)
	}
	return nil
}

func (s *Session) handleDropped(d mmstream.DroppedPacket) {
	if d.Optional || s.video == nil || d.StreamSeq != s.video.StreamSeq() {
		return
	}
	s.stats.refreshes.Add(1)
	s.log.Debugf(s, "Requesting refresh of stream %d", d.StreamSeq)
	if s.refresher != nil {
		s.refresher.RequestRefresh(d.StreamSeq)
	}
}

func (s *Session) handleAudio(ev audioEvent) {
	switch ev.kind {
	case eventStart:
		s.stopAudio()
		r, err := reader.NewAudioStreamReader(ev.seq, ev.params, s.factory, s.player, s.log)
		if err != nil {
			s.stats.audioErrors.Add(1)
			return
		}
		s.audio = r
		s.stats.audioStreams.Add(1)
	case eventPacket:
		s.stats.audioPackets.Add(1)
		if s.audio == nil {
			s.stats.stalePackets.Add(1)
			return
		}
		accepted, err := s.audio.SubmitPacket(ev.packet)
		if err != nil {
			s.stats.audioErrors.Add(1)
			s.log.Warningf(s, "Dropping audio packet pts=%d: %v", ev.packet.PTS, err)
			return
		}
		if accepted {
			s.stats.audioFrames.Add(1)
		}
	}
}

func (s *Session) stopAudio() {
	if s.audio != nil {
		s.audio.Close()
		s.audio = nil
	}
}

// fail ends the attachment with a StreamError.
func (s *Session) fail(seq uint64, err error) error {
	s.detached.Store(true)
	s.log.Errorf(s, "Stream %d failed: %v", seq, err)
	s.stopAudio()
	return &StreamError{StreamSeq: seq, Err: err}
}

//nolint:revive // lifecycle hook
func (s *Session) Close_() {
	s.stopAudio()
	s.log.Info(s, "Session detached")
}

func (s *Session) String() string {
	return "SESSION"
}
