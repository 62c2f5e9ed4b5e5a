package session

import (
	"sync/atomic"

	"github.com/ugparu/mmstream/playout"
)

type counters struct {
	videoStreams  atomic.Uint64
	videoPackets  atomic.Uint64
	accessUnits   atomic.Uint64
	configChanges atomic.Uint64
	parseErrors   atomic.Uint64
	stalePackets  atomic.Uint64
	refreshes     atomic.Uint64
	audioStreams  atomic.Uint64
	audioPackets  atomic.Uint64
	audioFrames   atomic.Uint64
	audioErrors   atomic.Uint64
}

// Stats is a snapshot of session counters.
type Stats struct {
	VideoStreams  uint64        `json:"video_streams"`
	VideoPackets  uint64        `json:"video_packets"`
	AccessUnits   uint64        `json:"access_units"`
	ConfigChanges uint64        `json:"config_changes"`
	ParseErrors   uint64        `json:"parse_errors"`
	StalePackets  uint64        `json:"stale_packets"`
	Refreshes     uint64        `json:"refreshes"`
	AudioStreams  uint64        `json:"audio_streams"`
	AudioPackets  uint64        `json:"audio_packets"`
	AudioFrames   uint64        `json:"audio_frames"`
	AudioErrors   uint64        `json:"audio_errors"`
	Playout       playout.Stats `json:"playout"`
}

// Stats may be called from any goroutine.
func (s *Session) Stats() Stats {
	return Stats{
		VideoStreams:  s.stats.videoStreams.Load(),
		VideoPackets:  s.stats.videoPackets.Load(),
		AccessUnits:   s.stats.accessUnits.Load(),
		ConfigChanges: s.stats.configChanges.Load(),
		ParseErrors:   s.stats.parseErrors.Load(),
		StalePackets:  s.stats.stalePackets.Load(),
		Refreshes:     s.stats.refreshes.Load(),
		AudioStreams:  s.stats.audioStreams.Load(),
		AudioPackets:  s.stats.audioPackets.Load(),
		AudioFrames:   s.stats.audioFrames.Load(),
		AudioErrors:   s.stats.audioErrors.Load(),
		Playout:       s.player.Stats(),
	}
}
