package main

import (
	"sync/atomic"

	"github.com/ugparu/mmstream"
	"github.com/ugparu/mmstream/codec/h264"
	"github.com/ugparu/mmstream/codec/h265"
	"github.com/ugparu/mmstream/reader"
	"github.com/ugparu/mmstream/utils/logger"
	"github.com/ugparu/mmstream/utils/nal"
)

// nullRenderer presents every access unit immediately without decoding it.
// Like a decoder it imports the avcC/hvcC record of every configuration and
// inspects the NALUs of every access unit.
type nullRenderer struct {
	codec mmstream.CodecType // session goroutine only

	configs      atomic.Uint64
	recordErrors atomic.Uint64
	units        atomic.Uint64
	keyFrames    atomic.Uint64
	resets       atomic.Uint64
	refreshes    atomic.Uint64
	bytes        atomic.Uint64
	log          *logger.Logger
}

func newNullRenderer(log *logger.Logger) *nullRenderer {
	return &nullRenderer{log: log}
}

func (r *nullRenderer) ConfigurationChanged(cfg mmstream.DecoderConfiguration) {
	r.configs.Add(1)
	r.codec = cfg.Type()

	var fps float64
	var err error
	switch r.codec {
	case mmstream.H264:
		var par *h264.CodecParameters
		if par, err = h264.NewCodecDataFromAVCDecoderConfRecord(cfg.Record()); err == nil {
			fps = par.FPS()
		}
	case mmstream.H265:
		_, err = h265.NewCodecDataFromHEVCDecoderConfRecord(cfg.Record())
	}
	if err != nil {
		r.recordErrors.Add(1)
		r.log.Errorf(r, "Decoder rejected configuration record %s: %v", cfg.Tag(), err)
		return
	}
	if fps > 0 {
		r.log.Infof(r, "Decoder configuration %s %dx%d@%.2f", cfg.Tag(), cfg.Width(), cfg.Height(), fps)
		return
	}
	r.log.Infof(r, "Decoder configuration %s %dx%d", cfg.Tag(), cfg.Width(), cfg.Height())
}

func (r *nullRenderer) AccessUnitReady(au *reader.AccessUnit) {
	defer au.Release()
	r.units.Add(1)
	if au.Data != nil {
		r.bytes.Add(uint64(au.Data.Len())) //nolint:gosec // lengths are never negative
		if r.keyFrame(au.Data.Data()) {
			r.keyFrames.Add(1)
			r.log.Tracef(r, "Key frame of stream %d at %d ms", au.StreamSeq, au.PTS)
		}
	}
	if au.ResetRequired {
		r.resets.Add(1)
		r.log.Debugf(r, "Decoder reset before stream %d unit at %d ms", au.StreamSeq, au.PTS)
	}
	au.Completion.Resolve(true)
}

func (r *nullRenderer) keyFrame(data []byte) bool {
	nalus, err := nal.SplitLengthPrefixed(data)
	if err != nil {
		r.log.Warningf(r, "Malformed access unit: %v", err)
		return false
	}
	for _, n := range nalus {
		if len(n) == 0 {
			continue
		}
		switch r.codec {
		case mmstream.H264:
			if h264.IsKeyFrame(nal.H264Type(n[0])) {
				return true
			}
		case mmstream.H265:
			if h265.IsKeyFrame(nal.H265Type(n[0])) {
				return true
			}
		}
	}
	return false
}

func (r *nullRenderer) RequestRefresh(streamSeq uint64) {
	r.refreshes.Add(1)
	r.log.Debugf(r, "Refresh requested for stream %d", streamSeq)
}

type rendererStats struct {
	Configurations uint64 `json:"configurations"`
	RecordErrors   uint64 `json:"record_errors"`
	AccessUnits    uint64 `json:"access_units"`
	KeyFrames      uint64 `json:"key_frames"`
	Resets         uint64 `json:"resets"`
	Refreshes      uint64 `json:"refreshes"`
	Bytes          uint64 `json:"bytes"`
}

func (r *nullRenderer) Stats() rendererStats {
	return rendererStats{
		Configurations: r.configs.Load(),
		RecordErrors:   r.recordErrors.Load(),
		AccessUnits:    r.units.Load(),
		KeyFrames:      r.keyFrames.Load(),
		Resets:         r.resets.Load(),
		Refreshes:      r.refreshes.Load(),
		Bytes:          r.bytes.Load(),
	}
}

func (r *nullRenderer) String() string {
	return "NULL_RENDERER"
}
