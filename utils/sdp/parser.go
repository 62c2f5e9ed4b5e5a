// Package sdp reads the media descriptions of a session description, the
// way an RTSP DESCRIBE answer announces the tracks of a capture.
package sdp

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"github.com/ugparu/mmstream"
)

var ErrNoMedia = errors.New("sdp: no media description")

const (
	payloadPCMU = 0
	payloadPCMA = 8

	g711Rate = 8000
)

// Media is one m= section. Codec is zero for codecs mmstream does not handle.
type Media struct {
	Kind          string // "audio" or "video"
	Codec         mmstream.CodecType
	PayloadType   int
	ClockRate     uint32
	Channels      int
	Control       string
	ParameterSets [][]byte // out-of-band VPS/SPS/PPS in decoding order
}

func (m *Media) Supported() bool {
	return m.Codec != 0
}

// parseMediaLine handles "video 0 RTP/AVP 96".
func parseMediaLine(val string) (*Media, bool) {
	fields := strings.Fields(val)
	if len(fields) < 4 || (fields[0] != "audio" && fields[0] != "video") { //nolint:mnd
		return nil, false
	}
	m := &Media{Kind: fields[0]}
	m.PayloadType, _ = strconv.Atoi(fields[3])

	switch m.PayloadType {
	case payloadPCMU:
		m.Codec, m.ClockRate, m.Channels = mmstream.PCMMulaw, g711Rate, 1
	case payloadPCMA:
		m.Codec, m.ClockRate, m.Channels = mmstream.PCMAlaw, g711Rate, 1
	}
	return m, true
}

// parseRtpmap handles "96 H264/90000" and "111 opus/48000/2".
func parseRtpmap(m *Media, val string) {
	pt, encoding, ok := strings.Cut(val, " ")
	if !ok {
		return
	}
	if n, err := strconv.Atoi(pt); err != nil || n != m.PayloadType {
		return
	}
	parts := strings.Split(strings.TrimSpace(encoding), "/")

	m.Codec = 0
	switch strings.ToUpper(parts[0]) {
	case "H264":
		m.Codec = mmstream.H264
	case "H265", "HEVC":
		m.Codec = mmstream.H265
	case "OPUS":
		m.Codec = mmstream.OPUS
	case "PCMA":
		m.Codec = mmstream.PCMAlaw
	case "PCMU":
		m.Codec = mmstream.PCMMulaw
	}
	if len(parts) > 1 {
		if rate, err := strconv.ParseUint(parts[1], 10, 32); err == nil {
			m.ClockRate = uint32(rate)
		}
	}
	if m.Kind == "audio" {
		m.Channels = 1
		if len(parts) > 2 { //nolint:mnd
			if n, err := strconv.Atoi(parts[2]); err == nil {
				m.Channels = n
			}
		}
	}
}

// parseFmtp handles "96 packetization-mode=1;sprop-parameter-sets=Z0IA,aM44".
func parseFmtp(m *Media, val string) {
	_, params, ok := strings.Cut(val, " ")
	if !ok {
		return
	}
	var vps, sps, pps [][]byte
	for _, p := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok {
			continue
		}
		switch key {
		case "sprop-parameter-sets":
			sps = append(sps, decodeSets(value)...)
		case "sprop-vps":
			vps = append(vps, decodeSets(value)...)
		case "sprop-sps":
			sps = append(sps, decodeSets(value)...)
		case "sprop-pps":
			pps = append(pps, decodeSets(value)...)
		}
	}
	sets := append(append(vps, sps...), pps...)
	if len(sets) > 0 {
		m.ParameterSets = sets
	}
}

func decodeSets(val string) [][]byte {
	var sets [][]byte
	for _, field := range strings.Split(val, ",") {
		if field == "" {
			continue
		}
		if b, err := base64.StdEncoding.DecodeString(field); err == nil && len(b) > 0 {
			sets = append(sets, b)
		}
	}
	return sets
}

// Parse returns the media descriptions in order of appearance. Attribute
// lines before the first m= line are ignored.
func Parse(content string) ([]Media, error) {
	var (
		medias []Media
		media  *Media
	)
	for _, line := range strings.Split(content, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "m":
			if m, valid := parseMediaLine(val); valid {
				medias = append(medias, *m)
				media = &medias[len(medias)-1]
			} else {
				media = nil
			}
		case "a":
			if media == nil {
				continue
			}
			name, attr, _ := strings.Cut(val, ":")
			switch name {
			case "rtpmap":
				parseRtpmap(media, attr)
			case "fmtp":
				parseFmtp(media, attr)
			case "control":
				media.Control = attr
			}
		}
	}
	if len(medias) == 0 {
		return nil, ErrNoMedia
	}
	return medias, nil
}
