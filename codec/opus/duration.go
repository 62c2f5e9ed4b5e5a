package opus

import (
	"errors"
	"time"
)

var (
	errEmptyPacket   = errors.New("opus: empty packet")
	errInvalidPacket = errors.New("opus: invalid packet")
)

// PacketDuration returns the playback duration described by the TOC byte
// and, for code 3 packets, the frame count byte (RFC 6716, 3.1).
func PacketDuration(pkt []byte) (time.Duration, error) {
	if len(pkt) == 0 {
		return 0, errEmptyPacket
	}
	toc := pkt[0]
	var frames int
	switch toc & 0x03 { //nolint:mnd
	case 0:
		frames = 1
	case 1, 2: //nolint:mnd
		frames = 2
	default:
		if len(pkt) < 2 { //nolint:mnd
			return 0, errInvalidPacket
		}
		frames = int(pkt[1] & 0x3f) //nolint:mnd
	}
	return time.Duration(frames) * frameDuration(toc>>3), nil
}

var silkFrames = [4]time.Duration{
	10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 60 * time.Millisecond,
}

// frameDuration maps the TOC configuration number to the frame size of its mode.
func frameDuration(config byte) time.Duration {
	switch {
	case config < 12: // SILK
		return silkFrames[config%4]
	case config < 16: // Hybrid
		return 10 * time.Millisecond << (config % 2)
	default: // CELT
		return 2500 * time.Microsecond << (config % 4)
	}
}
