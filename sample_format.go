package mmstream

// SampleFormat represents different audio sample formats.
type SampleFormat uint8

// Constants representing the audio sample formats handled by the playout path.
const (
	S16  = SampleFormat(iota + 1) // signed 16-bit integer, interleaved
	FLT                           // 32-bit float, interleaved
	FLTP                          // 32-bit float, planar
)

// BytesPerSample returns the number of bytes per audio sample for the given sample format.
func (sf SampleFormat) BytesPerSample() int {
	switch sf {
	case S16:
		return 2 //nolint:mnd
	case FLT, FLTP:
		return 4 //nolint:mnd
	default:
		return 0
	}
}

// String returns a human-readable string representation of the sample format.
func (sf SampleFormat) String() string {
	switch sf {
	case S16:
		return "S16"
	case FLT:
		return "FLT"
	case FLTP:
		return "FLTP"
	default:
		return "?"
	}
}

// IsPlanar checks if the sample format is in planar layout.
func (sf SampleFormat) IsPlanar() bool {
	return sf == FLTP
}
