package mmstream

import "fmt"

// ChannelLayout represents the audio channel layout.
type ChannelLayout uint16

// String returns the human-readable string representation of a ChannelLayout.
func (ch ChannelLayout) String() string {
	return fmt.Sprintf("%dch", ch.Count())
}

// Constants representing specific audio channel layouts.
const (
	ChFrontCenter = ChannelLayout(1 << iota)
	ChFrontLeft
	ChFrontRight
	ChBackCenter
	ChBackLeft
	ChBackRight
	ChSideLeft
	ChSideRight
	ChLowFreq

	ChMono     = (ChFrontCenter)
	ChStereo   = (ChFrontLeft | ChFrontRight)
	ChSurround = (ChStereo | ChFrontCenter)
	Ch5P1      = (ChSurround | ChBackLeft | ChBackRight | ChLowFreq)
	Ch7P1      = (Ch5P1 | ChSideLeft | ChSideRight)
)

// Count returns the number of channels in the ChannelLayout.
func (ch ChannelLayout) Count() (n int) {
	for ch != 0 {
		n++
		ch = (ch - 1) & ch
	}
	return
}

// ChannelLayoutFromCount returns the conventional layout for a channel count,
// or zero for counts without one.
func ChannelLayoutFromCount(n int) ChannelLayout {
	switch n {
	case 1:
		return ChMono
	case 2: //nolint:mnd
		return ChStereo
	case 3: //nolint:mnd
		return ChSurround
	case 6: //nolint:mnd
		return Ch5P1
	case 8: //nolint:mnd
		return Ch7P1
	}
	return 0
}
