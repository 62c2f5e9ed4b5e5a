// Command mmreplay replays an interleaved RTP capture through a stream
// session with a headless renderer and a clock-driven audio output.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
