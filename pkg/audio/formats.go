// Package audio holds the sample-format constants and PCM/Opus helpers
// shared by the driver's input pipeline and mixer.
package audio

import "time"

const (
	// SampleRate is the only rate the mixer core accepts; resampling is a
	// non-goal of the core and is expected to have happened upstream.
	SampleRate = 48_000 // Hz

	// Channels is the interleaved stereo channel count for every frame the
	// mixer touches.
	Channels = 2

	// FrameSamples is the number of stereo sample pairs in one 20 ms tick.
	FrameSamples = 960

	// FrameValues is the number of individual interleaved f32/int16 values
	// in one stereo frame (960 pairs * 2 channels).
	FrameValues = FrameSamples * Channels

	// FrameDuration is the fixed tick cadence of the mixer.
	FrameDuration = 20 * time.Millisecond

	// TimestampPerFrame is the RTP timestamp advance per emitted frame.
	TimestampPerFrame = uint32(FrameSamples)
)

// SilenceOpusFrame is the canonical 3-byte Opus "DTX" silence frame emitted
// during the keepalive tail.
var SilenceOpusFrame = []byte{0xF8, 0xFF, 0xFE}
