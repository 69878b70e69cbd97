package audio

import (
	"fmt"
	"sync"

	"layeh.com/gopus"
)

// Encoder wraps a gopus encoder fixed to the mixer's 48 kHz stereo format.
// A single Encoder is reused across ticks; it is not safe for concurrent
// use from more than one goroutine (the mixer owns it exclusively).
type Encoder struct {
	enc *gopus.Encoder
}

// NewEncoder builds an encoder tuned for voice at the given bitrate.
func NewEncoder(bitrateBps int) (*Encoder, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("new opus encoder: %w", err)
	}
	if bitrateBps > 0 {
		if err := enc.SetBitrate(bitrateBps); err != nil {
			return nil, fmt.Errorf("set bitrate: %w", err)
		}
	}

	return &Encoder{enc: enc}, nil
}

// SetBitrate changes the encoder's target bitrate for subsequent frames.
func (e *Encoder) SetBitrate(bitrateBps int) error {
	if err := e.enc.SetBitrate(bitrateBps); err != nil {
		return fmt.Errorf("set bitrate: %w", err)
	}

	return nil
}

// Encode compresses one 20 ms interleaved stereo PCM frame (FrameValues
// int16 samples) into an Opus payload.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != FrameValues {
		return nil, fmt.Errorf("opus encode: need %d samples, got %d", FrameValues, len(pcm))
	}
	out, err := e.enc.Encode(pcm, FrameSamples, FrameValues*2)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}

	return out, nil
}

// Decoder wraps a gopus decoder fixed to the mixer's 48 kHz stereo format.
// Decoders are per-track (each compressed input owns one), so unlike
// Encoder it carries its own mutex for safety if a track's handle is probed
// from another goroutine (e.g. metadata reads during promotion).
type Decoder struct {
	mu  sync.Mutex
	dec *gopus.Decoder
}

// NewDecoder builds a decoder for one compressed track's lifetime.
func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("new opus decoder: %w", err)
	}

	return &Decoder{dec: dec}, nil
}

// Decode expands one Opus packet into FrameValues interleaved int16
// samples. fec requests forward-error-concealment decoding of a dropped
// packet using the following one; the mixer core never sets it today but
// the knob is threaded through for a future loss-concealment path.
func (d *Decoder) Decode(opus []byte, fec bool) ([]int16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out, err := d.dec.Decode(opus, FrameSamples, fec)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}

	return out, nil
}
