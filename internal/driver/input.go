package driver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Raikerian/go-voice-driver/pkg/audio"
)

// Metadata is what a Compose reports about its output stream before
// decoding has happened — today only the fields the Mixer/TrackQueue
// actually consume.
type Metadata struct {
	Duration time.Duration
}

// LiveStream is an owned byte stream a Compose has produced. CanSeek
// reports whether SeekToStart is meaningful; non-rewindable streams (e.g.
// a live HTTP body) return false and rely on Compose.Create being called
// again instead.
type LiveStream interface {
	io.ReadCloser
	CanSeek() bool
	SeekToStart() error
}

// Composer is the consumed collaborator that lazily produces a LiveStream.
// A retained Composer reference lets Input re-create the stream for
// loop/seek when the stream itself isn't rewindable.
type Composer interface {
	Create(ctx context.Context) (LiveStream, error)
	AuxMetadata(ctx context.Context) (Metadata, error)
}

// FrameDecoder yields one 20 ms stereo frame per call, already resampled
// to 48 kHz by the time it reaches the mixer (resampling itself is a
// non-goal of the core).
type FrameDecoder interface {
	// NextFrame decodes and advances past the next frame, returning
	// FrameValues interleaved f32 samples, or io.EOF.
	NextFrame() ([]float32, error)
	// IsNativeOpus reports whether the container permits frame extraction
	// without a decode/encode round trip, making this source eligible for
	// the Mixer's passthrough fast path.
	IsNativeOpus() bool
	// NextOpusFrame advances past and returns the next raw Opus payload.
	// Only valid when IsNativeOpus() is true; the mixer calls exactly one
	// of NextFrame or NextOpusFrame per tick, never both.
	NextOpusFrame() ([]byte, error)
	Close() error
}

// Probe is the consumed codec-registry collaborator: format probing plus
// codec selection, producing a decoder bound to one live stream.
type Probe func(ctx context.Context, stream LiveStream) (FrameDecoder, error)

type inputKind int

const (
	inputLazy inputKind = iota
	inputLive
)

// Input is the tagged union described in the design notes: one lazy
// composer, one live decoded stream, or (after promotion) both — the
// composer is retained for re-creation on loop/seek even once live.
type Input struct {
	kind    inputKind
	compose Composer
	live    LiveStream
	decoder FrameDecoder
}

// NewLazyInput wraps a Composer that has not yet produced bytes.
func NewLazyInput(c Composer) *Input {
	return &Input{kind: inputLazy, compose: c}
}

// NewLiveInput wraps an already-promoted stream/decoder pair, optionally
// retaining compose for later re-creation (nil if the source is
// non-reproducible, e.g. a one-shot pipe).
func NewLiveInput(stream LiveStream, decoder FrameDecoder, compose Composer) *Input {
	return &Input{kind: inputLive, compose: compose, live: stream, decoder: decoder}
}

// IsLive reports whether the input has already been promoted.
func (in *Input) IsLive() bool { return in.kind == inputLive }

// Promote drives a Lazy input through Compose.Create and Probe, producing
// a live decoder. A no-op if already live.
func (in *Input) Promote(ctx context.Context, probe Probe) error {
	if in.kind == inputLive {
		return nil
	}
	if in.compose == nil {
		return NewPlayError(PlayErrorCreate, fmt.Errorf("no composer to promote"))
	}

	stream, err := in.compose.Create(ctx)
	if err != nil {
		return NewPlayError(PlayErrorCreate, err)
	}

	decoder, err := probe(ctx, stream)
	if err != nil {
		_ = stream.Close()

		return NewPlayError(PlayErrorParse, err)
	}

	in.live = stream
	in.decoder = decoder
	in.kind = inputLive

	return nil
}

// NextFrame reads the next 20 ms frame from the live decoder.
func (in *Input) NextFrame() ([]float32, error) {
	if in.decoder == nil {
		return nil, io.EOF
	}
	frame, err := in.decoder.NextFrame()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}

		return nil, NewPlayError(PlayErrorDecode, err)
	}

	return frame, nil
}

// IsNativeOpus reports whether this input is eligible for passthrough.
func (in *Input) IsNativeOpus() bool {
	return in.decoder != nil && in.decoder.IsNativeOpus()
}

// NextOpusFrame advances the live decoder's passthrough accessor.
func (in *Input) NextOpusFrame() ([]byte, error) {
	if in.decoder == nil {
		return nil, io.EOF
	}
	frame, err := in.decoder.NextOpusFrame()
	if err != nil {
		return nil, NewPlayError(PlayErrorDecode, err)
	}

	return frame, nil
}

// CanSeek reports whether a re-promotion (loop or explicit seek to start)
// is supported by this input.
func (in *Input) CanSeek() bool {
	if in.kind == inputLive && in.live != nil && in.live.CanSeek() {
		return true
	}

	return in.compose != nil
}

// ResetForReplay closes the current live stream (if any) and drops back to
// Lazy so the next Promote re-creates it from the retained Composer. Used
// by loop_for and explicit seek-to-start.
func (in *Input) ResetForReplay() error {
	if !in.CanSeek() {
		return ErrSeekUnsupported
	}
	if in.kind == inputLive && in.live != nil {
		if in.live.CanSeek() {
			return in.live.SeekToStart()
		}
		_ = in.decoder.Close()
		_ = in.live.Close()
	}
	in.live = nil
	in.decoder = nil
	in.kind = inputLazy

	return nil
}

// Close releases the live stream and decoder, if any.
func (in *Input) Close() error {
	if in.decoder != nil {
		_ = in.decoder.Close()
	}
	if in.live != nil {
		return in.live.Close()
	}

	return nil
}

// AuxMetadata forwards to the retained composer, if any.
func (in *Input) AuxMetadata(ctx context.Context) (Metadata, bool) {
	if in.compose == nil {
		return Metadata{}, false
	}
	md, err := in.compose.AuxMetadata(ctx)
	if err != nil {
		return Metadata{}, false
	}

	return md, true
}

// rawPCMDecoder adapts an in-memory 48 kHz stereo f32 buffer (the
// equivalent of the upstream RawAdapter benchmark source) into a
// FrameDecoder. It never reports an Opus frame, so it always routes
// through the mix/encode path rather than passthrough.
type rawPCMDecoder struct {
	samples []float32 // interleaved, FrameValues-aligned chunks
	offset  int
}

// NewRawPCMDecoder builds a FrameDecoder over a pre-decoded interleaved f32
// buffer, useful for synthetic/test sources and for any Compose whose
// container already yields raw PCM.
func NewRawPCMDecoder(samples []float32) FrameDecoder {
	return &rawPCMDecoder{samples: samples}
}

func (r *rawPCMDecoder) NextFrame() ([]float32, error) {
	if r.offset >= len(r.samples) {
		return nil, io.EOF
	}
	end := r.offset + audio.FrameValues
	if end > len(r.samples) {
		end = len(r.samples)
	}
	frame := make([]float32, audio.FrameValues)
	copy(frame, r.samples[r.offset:end])
	r.offset = end

	return frame, nil
}

func (r *rawPCMDecoder) IsNativeOpus() bool             { return false }
func (r *rawPCMDecoder) NextOpusFrame() ([]byte, error) { return nil, io.EOF }
func (r *rawPCMDecoder) Close() error                   { return nil }
