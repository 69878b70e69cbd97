package driver

import (
	"context"
	"io"
	"math"

	"github.com/Raikerian/go-voice-driver/pkg/audio"
	"github.com/Raikerian/go-voice-driver/pkg/id"
)

// ReadyState tracks how far a Track's input pipeline has advanced. It
// never regresses except via an explicit seek back through ResetForReplay.
type ReadyState int

const (
	ReadyUninitialised ReadyState = iota
	ReadyPreparing
	ReadyPlayable
)

func (s ReadyState) String() string {
	switch s {
	case ReadyUninitialised:
		return "uninitialised"
	case ReadyPreparing:
		return "preparing"
	case ReadyPlayable:
		return "playable"
	default:
		return "unknown"
	}
}

// PlayState is the orthogonal play axis: Play/Pause are reversible, Stop
// and End are terminal.
type PlayState int

const (
	PlayStatePlay PlayState = iota
	PlayStatePause
	PlayStateStop
	PlayStateEnd
)

func (s PlayState) String() string {
	switch s {
	case PlayStatePlay:
		return "play"
	case PlayStatePause:
		return "pause"
	case PlayStateStop:
		return "stop"
	case PlayStateEnd:
		return "end"
	default:
		return "unknown"
	}
}

func (s PlayState) Terminal() bool { return s == PlayStateStop || s == PlayStateEnd }

// LoopPolicy controls how many additional times a track restarts at EOF.
type LoopPolicy struct {
	Infinite  bool
	Remaining int // ignored when Infinite
}

// Track is one audio source's state machine. Once added to a Mixer it is
// owned exclusively by the mixer goroutine — all mutation happens via
// control messages drained at tick boundaries, so Track itself holds no
// lock.
type Track struct {
	ID id.TrackID

	input  *Input
	ready  ReadyState
	play   PlayState
	volume float32
	loop   LoopPolicy

	position uint64 // 48 kHz stereo sample-pair offset

	playRequested bool // Play() called while Uninitialised; latched until prepared
	handlers      map[EventKind][]EventHandler

	metadata    Metadata
	hasMetadata bool

	lastErr error // set by end(); non-nil only when the track ended abnormally
}

// NewTrack constructs a Track in Uninitialised/Stop state with volume 1.0
// and no loop.
func NewTrack(input *Input) *Track {
	return &Track{
		ID:       id.NewTrackID(),
		input:    input,
		ready:    ReadyUninitialised,
		play:     PlayStateStop,
		volume:   1.0,
		handlers: make(map[EventKind][]EventHandler),
	}
}

// Play requests playback. If the track hasn't been promoted yet this only
// latches the request; PreparePending drives the actual promotion.
func (t *Track) Play() error {
	if t.play.Terminal() {
		return ErrFinished
	}
	t.play = PlayStatePlay
	if t.ready == ReadyUninitialised {
		t.playRequested = true
	}

	return nil
}

// Pause may be requested in any non-terminal state and is latched until
// Play.
func (t *Track) Pause() error {
	if t.play.Terminal() {
		return ErrFinished
	}
	t.play = PlayStatePause

	return nil
}

// Stop forces the terminal state regardless of ready state and releases
// the input stream.
func (t *Track) Stop() {
	if t.play.Terminal() {
		return
	}
	t.play = PlayStateStop
	_ = t.input.Close()
}

// end transitions to End (idempotent), releasing the input stream. cause
// is nil for a clean EOF/loop-exhaustion end and is surfaced to the
// mixer's EventEnd TrackEvent via LastError.
func (t *Track) end(cause error) {
	if t.play == PlayStateEnd {
		return
	}
	t.play = PlayStateEnd
	t.lastErr = cause
	_ = t.input.Close()
}

// LastError returns the error that ended the track, if any.
func (t *Track) LastError() error { return t.lastErr }

// Ready returns the current ReadyState.
func (t *Track) Ready() ReadyState { return t.ready }

// PlayState returns the current PlayState.
func (t *Track) PlayState() PlayState { return t.play }

// Volume returns the current per-sample multiplier.
func (t *Track) Volume() float32 { return t.volume }

// Position returns the current playback offset in 48 kHz stereo
// sample-pairs.
func (t *Track) Position() uint64 { return t.position }

// SetVolume rejects NaN and negative values; accepted in any non-terminal
// state.
func (t *Track) SetVolume(v float32) error {
	if math.IsNaN(float64(v)) || v < 0 {
		return ErrInvalidVolume
	}
	t.volume = v

	return nil
}

// LoopFor sets the loop policy; n < 0 means Infinite.
func (t *Track) LoopFor(n int) {
	if n < 0 {
		t.loop = LoopPolicy{Infinite: true}

		return
	}
	t.loop = LoopPolicy{Remaining: n}
}

// Seek is only valid when Playable and the input supports it. It re-primes
// the input from the start and discards whole frames up to pos, so playback
// resumes at the start of the frame containing pos (or at the end of the
// input if pos lies beyond it).
func (t *Track) Seek(ctx context.Context, pos uint64, probe Probe) error {
	if t.ready != ReadyPlayable {
		return ErrSeekUnsupported
	}
	if !t.input.CanSeek() {
		return ErrSeekUnsupported
	}
	if err := t.input.ResetForReplay(); err != nil {
		return err
	}
	if err := t.input.Promote(ctx, probe); err != nil {
		t.end(err)

		return err
	}
	var skipped uint64
	for skipped+audio.FrameSamples <= pos {
		if _, err := t.input.NextFrame(); err != nil {
			if err == io.EOF {
				break
			}
			t.end(err)

			return err
		}
		skipped += audio.FrameSamples
	}
	t.position = skipped

	return nil
}

// AddEvent registers handler for a track-scoped event kind. Global-scope
// registration is rejected with ErrInvalidTrackEvent.
func (t *Track) AddEvent(class EventClass, kind EventKind, handler EventHandler) error {
	if class != EventClassTrack {
		return ErrInvalidTrackEvent
	}
	t.handlers[kind] = append(t.handlers[kind], handler)

	return nil
}

// handlersFor returns the registered handlers for kind, if any.
func (t *Track) handlersFor(kind EventKind) []EventHandler {
	return t.handlers[kind]
}

// IsMixable reports whether this track should contribute to the current
// tick's mix.
func (t *Track) IsMixable() bool {
	return t.play == PlayStatePlay && t.ready == ReadyPlayable
}

// PreparePending reports whether this track needs a background
// preparation goroutine spawned (Play was requested while Uninitialised
// and none is in flight yet).
func (t *Track) PreparePending() bool {
	return t.playRequested && t.ready == ReadyUninitialised
}

// BeginPreparing marks the track Preparing so the mixer's preload budget
// accounts for it.
func (t *Track) BeginPreparing() {
	t.ready = ReadyPreparing
}

// FinishPreparing transitions Preparing -> Playable (ok) or -> End (!ok),
// capturing metadata when available.
func (t *Track) FinishPreparing(ctx context.Context, ok bool, err error) {
	if !ok {
		t.end(err)

		return
	}
	t.ready = ReadyPlayable
	if md, has := t.input.AuxMetadata(ctx); has {
		t.metadata = md
		t.hasMetadata = true
	}
}

// Metadata returns the track's reported duration, if known.
func (t *Track) Metadata() (Metadata, bool) {
	return t.metadata, t.hasMetadata
}

// NextMixFrame advances the track by one 20 ms tick for the mix path. It
// returns the frame to sum into the accumulator, whether the track ended
// this tick, and whether it looped back to start this tick. A Paused
// track contributes silence and does not advance position.
func (t *Track) NextMixFrame(ctx context.Context, probe Probe) (frame []float32, ended, looped bool) {
	if t.play == PlayStatePause {
		return make([]float32, audio.FrameValues), false, false
	}

	f, err := t.input.NextFrame()
	switch {
	case err == nil:
		t.position += audio.FrameSamples

		return f, false, false
	case err == io.EOF || isPlayErrorEOF(err):
		return t.handleEOF(ctx, probe)
	default:
		t.end(err)

		return make([]float32, audio.FrameValues), true, false
	}
}

func isPlayErrorEOF(err error) bool {
	pe, ok := err.(*PlayError)

	return ok && pe.Cause == io.EOF
}

func (t *Track) handleEOF(ctx context.Context, probe Probe) (frame []float32, ended, looped bool) {
	if !t.loop.Infinite && t.loop.Remaining <= 0 {
		t.end(nil)

		return make([]float32, audio.FrameValues), true, false
	}
	if !t.loop.Infinite {
		t.loop.Remaining--
	}
	if err := t.input.ResetForReplay(); err != nil {
		t.end(err)

		return make([]float32, audio.FrameValues), true, false
	}
	if err := t.input.Promote(ctx, probe); err != nil {
		t.end(err)

		return make([]float32, audio.FrameValues), true, false
	}
	t.position = 0

	return make([]float32, audio.FrameValues), false, true
}

// TryPassthroughFrame returns the next raw Opus frame when this track is
// eligible for the Mixer's passthrough path.
func (t *Track) TryPassthroughFrame() ([]byte, bool) {
	if t.play != PlayStatePlay || !t.input.IsNativeOpus() {
		return nil, false
	}
	raw, err := t.input.NextOpusFrame()
	if err != nil {
		return nil, false
	}
	t.position += audio.FrameSamples

	return raw, true
}
