package driver

import "github.com/Raikerian/go-voice-driver/pkg/id"

// TrackHandle is the external, concurrency-safe reference to a track
// enrolled in a Mixer. Every method just composes and sends a
// ControlMessage; the actual state transition happens on the mixer
// goroutine when the message is drained, so a handle never blocks on
// anything but the queue itself filling up.
type TrackHandle struct {
	id   id.TrackID
	send func(ControlMessage)
}

// newTrackHandle wraps id with a sender bound to one Mixer's inbound
// queue. Unexported: handles are only produced by Mixer.AddTrack.
func newTrackHandle(trackID id.TrackID, send func(ControlMessage)) *TrackHandle {
	return &TrackHandle{id: trackID, send: send}
}

// ID returns the identity of the enrolled track.
func (h *TrackHandle) ID() id.TrackID { return h.id }

func (h *TrackHandle) dispatch(msg TrackControlMessage) {
	h.send(SetTrackStateMessage{Track: h.id, Message: msg})
}

// Play resumes or starts playback.
func (h *TrackHandle) Play() { h.dispatch(PlayTrack{}) }

// Pause suspends playback without releasing the underlying input.
func (h *TrackHandle) Pause() { h.dispatch(PauseTrack{}) }

// Stop ends playback and releases the underlying input.
func (h *TrackHandle) Stop() { h.dispatch(StopTrack{}) }

// SetVolume scales this track's contribution to the mix; 1.0 is unity.
func (h *TrackHandle) SetVolume(volume float32) { h.dispatch(SetVolume{Volume: volume}) }

// Seek requests playback resume from position (in 48 kHz stereo
// sample-pairs). The outcome is not reported back to the caller: a seek the
// track cannot perform (ErrSeekUnsupported, e.g. not yet Playable or an
// input that cannot be rewound) leaves the track unchanged.
func (h *TrackHandle) Seek(position uint64) { h.dispatch(SeekTrack{Position: position}) }

// LoopFor sets how many additional times the track restarts at EOF; a
// negative count loops indefinitely.
func (h *TrackHandle) LoopFor(count int) { h.dispatch(LoopTrack{Count: count}) }

// AddEvent registers handler to run off the mixer's hot path whenever kind
// fires for this track.
func (h *TrackHandle) AddEvent(class EventClass, kind EventKind, handler EventHandler) {
	h.dispatch(AddTrackEvent{Class: class, Kind: kind, Handler: handler})
}
