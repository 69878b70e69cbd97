package driver

import (
	"github.com/Raikerian/go-voice-driver/pkg/id"
)

// ControlMessage is the sealed set of commands the Mixer goroutine accepts
// on its inbound queue. Every mutation to a Track or the Mixer's own
// connection/config state flows through one of these — nothing reaches
// into Mixer or Track state from another goroutine directly.
type ControlMessage interface {
	isControlMessage()
}

// AddTrackMessage enrolls a new Track, optionally already playing.
type AddTrackMessage struct {
	Track *Track
}

// SetTrackMessage replaces the track set with exactly one track (or none),
// stopping whatever was previously enrolled. Mirrors the upstream
// set_track convenience used by simple single-track playback call sites.
type SetTrackMessage struct {
	Track *Track // nil clears the mixer
}

// SetConfigMessage swaps the Mixer's tunable Config wholesale.
type SetConfigMessage struct {
	Config Config
}

// SetConnMessage supplies (or clears, when Conn is nil) the active UDP
// destination, cipher key, and SSRC for outbound packets.
type SetConnMessage struct {
	Conn *ConnectionDescriptor
}

// ConnectionDescriptor bundles everything the Mixer needs to encrypt and
// send outbound RTP packets for one voice session. Sink is the already-
// dialed transport; establishing and tearing down the underlying UDP
// socket is the owning driver session's job, not the Mixer's.
type ConnectionDescriptor struct {
	Sink UDPSink
	Key  [32]byte
	SSRC uint32
	Mode CryptoMode
}

// SetBitrateMessage changes the Opus encoder's target bitrate.
type SetBitrateMessage struct {
	Bitrate Bitrate
}

// RebuildInterconnectMessage asks the Mixer to replace its Events sink,
// used when a voice connection is re-established with a fresh dispatcher.
type RebuildInterconnectMessage struct {
	Events *EventDispatcher
}

// PingMessage asks the Mixer to report liveness on reply (a channel the
// caller owns and reads exactly once).
type PingMessage struct {
	Reply chan<- struct{}
}

// PoisonMessage asks the Mixer's Run loop to exit after draining the
// current queue, releasing all tracks.
type PoisonMessage struct{}

func (AddTrackMessage) isControlMessage()           {}
func (SetTrackMessage) isControlMessage()           {}
func (SetConfigMessage) isControlMessage()          {}
func (SetConnMessage) isControlMessage()            {}
func (SetBitrateMessage) isControlMessage()         {}
func (RebuildInterconnectMessage) isControlMessage() {}
func (PingMessage) isControlMessage()               {}
func (PoisonMessage) isControlMessage()             {}

// TrackControlMessage is the per-track analogue of ControlMessage, carried
// inside a SetTrackStateMessage and applied to exactly one enrolled track.
type TrackControlMessage interface {
	isTrackControlMessage()
}

type PlayTrack struct{}
type PauseTrack struct{}
type StopTrack struct{}
type SetVolume struct{ Volume float32 }
type SeekTrack struct{ Position uint64 }
type LoopTrack struct{ Count int } // < 0 == infinite
type AddTrackEvent struct {
	Class   EventClass
	Kind    EventKind
	Handler EventHandler
}

func (PlayTrack) isTrackControlMessage()     {}
func (PauseTrack) isTrackControlMessage()    {}
func (StopTrack) isTrackControlMessage()     {}
func (SetVolume) isTrackControlMessage()     {}
func (SeekTrack) isTrackControlMessage()     {}
func (LoopTrack) isTrackControlMessage()     {}
func (AddTrackEvent) isTrackControlMessage() {}

// SetTrackStateMessage applies a TrackControlMessage to the enrolled track
// identified by Track, via a TrackHandle.
type SetTrackStateMessage struct {
	Track   id.TrackID
	Message TrackControlMessage
}

func (SetTrackStateMessage) isControlMessage() {}

// Interconnect bundles the three channel seams described for the driver:
// Mixer accepts ControlMessage, Events carries fired TrackEvents off the
// hot path, and Core carries session-lifecycle signals (e.g.
// ConnectionLost) that the Mixer posts for the owning session.
type Interconnect struct {
	Mixer  chan ControlMessage
	Events *EventDispatcher
	Core   chan CoreMessage
}

// CoreMessage is the sealed set of session-lifecycle signals unrelated to
// audio mixing (e.g. a voice gateway reconnect), posted by the Mixer for
// the owning session to observe.
type CoreMessage interface {
	isCoreMessage()
}

// ConnectionLost is posted when the Mixer observes a send failure severe
// enough that the session should attempt to re-establish its connection.
type ConnectionLost struct{ Cause error }

func (ConnectionLost) isCoreMessage() {}

// NewInterconnect builds an Interconnect with the given Mixer queue
// capacity; the queue approximates the upstream's unbounded control
// channel closely enough for a producer that is expected to issue at most
// a handful of commands per tick; RebuildInterconnect exists precisely to
// let the Mixer replace Events when it would otherwise be full.
func NewInterconnect(mixerCapacity, coreCapacity, eventCapacity int) *Interconnect {
	return &Interconnect{
		Mixer:  make(chan ControlMessage, mixerCapacity),
		Events: NewEventDispatcher(eventCapacity),
		Core:   make(chan CoreMessage, coreCapacity),
	}
}
