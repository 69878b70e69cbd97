package driver

import (
	"time"

	"github.com/Raikerian/go-voice-driver/pkg/id"
)

// EventClass distinguishes track-scoped events from a (currently unused)
// global scope; AddEvent on a Track only ever accepts the former.
type EventClass int

const (
	// EventClassTrack events are scoped to the track they were registered
	// on: Play, Pause, End, Loop, Delayed(d).
	EventClassTrack EventClass = iota
	// EventClassGlobal is accepted by the signature but rejected by
	// AddEvent with ErrInvalidTrackEvent; modelled explicitly so a caller
	// gets a typed error instead of a silent no-op.
	EventClassGlobal
)

// EventKind names the lifecycle point a TrackEvent fired at.
type EventKind int

const (
	EventPlay EventKind = iota
	EventPause
	EventEnd
	EventLoop
	EventDelayed
	EventPositionAdvanced
)

func (k EventKind) String() string {
	switch k {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventEnd:
		return "end"
	case EventLoop:
		return "loop"
	case EventDelayed:
		return "delayed"
	case EventPositionAdvanced:
		return "position_advanced"
	default:
		return "unknown"
	}
}

// TrackEvent is posted to the event sink off the mixer's hot path.
type TrackEvent struct {
	Track    id.TrackID
	Kind     EventKind
	Position uint64 // 48 kHz stereo sample-pair offset at time of event
	Err      error  // non-nil only for EventEnd triggered by a PlayError
}

// EventContext is the capability handed to an EventHandler: enough to
// decide whether to act without a back-edge to the queue or mixer.
type EventContext struct {
	Event TrackEvent
	Now   time.Time
}

// EventHandler is the capability model for a registered callback: it
// inspects the context and may return a follow-up event and an error;
// EventDispatcher discards both, so a handler acts only through its own
// side effects (e.g. QueueHandler popping the queue). Handlers that need
// shared state close over a cheap reference (an index, an atomic counter)
// rather than holding a pointer back into the queue or mixer.
type EventHandler func(ctx EventContext) (*TrackEvent, error)

// EventSink is the consumed collaborator interface posting events
// off the mixer's hot path (§6).
type EventSink interface {
	Post(track id.TrackID, event TrackEvent)
}

// EventDispatcher drains a buffered channel of TrackEvents on its own
// goroutine and runs each track's registered handlers, keeping the mixer
// loop itself free of handler-execution latency.
type EventDispatcher struct {
	incoming chan dispatchedEvent
	done     chan struct{}
}

type dispatchedEvent struct {
	track   id.TrackID
	event   TrackEvent
	handler EventHandler
}

// NewEventDispatcher starts the dispatch goroutine with the given channel
// capacity. Posting never waits for room: once capacity events are queued,
// further events are dropped (see Dispatch), since the poster is the
// mixer's own tick goroutine.
func NewEventDispatcher(capacity int) *EventDispatcher {
	d := &EventDispatcher{
		incoming: make(chan dispatchedEvent, capacity),
		done:     make(chan struct{}),
	}
	go d.run()

	return d
}

func (d *EventDispatcher) run() {
	for ev := range d.incoming {
		if ev.handler == nil {
			continue
		}
		_, _ = ev.handler(EventContext{Event: ev.event, Now: time.Now()})
	}
	close(d.done)
}

// Dispatch queues event ev for track t to run handler on the event
// goroutine. Non-blocking: if the queue is full the event is dropped and
// Dispatch reports false, rather than stalling the caller — which, for
// every call site in this package, is the Mixer's own tick goroutine.
func (d *EventDispatcher) Dispatch(t id.TrackID, event TrackEvent, handler EventHandler) bool {
	select {
	case d.incoming <- dispatchedEvent{track: t, event: event, handler: handler}:
		return true
	default:
		return false
	}
}

// Close stops accepting new events and waits for the goroutine to drain.
func (d *EventDispatcher) Close() {
	close(d.incoming)
	<-d.done
}
