package driver

import (
	"context"
	"sync"
	"time"

	"github.com/Raikerian/go-voice-driver/pkg/id"
)

// Queued is one entry in a TrackQueue: the enrolled handle plus the
// metadata needed to schedule its preload.
type Queued struct {
	Handle *TrackHandle
	Input  *Input
}

// TrackQueue is a FIFO of Queued tracks on top of a single Mixer, enforcing
// gapless serial playback: at most one track Plays at a time, and the head
// of the queue is always the currently playing (or about to play) track.
// The inner slice is guarded by a plain mutex held only for O(queue
// length) bookkeeping — never across Mixer.AddTrack or any other call that
// can suspend.
type TrackQueue struct {
	mu      sync.Mutex
	items   []Queued
	mixer   *Mixer
	probe   Probe
	preload time.Duration
}

// NewTrackQueue builds an empty queue bound to mixer. preloadLead is how
// long before a track's reported end the next track's preparation is
// triggered (SongPreloader); the design default is 5s before end.
func NewTrackQueue(mixer *Mixer, probe Probe, preloadLead time.Duration) *TrackQueue {
	return &TrackQueue{mixer: mixer, probe: probe, preload: preloadLead}
}

// Add enrolls input with the Mixer, appends it to the queue, and then wires
// the QueueHandler and SongPreloader event handlers onto its track. If the
// queue was empty, the new track is started immediately.
func (q *TrackQueue) Add(input *Input) *TrackHandle {
	handle := q.mixer.AddTrack(input)

	q.mu.Lock()
	shouldPlay := len(q.items) == 0
	q.items = append(q.items, Queued{Handle: handle, Input: input})
	q.mu.Unlock()

	handle.AddEvent(EventClassTrack, EventEnd, q.queueHandler(handle.ID()))
	handle.AddEvent(EventClassTrack, EventDelayed, q.songPreloader(handle.ID()))

	if shouldPlay {
		handle.Play()
	}

	return handle
}

// queueHandler implements the End-triggered advance: verify the ended
// track is still the head (guards against a user-driven ModifyQueue
// removing it first), pop it, and try to play the new head, skipping
// further on repeated failure until something plays or the queue empties.
func (q *TrackQueue) queueHandler(trackID id.TrackID) EventHandler {
	return func(ctx EventContext) (*TrackEvent, error) {
		q.mu.Lock()
		if len(q.items) == 0 || q.items[0].Handle.ID() != trackID {
			q.mu.Unlock()

			return nil, nil
		}
		q.items = q.items[1:]
		var next *TrackHandle
		if len(q.items) > 0 {
			next = q.items[0].Handle
		}
		q.mu.Unlock()

		if next != nil {
			next.Play()
		}

		return nil, nil
	}
}

// songPreloader implements the Delayed(duration-preloadLead) hook: when
// fired, it promotes the next queued track's input in the background so
// the transition to it is gapless. If metadata isn't available the caller
// never schedules Delayed in the first place (see ScheduleDelayed), so
// this handler only runs when a lead time was actually known.
func (q *TrackQueue) songPreloader(trackID id.TrackID) EventHandler {
	return func(ctx EventContext) (*TrackEvent, error) {
		q.mu.Lock()
		var next *Queued
		for i, item := range q.items {
			if item.Handle.ID() == trackID && i+1 < len(q.items) {
				n := q.items[i+1]
				next = &n
			}
		}
		q.mu.Unlock()

		if next == nil {
			return nil, nil
		}

		go func() {
			_ = next.Input.Promote(context.Background(), q.probe)
		}()

		return nil, nil
	}
}

// ScheduleDelayed fires the queue's Delayed handler for trackID at
// duration-preloadLead if the track reports metadata with a known
// duration longer than the lead time; skipped silently otherwise (§4.3:
// "if metadata is missing, preloading is skipped").
func (q *TrackQueue) ScheduleDelayed(t *Track) {
	md, ok := t.Metadata()
	if !ok || md.Duration <= q.preload {
		return
	}

	delay := md.Duration - q.preload
	trackID := t.ID
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		handlers := t.handlersFor(EventDelayed)
		q.mu.Unlock()

		for _, h := range handlers {
			q.mixer.events.Dispatch(trackID, TrackEvent{Track: trackID, Kind: EventDelayed}, h)
		}
	})
}

// Len reports the current queue length.
func (q *TrackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Remove drops the track identified by trackID from the queue without
// stopping it. Used by a user-driven reorder (ModifyQueue in the design
// notes); an End event that later fires for a removed head no longer
// matches the new head and is a no-op in queueHandler (S6).
func (q *TrackQueue) Remove(trackID id.TrackID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.Handle.ID() == trackID {
			q.items = append(q.items[:i], q.items[i+1:]...)

			return true
		}
	}

	return false
}
