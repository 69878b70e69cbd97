package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-driver/internal/driver"
	"github.com/Raikerian/go-voice-driver/pkg/audio"
	"github.com/Raikerian/go-voice-driver/pkg/id"
)

func queueTestConfig() driver.Config {
	return driver.Config{
		PreloadCount:            8,
		CryptoMode:              driver.CryptoModeNormal,
		MixAndStopSilentPackets: true,
		UseSoftclip:             true,
		Bitrate:                 driver.BitsPerSecond(64000),
	}
}

func newQueueHarness(t testing.TB) (*driver.Mixer, *driver.TrackQueue) {
	t.Helper()
	ic := driver.NewInterconnect(64, 16, 64)
	m, err := driver.NewMixer(queueTestConfig(), genericProbe, ic, zap.NewNop())
	require.NoError(t, err)
	q := driver.NewTrackQueue(m, genericProbe, 5*time.Second)

	return m, q
}

// waitForPlayState ticks m until trackID reports the given PlayState, or
// fails the test after a generous deadline. Needed because enrollment,
// preparation, and the queue's End->advance handoff all cross the event
// dispatcher's own goroutine asynchronously with respect to the test.
func waitForPlayState(t testing.TB, m *driver.Mixer, ctx context.Context, trackID id.TrackID, want driver.PlayState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		m.Tick(ctx)
		if _, play, ok := m.TrackState(trackID); ok && play == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("track %s never reached play state %v", trackID, want)
		}
		time.Sleep(time.Millisecond)
	}
}

// waitForAbsent ticks m until trackID is no longer enrolled (culled after
// ending), or fails after a deadline.
func waitForAbsent(t testing.TB, m *driver.Mixer, ctx context.Context, trackID id.TrackID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		m.Tick(ctx)
		if _, _, ok := m.TrackState(trackID); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("track %s was never culled", trackID)
		}
		time.Sleep(time.Millisecond)
	}
}

func oneFrame() []float32 {
	return make([]float32, audio.FrameValues)
}

// TestTrackQueue_GaplessAdvance covers S5: the first Add plays immediately,
// the second is enrolled but left Stopped; when the first track ends, its
// QueueHandler pops it and plays the new head.
func TestTrackQueue_GaplessAdvance(t *testing.T) {
	ctx := context.Background()
	m, q := newQueueHarness(t)

	h1 := q.Add(pcmInput(oneFrame()))
	h2 := q.Add(pcmInput(oneFrame()))

	assert.Equal(t, 2, q.Len())

	// h1 was head-of-queue on an empty queue, so Add already issued Play.
	waitForPlayState(t, m, ctx, h1.ID(), driver.PlayStatePlay)

	// h2 sits idle behind it.
	_, play, ok := m.TrackState(h2.ID())
	require.True(t, ok)
	assert.Equal(t, driver.PlayStateStop, play)

	// h1 has exactly one buffered frame: one more tick consumes it, the
	// next observes EOF and ends the track, firing EventEnd -> QueueHandler.
	waitForAbsent(t, m, ctx, h1.ID())
	waitForPlayState(t, m, ctx, h2.ID(), driver.PlayStatePlay)

	assert.Equal(t, 1, q.Len())
}

// TestTrackQueue_RemoveNonHead_HeadEndSkipsRemoved: removing a queued track
// that is not the current head takes it out of the advance order, so when
// the head ends the queue advances to the next remaining track, and a
// second Remove of the same id reports false.
func TestTrackQueue_RemoveNonHead_HeadEndSkipsRemoved(t *testing.T) {
	ctx := context.Background()
	m, q := newQueueHarness(t)

	h1 := q.Add(pcmInput(oneFrame()))
	h2 := q.Add(pcmInput(oneFrame()))
	h3 := q.Add(pcmInput(oneFrame()))

	waitForPlayState(t, m, ctx, h1.ID(), driver.PlayStatePlay)

	// Reorder: drop h2 from the queue entirely while h1 is still playing.
	require.True(t, q.Remove(h2.ID()))
	assert.Equal(t, 2, q.Len())

	// h1 ends; queueHandler pops it and advances to the new head, h3 -
	// never to the removed h2.
	waitForAbsent(t, m, ctx, h1.ID())
	waitForPlayState(t, m, ctx, h3.ID(), driver.PlayStatePlay)
	assert.Equal(t, 1, q.Len())

	// Removing an id that's already gone is a no-op, not an error.
	assert.False(t, q.Remove(h2.ID()))
}

// TestTrackQueue_Add_StartsImmediatelyWhenQueueWasEmpty is the degenerate
// single-track case underlying S5: Add on an empty queue always plays.
func TestTrackQueue_Add_StartsImmediatelyWhenQueueWasEmpty(t *testing.T) {
	ctx := context.Background()
	m, q := newQueueHarness(t)

	h := q.Add(pcmInput(oneFrame()))
	waitForPlayState(t, m, ctx, h.ID(), driver.PlayStatePlay)
	assert.Equal(t, 1, q.Len())
}
