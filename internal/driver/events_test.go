package driver_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-voice-driver/internal/driver"
	"github.com/Raikerian/go-voice-driver/pkg/id"
)

// TestEventDispatcher_DispatchIsNonBlockingWhenFull covers the contract
// dispatchEvent relies on: once the dispatcher's queue is saturated,
// further Dispatch calls return immediately with false rather than
// blocking the caller - which in production is always the Mixer's own
// tick goroutine.
func TestEventDispatcher_DispatchIsNonBlockingWhenFull(t *testing.T) {
	d := driver.NewEventDispatcher(1)

	blockFirst := make(chan struct{})
	first := d.Dispatch(id.NewTrackID(), driver.TrackEvent{Kind: driver.EventPlay}, func(driver.EventContext) (*driver.TrackEvent, error) {
		<-blockFirst

		return nil, nil
	})
	require.True(t, first)

	// The dispatcher goroutine is now parked running the first handler, so
	// its one-slot queue is immediately refilled by this call and any
	// subsequent call must observe it full.
	trackID := id.NewTrackID()
	second := d.Dispatch(trackID, driver.TrackEvent{Kind: driver.EventEnd}, noopHandler)

	deadline := time.Now().Add(time.Second)
	var third bool
	for {
		third = d.Dispatch(trackID, driver.TrackEvent{Kind: driver.EventEnd}, noopHandler)
		if !third || time.Now().After(deadline) {
			break
		}
	}
	assert.False(t, third, "Dispatch must report false once the queue is saturated rather than block")
	_ = second

	close(blockFirst)
	d.Close()
}

func noopHandler(driver.EventContext) (*driver.TrackEvent, error) { return nil, nil }
