package driver_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-driver/internal/driver"
	"github.com/Raikerian/go-voice-driver/pkg/audio"
	"github.com/Raikerian/go-voice-driver/pkg/id"
)

// captureSink is a UDPSink stub that records every packet handed to it in
// order, so tests can inspect exactly what the Mixer chose to emit.
type captureSink struct {
	mu      sync.Mutex
	packets [][]byte
}

func (s *captureSink) Send(packet []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(packet))
	copy(cp, packet)
	s.packets = append(s.packets, cp)

	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) all() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.packets))
	copy(out, s.packets)

	return out
}

func mixerTestConfig() driver.Config {
	return driver.Config{
		PreloadCount:            16,
		CryptoMode:              driver.CryptoModeNormal,
		MixAndStopSilentPackets: true,
		UseSoftclip:             true,
		Bitrate:                 driver.BitsPerSecond(64000),
	}
}

func newMixerHarness(t testing.TB, cfg driver.Config) (*driver.Mixer, *captureSink) {
	t.Helper()
	ic := driver.NewInterconnect(64, 16, 64)
	m, err := driver.NewMixer(cfg, genericProbe, ic, zap.NewNop())
	require.NoError(t, err)

	sink := &captureSink{}
	key := testKey()
	m.Enqueue(driver.SetConnMessage{Conn: &driver.ConnectionDescriptor{
		Sink: sink,
		Key:  *key,
		SSRC: 0xC0FFEE,
		Mode: cfg.CryptoMode,
	}})

	return m, sink
}

func rtpHeaderOf(t testing.TB, packet []byte) rtp.Header {
	t.Helper()
	var hdr rtp.Header
	require.NoError(t, hdr.Unmarshal(packet))

	return hdr
}

// waitTrackPlayable ticks m until every id in ids reports ReadyPlayable.
func waitTrackPlayable(t testing.TB, m *driver.Mixer, ctx context.Context, ids []id.TrackID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		m.Tick(ctx)
		ready := true
		for _, tid := range ids {
			r, _, ok := m.TrackState(tid)
			if !ok || r != driver.ReadyPlayable {
				ready = false

				break
			}
		}
		if ready {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("tracks never became playable")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestMixer_SilenceTail_S1: with zero tracks ever added, the first
// initialSilenceFrames ticks each emit the canonical Opus silence frame and
// the tick after that emits nothing, while the RTP timestamp still advances
// every tick regardless of whether a packet went out.
func TestMixer_SilenceTail_S1(t *testing.T) {
	ctx := context.Background()
	m, sink := newMixerHarness(t, mixerTestConfig())

	for i := 0; i < 5; i++ {
		m.Tick(ctx)
	}
	require.Len(t, sink.all(), 5)

	for _, pkt := range sink.all() {
		payload, err := driver.Open(driver.CryptoModeNormal, testKey(), pkt, 12)
		require.NoError(t, err)
		assert.Equal(t, audio.SilenceOpusFrame, payload)
	}

	m.Tick(ctx) // 6th tick: silence tail exhausted, nothing emitted
	assert.Len(t, sink.all(), 5)
}

// TestMixer_SequenceAndTimestamp_AdvanceMonotonically covers invariants 1
// and 2: sequence advances by exactly 1 and timestamp by exactly 960 every
// tick that emits, including through the silence tail.
func TestMixer_SequenceAndTimestamp_AdvanceMonotonically(t *testing.T) {
	ctx := context.Background()
	m, sink := newMixerHarness(t, mixerTestConfig())

	for i := 0; i < 5; i++ {
		m.Tick(ctx)
	}

	packets := sink.all()
	require.Len(t, packets, 5)

	prev := rtpHeaderOf(t, packets[0])
	for _, pkt := range packets[1:] {
		hdr := rtpHeaderOf(t, pkt)
		assert.Equal(t, prev.SequenceNumber+1, hdr.SequenceNumber)
		assert.Equal(t, prev.Timestamp+audio.TimestampPerFrame, hdr.Timestamp)
		prev = hdr
	}
}

// TestMixer_Passthrough_SingleNativeOpusTrack_S2: a single Playable,
// native-Opus, unity-volume track is taken through the passthrough path, so
// the decrypted wire payload is byte-identical to the original Opus frame
// rather than a re-encoded one. Ticks spent preparing the track emit the
// silence tail, and the tick on which it becomes Playable already emits
// frames[0].
func TestMixer_Passthrough_SingleNativeOpusTrack_S2(t *testing.T) {
	ctx := context.Background()
	cfg := mixerTestConfig()
	m, sink := newMixerHarness(t, cfg)

	frames := [][]byte{
		{0x01, 0x02, 0x03},
		{0x04, 0x05, 0x06},
		{0x07, 0x08, 0x09},
	}
	h := m.AddTrack(opusInput(frames))
	h.Play()
	waitTrackPlayable(t, m, ctx, []id.TrackID{h.ID()})

	for i := 1; i < len(frames); i++ {
		m.Tick(ctx)
	}

	packets := sink.all()
	require.GreaterOrEqual(t, len(packets), len(frames))
	lead := len(packets) - len(frames)
	for i, pkt := range packets {
		payload, err := driver.Open(cfg.CryptoMode, testKey(), pkt, 12)
		require.NoError(t, err)
		if i < lead {
			assert.Equal(t, audio.SilenceOpusFrame, payload, "packet %d precedes playback and must be silence", i)

			continue
		}
		assert.Equal(t, frames[i-lead], payload, "passthrough frame %d must be emitted unmodified", i-lead)
	}
}

// TestMixer_StoppedTrackNeverEmitted covers invariant 7: a track that is
// added and immediately stopped before ever becoming mixable must never
// contribute to any emitted packet.
func TestMixer_StoppedTrackNeverEmitted(t *testing.T) {
	ctx := context.Background()
	m, sink := newMixerHarness(t, mixerTestConfig())

	frames := [][]byte{{0xAA, 0xBB, 0xCC}}
	h := m.AddTrack(opusInput(frames))
	h.Play()
	h.Stop()

	for i := 0; i < 5; i++ {
		m.Tick(ctx)
	}

	for _, pkt := range sink.all() {
		payload, err := driver.Open(driver.CryptoModeNormal, testKey(), pkt, 12)
		require.NoError(t, err)
		assert.NotEqual(t, frames[0], payload, "stopped track's frame must never be emitted")
	}
	_, _, ok := m.TrackState(h.ID())
	assert.False(t, ok)
}

// TestMixer_MixAndCull_S3: 15 tracks enrolled together, the first 5 with a
// single buffered frame and the rest with a long supply; after the short
// ones have had time to end, they're culled from the Mixer while the rest
// remain Playable.
func TestMixer_MixAndCull_S3(t *testing.T) {
	ctx := context.Background()
	cfg := mixerTestConfig()
	m, _ := newMixerHarness(t, cfg)

	const total = 15
	ids := make([]id.TrackID, total)
	handles := make([]*driver.TrackHandle, total)
	for i := 0; i < total; i++ {
		frameCount := 1
		if i >= 5 {
			frameCount = 25
		}
		samples := make([]float32, audio.FrameValues*frameCount)
		handles[i] = m.AddTrack(pcmInput(samples))
		ids[i] = handles[i].ID()
		handles[i].Play()
	}

	waitTrackPlayable(t, m, ctx, ids)

	for i := 0; i < 5; i++ {
		m.Tick(ctx)
	}

	for i := 0; i < 5; i++ {
		_, _, ok := m.TrackState(ids[i])
		assert.False(t, ok, "short track %d should have been culled", i)
	}
	for i := 5; i < total; i++ {
		ready, play, ok := m.TrackState(ids[i])
		require.True(t, ok, "long track %d should still be enrolled", i)
		assert.Equal(t, driver.ReadyPlayable, ready)
		assert.Equal(t, driver.PlayStatePlay, play)
	}
}
