package driver

import (
	"context"
	"time"

	"github.com/pion/rtp"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-driver/pkg/audio"
	"github.com/Raikerian/go-voice-driver/pkg/id"
)

const rtpPayloadType = 0x78

// initialSilenceFrames is how many keepalive Opus silence packets the
// Mixer emits once the set of mixable tracks goes empty, mirroring the
// voice gateway's expectation of a short silence tail rather than an
// abrupt stop.
const initialSilenceFrames = 5

type connectionState struct {
	sink   UDPSink
	crypto *CryptoState
	key    [32]byte
}

type prepareResult struct {
	track id.TrackID
	err   error
}

// Mixer is the single-goroutine tick loop described for the driver core:
// it owns every enrolled Track, the Opus encoder, the active connection's
// crypto state, and the RTP header counters, and produces one packet per
// 20 ms tick.
type Mixer struct {
	log     *zap.Logger
	cfg     Config
	encoder *audio.Encoder
	probe   Probe

	sequence      uint16
	timestamp     uint32
	ssrc          uint32
	silenceFrames uint8

	conn *connectionState

	tracks         map[id.TrackID]*Track
	preparingCount int

	inbound        chan ControlMessage
	prepareResults chan prepareResult
	events         *EventDispatcher
	core           chan<- CoreMessage

	headerBuf [12]byte
	sealBuf   []byte
	pcmAccum  []float32
	pcmOut    []int16

	skipSleep bool

	ctx    context.Context
	closed bool
}

// NewMixer constructs a Mixer bound to one Interconnect. probe is the
// codec-registry collaborator used to promote Lazy inputs and to re-prime
// them on loop/seek.
func NewMixer(cfg Config, probe Probe, ic *Interconnect, log *zap.Logger) (*Mixer, error) {
	enc, err := audio.NewEncoder(cfg.Bitrate.Resolve())
	if err != nil {
		return nil, err
	}

	return &Mixer{
		log:            log,
		cfg:            cfg,
		encoder:        enc,
		probe:          probe,
		silenceFrames:  initialSilenceFrames,
		tracks:         make(map[id.TrackID]*Track),
		inbound:        ic.Mixer,
		prepareResults: make(chan prepareResult, 16),
		events:         ic.Events,
		core:           ic.Core,
		pcmAccum:       make([]float32, audio.FrameValues),
		pcmOut:         make([]int16, audio.FrameValues),
	}, nil
}

// send pushes msg onto the Mixer's inbound queue; it is the only way any
// goroutine other than the Mixer's own mutates track or session state.
func (m *Mixer) send(msg ControlMessage) {
	m.inbound <- msg
}

// Enqueue is the external entry point for posting a control message from
// any goroutine.
func (m *Mixer) Enqueue(msg ControlMessage) {
	m.send(msg)
}

// AddTrack enrolls input as a new track and returns a handle to control it.
// The track itself is only attached once the AddTrackMessage is drained on
// the mixer goroutine, so the returned handle is usable immediately even
// though enrollment is asynchronous.
func (m *Mixer) AddTrack(input *Input) *TrackHandle {
	t := NewTrack(input)
	m.send(AddTrackMessage{Track: t})

	return newTrackHandle(t.ID, m.send)
}

// Tick runs exactly one mixer iteration synchronously, bypassing the 20 ms
// ticker. Exposed for tests and for benchmark harnesses driven by
// SetSkipSleep rather than wall-clock time.
func (m *Mixer) Tick(ctx context.Context) {
	if m.ctx == nil {
		m.ctx = ctx
	}
	m.cycle(ctx)
}

// SetSkipSleep disables the Run loop's wall-clock pacing, letting a bench
// harness drive ticks as fast as cycle() can execute.
func (m *Mixer) SetSkipSleep(skip bool) {
	m.skipSleep = skip
}

// TrackState reports the current Ready/Play state of an enrolled track. ok
// is false once the track has been culled (or was never enrolled), which is
// itself an observable fact tests rely on.
func (m *Mixer) TrackState(trackID id.TrackID) (ready ReadyState, play PlayState, ok bool) {
	t, found := m.tracks[trackID]
	if !found {
		return 0, 0, false
	}

	return t.ready, t.play, true
}

// Run drives cycle() on a 20 ms ticker until ctx is cancelled or a Poison
// message is drained. It never returns an error: all per-tick failures are
// handled internally per the error taxonomy in the design.
func (m *Mixer) Run(ctx context.Context) {
	m.ctx = ctx
	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for {
		if m.closed {
			m.drainFinalSilence()

			return
		}

		if m.skipSleep {
			// Bench-only: run cycles back to back so throughput tests
			// aren't bound by wall-clock ticks.
			select {
			case <-ctx.Done():
				return
			default:
				m.cycle(ctx)
			}

			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cycle(ctx)
		}
	}
}

// drainFinalSilence emits one last silence packet on shutdown if the tail
// counter has not yet run out, matching the cancellation behaviour
// described for dropping the Mixer.
func (m *Mixer) drainFinalSilence() {
	if m.silenceFrames == 0 || m.conn == nil {
		return
	}
	m.emit(audio.SilenceOpusFrame)
}

// cycle runs the twelve-step tick described for the mixer loop.
func (m *Mixer) cycle(ctx context.Context) {
	m.drainControlMessages()
	m.advanceTrackReadiness(ctx)

	mixable := m.collectMixable()

	var payload []byte
	if passthrough, ok := m.tryPassthrough(mixable); ok {
		payload = passthrough
	} else {
		payload = m.mixAndEncode(ctx, mixable)
	}

	if len(mixable) == 0 {
		m.handleSilence()
	} else {
		m.silenceFrames = initialSilenceFrames
		if payload != nil {
			m.emit(payload)
		}
	}

	m.sequence++
	m.timestamp += audio.TimestampPerFrame

	m.cleanupEndedTracks()
}

func (m *Mixer) collectMixable() []*Track {
	var mixable []*Track
	for _, t := range m.tracks {
		if t.IsMixable() {
			mixable = append(mixable, t)
		}
	}

	return mixable
}

// tryPassthrough implements step 4: exactly one mixable track, native
// Opus, unity volume.
func (m *Mixer) tryPassthrough(mixable []*Track) ([]byte, bool) {
	if len(mixable) != 1 || mixable[0].volume != 1.0 {
		return nil, false
	}

	return mixable[0].TryPassthroughFrame()
}

// mixAndEncode implements steps 5-6: PCM mix followed by Opus encode. Ended
// tracks are left in PlayStateEnd for cleanupEndedTracks to collect.
func (m *Mixer) mixAndEncode(ctx context.Context, mixable []*Track) []byte {
	for i := range m.pcmAccum {
		m.pcmAccum[i] = 0
	}

	for _, t := range mixable {
		frame, ended, looped := t.NextMixFrame(ctx, m.probe)
		audio.MixInto(m.pcmAccum, frame, t.volume)
		if ended {
			continue
		}
		if looped {
			m.dispatchEvent(t, EventLoop)
		}
	}

	if len(mixable) == 0 {
		return nil
	}

	if m.cfg.UseSoftclip {
		audio.Softclip(m.pcmAccum)
	} else {
		audio.Saturate(m.pcmAccum)
	}
	audio.Float32ToInt16(m.pcmOut, m.pcmAccum)

	opus, err := m.encoder.Encode(m.pcmOut)
	if err != nil {
		m.log.Warn("opus encode failed, dropping tick", zap.Error(err))

		return nil
	}

	return opus
}

// handleSilence implements step 11: the keepalive tail.
func (m *Mixer) handleSilence() {
	if !m.cfg.MixAndStopSilentPackets || m.silenceFrames == 0 {
		return
	}
	m.silenceFrames--
	m.emit(audio.SilenceOpusFrame)
}

// emit implements steps 7-9: RTP header assembly, nonce placement +
// encryption, and handoff to the UDP sink.
func (m *Mixer) emit(payload []byte) {
	if m.conn == nil {
		return
	}

	header := rtp.Header{
		Version:        2,
		PayloadType:    rtpPayloadType,
		SequenceNumber: m.sequence,
		Timestamp:      m.timestamp,
		SSRC:           m.ssrc,
	}
	if _, err := header.MarshalTo(m.headerBuf[:]); err != nil {
		m.log.Error("rtp header marshal failed", zap.Error(err))

		return
	}

	packet, err := m.conn.crypto.Seal(m.sealBuf[:0], &m.conn.key, m.headerBuf[:], payload)
	if err != nil {
		m.log.Error("session crypto failed, disconnecting", zap.Error(err))
		m.disconnect(err)

		return
	}

	m.sealBuf = packet
	if err := m.conn.sink.Send(packet); err != nil {
		m.log.Debug("udp send dropped", zap.Error(err))
	}
}

// disconnect tears down the active connection and reports the cause to
// Core, per the fatal-to-session (not process) handling of crypto errors.
func (m *Mixer) disconnect(cause error) {
	m.conn = nil
	select {
	case m.core <- ConnectionLost{Cause: cause}:
	default:
	}
}

func (m *Mixer) cleanupEndedTracks() {
	for tid, t := range m.tracks {
		switch t.play {
		case PlayStateEnd:
			m.dispatchEvent(t, EventEnd)
			delete(m.tracks, tid)
		case PlayStateStop:
			delete(m.tracks, tid)
		}
	}
}

func (m *Mixer) dispatchEvent(t *Track, kind EventKind) {
	handlers := t.handlersFor(kind)
	if len(handlers) == 0 {
		return
	}
	ev := TrackEvent{Track: t.ID, Kind: kind, Position: t.position}
	if kind == EventEnd {
		ev.Err = t.LastError()
	}
	for _, h := range handlers {
		if !m.events.Dispatch(t.ID, ev, h) {
			m.log.Warn("event dropped, dispatcher queue full",
				zap.String("track", t.ID.String()), zap.Stringer("kind", kind))
		}
	}
}

// advanceTrackReadiness implements step 2: collect finished background
// preparations, then spawn new ones up to PreloadCount.
func (m *Mixer) advanceTrackReadiness(ctx context.Context) {
drain:
	for {
		select {
		case res := <-m.prepareResults:
			m.preparingCount--
			if t, ok := m.tracks[res.track]; ok {
				t.FinishPreparing(ctx, res.err == nil, res.err)
				if res.err == nil {
					m.dispatchEvent(t, EventPlay)
				}
			}
		default:
			break drain
		}
	}

	preloadLimit := m.cfg.PreloadCount
	if preloadLimit <= 0 {
		preloadLimit = 1
	}

	for _, t := range m.tracks {
		if m.preparingCount >= preloadLimit {
			break
		}
		if t.PreparePending() {
			t.BeginPreparing()
			m.preparingCount++
			go m.runPrepare(ctx, t)
		}
	}
}

func (m *Mixer) runPrepare(ctx context.Context, t *Track) {
	err := t.input.Promote(ctx, m.probe)
	select {
	case m.prepareResults <- prepareResult{track: t.ID, err: err}:
	case <-ctx.Done():
	}
}

// drainControlMessages implements step 1: consume everything available on
// the inbound queue without blocking.
func (m *Mixer) drainControlMessages() {
	for {
		select {
		case msg, ok := <-m.inbound:
			if !ok {
				m.closed = true

				return
			}
			m.applyControlMessage(msg)
			if m.closed {
				return
			}
		default:
			return
		}
	}
}

func (m *Mixer) applyControlMessage(msg ControlMessage) {
	switch cm := msg.(type) {
	case AddTrackMessage:
		m.tracks[cm.Track.ID] = cm.Track

	case SetTrackMessage:
		for _, t := range m.tracks {
			t.Stop()
		}
		m.tracks = make(map[id.TrackID]*Track)
		if cm.Track != nil {
			m.tracks[cm.Track.ID] = cm.Track
		}

	case SetConfigMessage:
		m.cfg = cm.Config
		_ = m.encoder.SetBitrate(m.cfg.Bitrate.Resolve())

	case SetConnMessage:
		if cm.Conn == nil {
			if m.conn != nil {
				_ = m.conn.sink.Close()
			}
			m.conn = nil

			return
		}
		m.ssrc = cm.Conn.SSRC
		m.conn = &connectionState{
			sink:   cm.Conn.Sink,
			crypto: NewCryptoState(cm.Conn.Mode, 0),
			key:    cm.Conn.Key,
		}

	case SetBitrateMessage:
		_ = m.encoder.SetBitrate(cm.Bitrate.Resolve())
		m.cfg.Bitrate = cm.Bitrate

	case RebuildInterconnectMessage:
		m.events = cm.Events

	case SetTrackStateMessage:
		m.applyTrackStateMessage(cm)

	case PingMessage:
		select {
		case cm.Reply <- struct{}{}:
		default:
		}

	case PoisonMessage:
		for _, t := range m.tracks {
			t.Stop()
		}
		m.closed = true
	}
}

func (m *Mixer) applyTrackStateMessage(msg SetTrackStateMessage) {
	t, ok := m.tracks[msg.Track]
	if !ok {
		m.log.Debug("control message for unknown track", zap.String("track", msg.Track.String()), zap.Error(ErrUnknownTrack))

		return
	}

	switch tm := msg.Message.(type) {
	case PlayTrack:
		if err := t.Play(); err == nil && t.ready == ReadyPlayable {
			m.dispatchEvent(t, EventPlay)
		}
	case PauseTrack:
		if err := t.Pause(); err == nil {
			m.dispatchEvent(t, EventPause)
		}
	case StopTrack:
		t.Stop()
	case SetVolume:
		_ = t.SetVolume(tm.Volume)
	case SeekTrack:
		_ = t.Seek(m.ctx, tm.Position, m.probe)
	case LoopTrack:
		t.LoopFor(tm.Count)
	case AddTrackEvent:
		_ = t.AddEvent(tm.Class, tm.Kind, tm.Handler)
	}
}
