package driver_test

import (
	"context"
	"io"

	"github.com/Raikerian/go-voice-driver/internal/driver"
)

// fakeStream is a LiveStream stub carrying either raw PCM or pre-encoded
// Opus frames in memory, so genericProbe can hand back the right kind of
// FrameDecoder without touching actual bytes on the wire.
type fakeStream struct {
	pcmSamples []float32
	opusFrames [][]byte
}

func (fakeStream) Read([]byte) (int, error) { return 0, io.EOF }
func (fakeStream) Close() error             { return nil }
func (fakeStream) CanSeek() bool            { return false }
func (fakeStream) SeekToStart() error       { return nil }

// fakeComposer recreates the same fakeStream every time, so a looped or
// re-primed track always decodes from the same in-memory source.
type fakeComposer struct{ stream fakeStream }

func (c *fakeComposer) Create(context.Context) (driver.LiveStream, error) {
	return c.stream, nil
}

func (c *fakeComposer) AuxMetadata(context.Context) (driver.Metadata, error) {
	return driver.Metadata{}, nil
}

// genericProbe is the Mixer-level Probe used throughout the queue and mixer
// tests: it dispatches on the concrete fakeStream it receives rather than
// closing over one fixed sample buffer, so a single Mixer/TrackQueue probe
// correctly serves many tracks with different content.
func genericProbe(_ context.Context, stream driver.LiveStream) (driver.FrameDecoder, error) {
	fs, ok := stream.(fakeStream)
	if !ok {
		return driver.NewRawPCMDecoder(nil), nil
	}
	if fs.opusFrames != nil {
		return driver.NewCompressedDecoder(fs.opusFrames, nil)
	}

	return driver.NewRawPCMDecoder(fs.pcmSamples), nil
}

// pcmInput builds a Lazy Input that decodes to samples via genericProbe.
func pcmInput(samples []float32) *driver.Input {
	return driver.NewLazyInput(&fakeComposer{stream: fakeStream{pcmSamples: samples}})
}

// opusInput builds a Lazy Input whose FrameDecoder is native-Opus and
// passthrough-eligible, yielding frames in order.
func opusInput(frames [][]byte) *driver.Input {
	return driver.NewLazyInput(&fakeComposer{stream: fakeStream{opusFrames: frames}})
}
