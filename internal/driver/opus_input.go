package driver

import (
	"io"

	"github.com/Raikerian/go-voice-driver/pkg/audio"
)

// compressedDecoder adapts a sequence of pre-encoded Opus frames (the
// equivalent of the upstream cached::Compressed source) into a
// FrameDecoder that supports both the mix path (decode to f32) and the
// Mixer's passthrough fast path (NextOpusFrame). An optional
// PassthroughCache memoises frames by index and is consulted before the
// frame slice; the decoder's index only moves forward, so it never looks
// up an index it has already stored.
type compressedDecoder struct {
	frames  [][]byte
	index   int
	opusDec *audio.Decoder
	cache   *PassthroughCache
}

// NewCompressedDecoder wraps frames (already-encoded Opus payloads, one
// per 20 ms tick) with an Opus decoder used only when a mixed (not
// passthrough) output is required, and an optional passthrough cache.
func NewCompressedDecoder(frames [][]byte, cache *PassthroughCache) (FrameDecoder, error) {
	dec, err := audio.NewDecoder()
	if err != nil {
		return nil, err
	}

	return &compressedDecoder{frames: frames, opusDec: dec, cache: cache}, nil
}

func (c *compressedDecoder) frameAt(index int) ([]byte, bool) {
	if cached, ok := c.cache.lookupIfPresent(index); ok {
		return cached, true
	}
	if index < 0 || index >= len(c.frames) {
		return nil, false
	}

	return c.frames[index], true
}

// NextFrame decodes the current frame to f32 PCM for the mix path and
// advances.
func (c *compressedDecoder) NextFrame() ([]float32, error) {
	raw, ok := c.frameAt(c.index)
	if !ok {
		return nil, io.EOF
	}
	pcm, err := c.opusDec.Decode(raw, false)
	if err != nil {
		return nil, err
	}
	frame := make([]float32, audio.FrameValues)
	audio.Int16ToFloat32(frame, pcm)
	c.cache.putIfPresent(c.index, raw)
	c.index++

	return frame, nil
}

func (c *compressedDecoder) IsNativeOpus() bool { return true }

// NextOpusFrame returns the raw payload for the current frame without
// decoding, for the Mixer's passthrough path, and advances.
func (c *compressedDecoder) NextOpusFrame() ([]byte, error) {
	raw, ok := c.frameAt(c.index)
	if !ok {
		return nil, io.EOF
	}
	c.cache.putIfPresent(c.index, raw)
	c.index++

	return raw, nil
}

func (c *compressedDecoder) Close() error { return nil }

// lookupIfPresent and putIfPresent tolerate a nil cache (memoisation
// disabled via PassthroughCacheSize <= 0 at construction).
func (c *PassthroughCache) lookupIfPresent(frameIndex int) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	return c.Get(frameIndex)
}

func (c *PassthroughCache) putIfPresent(frameIndex int, raw []byte) {
	if c == nil {
		return
	}
	c.Put(frameIndex, raw)
}
