package driver

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// PassthroughCache memoises already-encoded Opus frames produced by a
// compressed source. compressedDecoder stores each frame as it reads it;
// since its index only moves forward and a loop or re-promotion builds a
// new decoder with a new cache, stored frames are not read back. Keyed by frame
// index within one track's decoded stream, so each instance must belong to
// exactly one compressedDecoder — sharing one across tracks would let a
// track whose local frame index coincides with another's serve up the
// wrong track's cached bytes.
type PassthroughCache struct {
	frames *lru.Cache[int, []byte]
}

// NewPassthroughCache builds a cache bounded to capacity frames; capacity
// <= 0 is floored to 1, so memoisation is never fully disabled this way —
// pass a nil *PassthroughCache (lookupIfPresent/putIfPresent both tolerate
// it) to actually opt out.
func NewPassthroughCache(capacity int) *PassthroughCache {
	if capacity <= 0 {
		capacity = 1
	}
	c, err := lru.New[int, []byte](capacity)
	if err != nil {
		// Only returns an error for a non-positive size, guarded above.
		panic(err)
	}

	return &PassthroughCache{frames: c}
}

// Get returns the memoised Opus payload for frameIndex, if present.
func (c *PassthroughCache) Get(frameIndex int) ([]byte, bool) {
	return c.frames.Get(frameIndex)
}

// Put memoises opus as the payload for frameIndex. The slice is retained,
// not copied — callers must not mutate it afterward.
func (c *PassthroughCache) Put(frameIndex int, opus []byte) {
	c.frames.Add(frameIndex, opus)
}

// Len reports how many frames are currently memoised.
func (c *PassthroughCache) Len() int {
	return c.frames.Len()
}
