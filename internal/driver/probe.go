package driver

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Raikerian/go-voice-driver/pkg/audio"
)

// ErrUnknownContainer is returned by the default probe when a stream's
// leading magic does not match any container this binary understands.
// Real deployments are expected to supply their own Probe wired to an
// actual codec registry; this one exists so the module runs end-to-end
// without an external demuxer dependency.
var ErrUnknownContainer = errors.New("driver: unrecognised input container")

const (
	magicRawPCM     = "VDPC" // interleaved little-endian f32 samples follow, no framing
	magicOpusFrames = "VDOP" // stream of uint32-LE-length-prefixed Opus packets
)

// NewDefaultProbe builds a Probe recognising the two self-describing
// containers above: raw interleaved f32 PCM, and a flat sequence of
// length-prefixed Opus packets. cacheSize is the PassthroughCache capacity
// (<= 0 disables memoisation); every compressed decoder this probe produces
// gets its own private cache instance sized to cacheSize, since frame
// indices restart at 0 per track and a cache shared across tracks would
// let one track's decoder serve up another's cached frames.
func NewDefaultProbe(cacheSize int) Probe {
	return func(_ context.Context, stream LiveStream) (FrameDecoder, error) {
		magic := make([]byte, 4)
		if _, err := io.ReadFull(stream, magic); err != nil {
			return nil, fmt.Errorf("probe: read magic: %w", err)
		}

		switch string(magic) {
		case magicRawPCM:
			return newStreamingPCMDecoder(stream), nil
		case magicOpusFrames:
			frames, err := readLengthPrefixedFrames(stream)
			if err != nil {
				return nil, fmt.Errorf("probe: read opus frames: %w", err)
			}

			var cache *PassthroughCache
			if cacheSize > 0 {
				cache = NewPassthroughCache(cacheSize)
			}

			return NewCompressedDecoder(frames, cache)
		default:
			return nil, ErrUnknownContainer
		}
	}
}

func readLengthPrefixedFrames(r io.Reader) ([][]byte, error) {
	br := bufio.NewReader(r)
	var frames [][]byte
	for {
		var length uint32
		if err := binary.Read(br, binary.LittleEndian, &length); err != nil {
			if err == io.EOF {
				return frames, nil
			}

			return nil, err
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, err
		}
		frames = append(frames, buf)
	}
}

// streamingPCMDecoder reads interleaved f32 samples directly off the live
// stream rather than buffering the whole source in memory, for sources too
// large to hold as a rawPCMDecoder slice.
type streamingPCMDecoder struct {
	r *bufio.Reader
}

func newStreamingPCMDecoder(r io.Reader) FrameDecoder {
	return &streamingPCMDecoder{r: bufio.NewReaderSize(r, audio.FrameValues*4)}
}

func (s *streamingPCMDecoder) NextFrame() ([]float32, error) {
	frame := make([]float32, audio.FrameValues)
	for i := range frame {
		var bits uint32
		if err := binary.Read(s.r, binary.LittleEndian, &bits); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				if i == 0 {
					return nil, io.EOF
				}

				return frame, nil
			}

			return nil, err
		}
		frame[i] = math.Float32frombits(bits)
	}

	return frame, nil
}

func (s *streamingPCMDecoder) IsNativeOpus() bool             { return false }
func (s *streamingPCMDecoder) NextOpusFrame() ([]byte, error) { return nil, io.EOF }
func (s *streamingPCMDecoder) Close() error                   { return nil }
