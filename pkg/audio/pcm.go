package audio

// Int16ToFloat32 widens interleaved 16-bit PCM into the f32 range the mixer
// accumulates in, writing into dst (which must be at least len(src) long).
func Int16ToFloat32(dst []float32, src []int16) {
	for i, v := range src {
		if v >= 0 {
			dst[i] = float32(v) / 32767
		} else {
			dst[i] = float32(v) / 32768
		}
	}
}

// MixInto accumulates src into acc at the given per-track volume. Both
// slices must be the same length. Volume is a plain multiply, not a gain in
// decibels.
func MixInto(acc, src []float32, volume float32) {
	if volume == 1 {
		for i, v := range src {
			acc[i] += v
		}
		return
	}
	for i, v := range src {
		acc[i] += v * volume
	}
}

// Saturate clamps every sample in buf to [-1.0, 1.0].
func Saturate(buf []float32) {
	for i, v := range buf {
		switch {
		case v > 1:
			buf[i] = 1
		case v < -1:
			buf[i] = -1
		}
	}
}

// Softclip applies a smooth tanh-like saturation instead of a hard clamp,
// so summed tracks compress gracefully near full scale rather than clicking.
func Softclip(buf []float32) {
	for i, v := range buf {
		switch {
		case v > 1:
			buf[i] = 1 - 1/(v+1)
		case v < -1:
			buf[i] = -1 - 1/(v-1)
		}
	}
}

// Float32ToInt16 narrows a saturated f32 buffer back to interleaved 16-bit
// PCM, the format the Opus encoder accepts. buf is expected to already be
// within [-1.0, 1.0] (via Saturate or Softclip).
func Float32ToInt16(dst []int16, buf []float32) {
	for i, v := range buf {
		if v >= 0 {
			dst[i] = int16(v * 32767)
		} else {
			dst[i] = int16(v * 32768)
		}
	}
}
