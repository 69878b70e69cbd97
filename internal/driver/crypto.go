package driver

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// CryptoMode names one of the three nonce layouts negotiated with the
// voice gateway. The Mixer picks exactly one per session.
type CryptoMode int

const (
	CryptoModeNormal CryptoMode = iota
	CryptoModeSuffix
	CryptoModeLite
)

func (m CryptoMode) String() string {
	switch m {
	case CryptoModeNormal:
		return "xsalsa20_poly1305"
	case CryptoModeSuffix:
		return "xsalsa20_poly1305_suffix"
	case CryptoModeLite:
		return "xsalsa20_poly1305_lite"
	default:
		return "unknown"
	}
}

const (
	nonceSize  = 24
	tagSize    = secretbox.Overhead // 16-byte Poly1305 tag
	liteSuffix = 4
)

// NonceSize is the fixed XSalsa20 nonce length shared by all three modes.
func (CryptoMode) NonceSize() int { return nonceSize }

// PayloadPrefixLen is the Poly1305 tag placed before the ciphertext.
func (CryptoMode) PayloadPrefixLen() int { return tagSize }

// PayloadSuffixLen is the number of extra bytes appended after the
// ciphertext to carry the portion of the nonce not derived from the
// header.
func (m CryptoMode) PayloadSuffixLen() int {
	switch m {
	case CryptoModeSuffix:
		return nonceSize
	case CryptoModeLite:
		return liteSuffix
	default:
		return 0
	}
}

// PayloadOverhead is the total extra bytes (tag + suffix) a packet in this
// mode carries beyond the plaintext payload.
func (m CryptoMode) PayloadOverhead() int {
	return m.PayloadPrefixLen() + m.PayloadSuffixLen()
}

// CryptoState is the per-session mutable half of the crypto core: Normal
// and Suffix carry no state, Lite carries a monotonically incrementing
// counter. Always referenced through a pointer — the Lite counter mutation
// must be visible to the caller of the next packet, which is exactly the
// bug the upstream Rust implementation has and this port fixes by never
// passing CryptoState by value past construction.
type CryptoState struct {
	mode        CryptoMode
	liteCounter uint32
}

// NewCryptoState creates session crypto state for mode, with the Lite
// counter (if applicable) starting at initialCounter.
func NewCryptoState(mode CryptoMode, initialCounter uint32) *CryptoState {
	return &CryptoState{mode: mode, liteCounter: initialCounter}
}

// Kind reports which mode this state was constructed for.
func (cs *CryptoState) Kind() CryptoMode { return cs.mode }

// LiteCounter returns the current Lite-mode counter value. Only meaningful
// when Kind() == CryptoModeLite.
func (cs *CryptoState) LiteCounter() uint32 { return cs.liteCounter }

// nextNonce derives the 24-byte nonce for the next packet and returns the
// suffix bytes (if any) that must be appended to the wire payload,
// unencrypted, after sealing. It mutates the Lite counter in place, after
// the nonce has been derived, per the per-packet increment the spec
// mandates.
func (cs *CryptoState) nextNonce(header []byte) (nonce [nonceSize]byte, suffix []byte, err error) {
	switch cs.mode {
	case CryptoModeNormal:
		if len(header) < 12 {
			return nonce, nil, fmt.Errorf("driver: rtp header too short for nonce: %d bytes", len(header))
		}
		copy(nonce[:12], header[:12])

		return nonce, nil, nil

	case CryptoModeSuffix:
		if _, err := rand.Read(nonce[:]); err != nil {
			return nonce, nil, fmt.Errorf("driver: generate suffix nonce: %w", err)
		}
		suffixCopy := make([]byte, nonceSize)
		copy(suffixCopy, nonce[:])

		return nonce, suffixCopy, nil

	case CryptoModeLite:
		binary.BigEndian.PutUint32(nonce[nonceSize-liteSuffix:], cs.liteCounter)
		suffixCopy := make([]byte, liteSuffix)
		copy(suffixCopy, nonce[nonceSize-liteSuffix:])
		cs.liteCounter++

		return nonce, suffixCopy, nil

	default:
		return nonce, nil, fmt.Errorf("driver: unknown crypto mode %d", cs.mode)
	}
}

// Seal appends header, the sealed (tag||ciphertext) form of payload, and
// any mode-specific nonce suffix onto dst, returning the extended slice.
// dst is typically a reused scratch buffer reset to dst[:0] each tick so
// no allocation is needed in steady state. The nonce region (header bytes
// for Normal, the freshly generated suffix for Suffix/Lite) is never
// written to again once this call returns.
func (cs *CryptoState) Seal(dst []byte, key *[32]byte, header, payload []byte) ([]byte, error) {
	nonce, suffix, err := cs.nextNonce(header)
	if err != nil {
		return nil, NewCryptoError(err)
	}

	out := append(dst, header...)
	out = secretbox.Seal(out, payload, &nonce, key)
	if suffix != nil {
		out = append(out, suffix...)
	}

	return out, nil
}

// Open reverses Seal given the same key and mode: it extracts the nonce
// region from packet (the header for Normal, the trailing suffix for
// Suffix/Lite), verifies the Poly1305 tag, and returns the original
// payload. headerLen is the RTP header length preceding the sealed region
// (12 for the driver's own packets).
func Open(mode CryptoMode, key *[32]byte, packet []byte, headerLen int) ([]byte, error) {
	suffixLen := mode.PayloadSuffixLen()
	if len(packet) < headerLen+tagSize+suffixLen {
		return nil, NewCryptoError(fmt.Errorf("packet too short: %d bytes", len(packet)))
	}

	var nonce [nonceSize]byte
	switch mode {
	case CryptoModeNormal:
		copy(nonce[:12], packet[:12])
	case CryptoModeSuffix:
		copy(nonce[:], packet[len(packet)-suffixLen:])
	case CryptoModeLite:
		copy(nonce[nonceSize-liteSuffix:], packet[len(packet)-suffixLen:])
	default:
		return nil, NewCryptoError(fmt.Errorf("unknown crypto mode %d", mode))
	}

	sealed := packet[headerLen : len(packet)-suffixLen]
	payload, ok := secretbox.Open(nil, sealed, &nonce, key)
	if !ok {
		return nil, NewCryptoError(fmt.Errorf("authentication failed"))
	}

	return payload, nil
}
