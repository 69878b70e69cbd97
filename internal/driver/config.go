package driver

import (
	"fmt"

	appconfig "github.com/Raikerian/go-voice-driver/internal/config"
)

// BitrateKind distinguishes an explicit target from the two symbolic
// choices the encoder itself can resolve.
type BitrateKind int

const (
	BitrateBitsPerSecond BitrateKind = iota
	BitrateAuto
	BitrateMax
)

// Bitrate mirrors the upstream tri-state Opus bitrate selector: a literal
// bits-per-second value, or a request to let libopus pick (Auto) or to use
// its maximum (Max).
type Bitrate struct {
	Kind  BitrateKind
	Value int // meaningful only when Kind == BitrateBitsPerSecond
}

// BitsPerSecond constructs an explicit Bitrate.
func BitsPerSecond(bps int) Bitrate { return Bitrate{Kind: BitrateBitsPerSecond, Value: bps} }

// AutoBitrate requests the encoder's automatic bitrate selection.
func AutoBitrate() Bitrate { return Bitrate{Kind: BitrateAuto} }

// MaxBitrate requests the encoder's maximum supported bitrate.
func MaxBitrate() Bitrate { return Bitrate{Kind: BitrateMax} }

// Resolve returns the literal value to hand to the encoder, per gopus's
// own OPUS_AUTO (-1000) / OPUS_BITRATE_MAX (-1) sentinels.
func (b Bitrate) Resolve() int {
	switch b.Kind {
	case BitrateAuto:
		return -1000
	case BitrateMax:
		return -1
	default:
		return b.Value
	}
}

// Config is the Mixer's tunable surface, resolved from the application's
// YAML DriverConfig into the driver package's own types.
type Config struct {
	PreloadCount            int
	CryptoMode              CryptoMode
	DecodeChannelCapacity   int
	MixAndStopSilentPackets bool
	UseSoftclip             bool
	Bitrate                 Bitrate
	PassthroughCacheSize    int
}

// NewConfigFromApp converts the application-facing DriverConfig (already
// defaulted via WithDefaults) into the driver package's Config.
func NewConfigFromApp(c appconfig.DriverConfig) (Config, error) {
	mode, err := cryptoModeFromName(c.CryptoMode)
	if err != nil {
		return Config{}, err
	}

	return Config{
		PreloadCount:            c.PreloadCount,
		CryptoMode:              mode,
		DecodeChannelCapacity:   c.DecodeChannelCapacity,
		MixAndStopSilentPackets: c.MixAndStopSilentPackets == nil || *c.MixAndStopSilentPackets,
		UseSoftclip:             c.UseSoftclip == nil || *c.UseSoftclip,
		Bitrate:                 BitsPerSecond(c.BitrateBps),
		PassthroughCacheSize:    c.PassthroughCacheSize,
	}, nil
}

func cryptoModeFromName(name appconfig.CryptoModeName) (CryptoMode, error) {
	switch name {
	case appconfig.CryptoModeNormal, "":
		return CryptoModeNormal, nil
	case appconfig.CryptoModeSuffix:
		return CryptoModeSuffix, nil
	case appconfig.CryptoModeLite:
		return CryptoModeLite, nil
	default:
		return 0, fmt.Errorf("driver: unknown crypto mode %q", name)
	}
}
