// Package driversession owns one Mixer and Interconnect per Discord voice
// connection. It is the thin boundary layer where Discord identity types
// (channel, guild, user) are allowed to appear; the mixing/RTP core in
// internal/driver never imports arikawa.
package driversession

import (
	"fmt"
	"net"

	"github.com/diamondburned/arikawa/v3/discord"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-driver/internal/driver"
)

// GatewayCredentials is what the (out-of-scope) voice gateway handshake
// hands back once session negotiation completes: the cipher key, the SSRC
// assigned to this connection, the negotiated crypto mode (see
// ParseCryptoMode for the gateway's mode names), and a
// dialed UDP socket ready to carry RTP.
type GatewayCredentials struct {
	Key       [32]byte
	SSRC      uint32
	Mode      driver.CryptoMode
	Conn      *net.UDPConn
	OutboxCap int
}

// Session binds one voice channel to its Mixer/TrackQueue pair. Joining the
// channel and negotiating GatewayCredentials is the caller's
// responsibility (arikawa's voicegateway handshake); Session only wires
// the result into the mixing core.
type Session struct {
	ChannelID discord.ChannelID
	GuildID   discord.GuildID

	Mixer *driver.Mixer
	Queue *driver.TrackQueue

	log *zap.Logger
}

// New binds mixer/queue to a channel/guild pair.
func New(channelID discord.ChannelID, guildID discord.GuildID, mixer *driver.Mixer, queue *driver.TrackQueue, log *zap.Logger) *Session {
	return &Session{ChannelID: channelID, GuildID: guildID, Mixer: mixer, Queue: queue, log: log}
}

// Connect installs creds on the Mixer via a SetConn control message,
// starting (or replacing) outbound RTP delivery for this session.
func (s *Session) Connect(creds GatewayCredentials) {
	sink := driver.NewUDPConnSink(creds.Conn, creds.OutboxCap, s.log)
	s.Mixer.Enqueue(driver.SetConnMessage{
		Conn: &driver.ConnectionDescriptor{
			Sink: sink,
			Key:  creds.Key,
			SSRC: creds.SSRC,
			Mode: creds.Mode,
		},
	})
	s.log.Info("voice session connected",
		zap.String("channel_id", s.ChannelID.String()),
		zap.String("guild_id", s.GuildID.String()),
		zap.Uint32("ssrc", creds.SSRC))
}

// Disconnect clears the Mixer's active connection, closing the sink.
func (s *Session) Disconnect() {
	s.Mixer.Enqueue(driver.SetConnMessage{Conn: nil})
}

// Play enrolls input as a new queued track and returns its handle.
func (s *Session) Play(input *driver.Input) *driver.TrackHandle {
	return s.Queue.Add(input)
}

// ParseCryptoMode maps a gateway-negotiated encryption mode name to the
// driver's CryptoMode, mirroring the three names Discord's voice gateway
// actually advertises.
func ParseCryptoMode(name string) (driver.CryptoMode, error) {
	switch name {
	case "xsalsa20_poly1305":
		return driver.CryptoModeNormal, nil
	case "xsalsa20_poly1305_suffix":
		return driver.CryptoModeSuffix, nil
	case "xsalsa20_poly1305_lite":
		return driver.CryptoModeLite, nil
	default:
		return 0, fmt.Errorf("driversession: unknown crypto mode %q", name)
	}
}
