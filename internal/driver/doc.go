// Package driver implements the real-time audio mixing and RTP egress core
// of a Discord-compatible voice connection: track lifecycle, the 20 ms
// mixer tick loop, Opus encode/passthrough, XSalsa20-Poly1305 encryption,
// and the gapless track queue. Gateway session negotiation, voice receive,
// and UDP socket I/O are external collaborators consumed through the
// interfaces in this package.
package driver
