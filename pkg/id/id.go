// Package id provides the identity type used for tracks in the voice
// driver core, kept distinct from any platform-specific snowflake ID.
package id

import "github.com/google/uuid"

// TrackID is a globally unique 128-bit identifier assigned to a Track when
// it is constructed. It never changes for the lifetime of the track.
type TrackID uuid.UUID

// NewTrackID generates a fresh random TrackID.
func NewTrackID() TrackID {
	return TrackID(uuid.New())
}

// String renders the canonical 8-4-4-4-12 hex form.
func (t TrackID) String() string {
	return uuid.UUID(t).String()
}

// IsZero reports whether t is the zero-value TrackID (never assigned).
func (t TrackID) IsZero() bool {
	return t == TrackID{}
}
