// Package track provides the Track domain entity.
package track

import "time"

// Track represents a playable track as reported by the audio engine or a
// history store. Immutable once obtained.
type Track struct {
	ID          string        // Source-specific URI / identifier
	Title       string        // Track title
	Author      string        // Artist / uploader name
	Duration    time.Duration // 0 for continuous streams
	ArtworkURL  string        // Artwork reference (optional)
	Stream      bool          // True for continuous live streams
	Source      string        // Source name (e.g. "youtube", "spotify")
	RequesterID string        // User who requested the track (empty for system tracks)
}

// HasIdentity reports whether the track carries enough identity to be
// recommended or resolved again later.
func (t Track) HasIdentity() bool {
	return t.ID != "" && t.Title != ""
}

// Candidate is a track proposed by the recommendation pipeline together with
// its provenance. Discarded once the final ranked list is produced.
type Candidate struct {
	Track Track
	Tier  string  // Source tier that produced the candidate
	Score float64 // Similarity score in [0,1], only set by the similarity tier
}
