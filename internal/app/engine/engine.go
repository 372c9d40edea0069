// Package engine declares the boundary to the external audio engine.
// The surrounding bot supplies the concrete implementation; this core only
// decides which identifiers to request and when to refill or destroy.
package engine

import (
	"context"
	"time"

	"github.com/osa030/playkeeper/internal/domain/track"
)

// State represents the player state as reported by the audio engine.
type State int

const (
	StateIdle    State = iota // Nothing playing
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// LoadType describes what a search resolved to.
type LoadType string

const (
	LoadTypeTrack    LoadType = "TRACK"
	LoadTypePlaylist LoadType = "PLAYLIST"
	LoadTypeSearch   LoadType = "SEARCH"
	LoadTypeEmpty    LoadType = "EMPTY"
)

// SearchResult is the outcome of a search call against the audio engine.
type SearchResult struct {
	LoadType LoadType
	Tracks   []track.Track
	Playlist string // Playlist name when LoadType is PLAYLIST
}

// Empty reports whether the search produced no usable tracks.
func (r SearchResult) Empty() bool {
	return r.LoadType == LoadTypeEmpty || len(r.Tracks) == 0
}

// Player is the borrowed per-guild player object. Managers never own it;
// only the orchestrator may destroy it.
type Player interface {
	State() State
	CurrentTrack() (track.Track, bool)
	Position() time.Duration
	QueueSize() int
	Enqueue(t track.Track)
	Play() error
	Destroy() error
}

// Searcher resolves queries (exact identifiers or free text) into tracks.
type Searcher interface {
	Search(ctx context.Context, query string) (SearchResult, error)
}

// Recommender is an optional capability of the audio engine. Callers must
// treat its absence as "no results", not an error.
type Recommender interface {
	NativeRecommendations(ctx context.Context, seed track.Track) ([]track.Track, error)
}
