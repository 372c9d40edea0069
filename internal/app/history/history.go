// Package history declares the read-only boundary to the play-history
// stores. Writing play records is the surrounding bot's concern.
package history

import (
	"context"
	"time"

	"github.com/osa030/playkeeper/internal/domain/track"
)

// PlayRecord is one historical play of a track.
type PlayRecord struct {
	Track    track.Track
	PlayedAt time.Time
}

// TopTrack is a track with aggregate play statistics.
type TopTrack struct {
	Track      track.Track
	PlayCount  int
	LastPlayed time.Time
}

// Store provides ranked and chronological play history at three scopes.
// Implementations must be safe for concurrent use.
type Store interface {
	UserTopTracks(ctx context.Context, userID string, n int) ([]TopTrack, error)
	GuildTopTracks(ctx context.Context, guildID string, n int) ([]TopTrack, error)
	GlobalTopTracks(ctx context.Context, n int) ([]TopTrack, error)
	UserHistory(ctx context.Context, userID string) ([]PlayRecord, error)
	GuildHistory(ctx context.Context, guildID string) ([]PlayRecord, error)
	GlobalHistory(ctx context.Context) ([]PlayRecord, error)
}
