// Package spotify provides a Spotify-backed track resolver used to swap
// suggestions onto the preferred source before enqueueing.
package spotify

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/osa030/playkeeper/internal/domain/track"
)

// Source is the track source name reported by this resolver.
const Source = "spotify"

// Config represents Spotify resolver configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// Resolver searches Spotify for the best match of a free-text query.
// Search-only access needs no user scopes, so the client-credentials flow
// is enough.
type Resolver struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// New creates a resolver and its token-refreshing client.
func New(ctx context.Context, cfg Config) (*Resolver, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := creds.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain spotify token")
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	client := spotify.New(httpClient)

	market := cfg.Market
	if market == "" {
		market = "US"
	}

	return &Resolver{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Resolve returns the top search hit for the query, or nil when Spotify has
// no match.
func (r *Resolver) Resolve(ctx context.Context, query string) (*track.Track, error) {
	if query == "" {
		return nil, errors.New("search query is required")
	}

	var result *spotify.SearchResult
	err := r.retry(func() error {
		res, err := r.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(1),
			spotify.Market(r.market),
		)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search spotify")
	}

	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, nil
	}
	return convertTrack(&result.Tracks.Tracks[0]), nil
}

// convertTrack converts a Spotify FullTrack to a domain Track.
func convertTrack(t *spotify.FullTrack) *track.Track {
	author := ""
	if len(t.Artists) > 0 {
		author = t.Artists[0].Name
	}

	var artwork string
	if len(t.Album.Images) > 0 {
		artwork = t.Album.Images[0].URL
	}

	return &track.Track{
		ID:         string(t.ID),
		Title:      t.Name,
		Author:     author,
		Duration:   time.Duration(t.Duration) * time.Millisecond,
		ArtworkURL: artwork,
		Source:     Source,
	}
}

// retry retries an operation with linear backoff.
func (r *Resolver) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < r.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if i < r.maxRetries-1 {
			time.Sleep(r.retryDelay * time.Duration(i+1))
		}
	}
	return lastErr
}
