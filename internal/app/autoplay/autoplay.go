// Package autoplay provides the per-session queue-refill engine. When the
// live queue runs low after a track completes, it asks the recommendation
// scorer for candidates, resolves them through the audio engine and enqueues
// the survivors.
package autoplay

import (
	"context"
	"fmt"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playkeeper/internal/app/engine"
	"github.com/osa030/playkeeper/internal/domain/track"
)

// Config holds engine tuning parameters.
type Config struct {
	DesiredCount   int // Tracks to enqueue per refill
	LowWaterMark   int // Queue size below which a refill triggers
	RecentCapacity int // Capacity of the recently-played set
}

// Suggester produces candidate tracks for a seed. Implemented by
// recommend.Scorer.
type Suggester interface {
	Suggest(ctx context.Context, seed track.Track, userID, guildID string, count int) []track.Track
}

// Engine is the per-session autoplay engine. Refills are strictly
// serialized per session via the in-flight latch; unrelated sessions never
// wait on each other.
type Engine struct {
	guildID string
	player  engine.Player
	search  engine.Searcher
	suggest Suggester
	cfg     Config

	mu              sync.Mutex
	enabled         bool
	ownerID         string
	lastCompletedID string
	inFlight        bool
	recent          *RecentSet
}

// New creates an autoplay engine for one session.
func New(guildID string, player engine.Player, search engine.Searcher, suggest Suggester, cfg Config) *Engine {
	return &Engine{
		guildID: guildID,
		player:  player,
		search:  search,
		suggest: suggest,
		cfg:     cfg,
		recent:  NewRecentSet(cfg.RecentCapacity),
	}
}

// Enable turns autoplay on, recording the owning user as recommendation
// context. Currently queued tracks are unaffected.
func (e *Engine) Enable(ownerUserID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = true
	e.ownerID = ownerUserID
	zlog.Info().Msgf("autoplay enabled: guild=%s owner=%s", e.guildID, ownerUserID)
}

// Disable turns autoplay off and clears the owning user.
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = false
	e.ownerID = ""
	zlog.Info().Msgf("autoplay disabled: guild=%s", e.guildID)
}

// IsEnabled reports whether autoplay is currently on.
func (e *Engine) IsEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// OnTrackCompleted handles a track-completion event. It is a no-op when
// autoplay is disabled, when a refill for the same track identity already
// ran, or when another refill is still in flight for this session.
func (e *Engine) OnTrackCompleted(ctx context.Context, completed track.Track) {
	e.mu.Lock()

	if !e.enabled {
		e.mu.Unlock()
		return
	}
	if completed.ID == "" {
		e.mu.Unlock()
		zlog.Warn().Msgf("autoplay: completed track has no identifier, skipping: guild=%s", e.guildID)
		return
	}
	if completed.ID == e.lastCompletedID {
		e.mu.Unlock()
		zlog.Debug().Msgf("autoplay: refill already ran for track, skipping: guild=%s track=%s", e.guildID, completed.ID)
		return
	}
	if e.inFlight {
		e.mu.Unlock()
		zlog.Debug().Msgf("autoplay: refill already in flight, skipping: guild=%s track=%s", e.guildID, completed.ID)
		return
	}

	e.recent.Add(completed.ID)

	if e.player.QueueSize() >= e.cfg.LowWaterMark {
		e.mu.Unlock()
		return
	}

	// Marked only when a refill actually starts, so a looped track that
	// later completes with a drained queue still triggers one.
	e.lastCompletedID = completed.ID
	e.inFlight = true
	owner := e.ownerID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	e.refill(ctx, completed, owner)
}

// refill requests candidates, filters them against the recently-played set
// and enqueues up to DesiredCount resolved tracks. One failed resolution
// never aborts the others.
func (e *Engine) refill(ctx context.Context, seed track.Track, owner string) {
	// Request extra to compensate for filtering below.
	candidates := e.suggest.Suggest(ctx, seed, owner, e.guildID, 2*e.cfg.DesiredCount)
	if len(candidates) == 0 {
		zlog.Info().Msgf("autoplay: no candidates for refill: guild=%s seed=%s", e.guildID, seed.ID)
		return
	}

	survivors := make([]track.Track, 0, e.cfg.DesiredCount)
	e.mu.Lock()
	for _, c := range candidates {
		if len(survivors) >= e.cfg.DesiredCount {
			break
		}
		if !c.HasIdentity() {
			continue
		}
		if e.recent.Contains(c.ID) {
			continue
		}
		survivors = append(survivors, c)
	}
	e.mu.Unlock()

	enqueued := 0
	for _, c := range survivors {
		resolved, ok := e.resolve(ctx, c)
		if !ok {
			zlog.Info().Msgf("autoplay: candidate not resolvable, skipping: guild=%s candidate=%s", e.guildID, c.ID)
			continue
		}

		e.player.Enqueue(resolved)
		enqueued++

		e.mu.Lock()
		e.recent.Add(resolved.ID)
		e.mu.Unlock()

		zlog.Info().Msgf("autoplay: enqueued track: guild=%s track=%s title=%q", e.guildID, resolved.ID, resolved.Title)
	}

	if enqueued > 0 && e.player.State() == engine.StateIdle {
		if err := e.player.Play(); err != nil {
			zlog.Warn().Msgf("autoplay: failed to start playback after refill: guild=%s error=%v", e.guildID, err)
		}
	}
}

// resolve looks a candidate up by its exact identifier first, falling back
// to a text query of "<author> - <title>" on an empty result.
func (e *Engine) resolve(ctx context.Context, c track.Track) (track.Track, bool) {
	result, err := e.search.Search(ctx, c.ID)
	if err == nil && !result.Empty() {
		return result.Tracks[0], true
	}

	query := fmt.Sprintf("%s - %s", c.Author, c.Title)
	result, err = e.search.Search(ctx, query)
	if err != nil || result.Empty() {
		return track.Track{}, false
	}
	return result.Tracks[0], true
}
