package session

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playkeeper/internal/app/activity"
	"github.com/osa030/playkeeper/internal/app/autoplay"
	"github.com/osa030/playkeeper/internal/app/chat"
	"github.com/osa030/playkeeper/internal/app/display"
	"github.com/osa030/playkeeper/internal/app/engine"
)

// Config aggregates the per-manager configuration plus the post-queue-empty
// cleanup delay.
type Config struct {
	Display      display.Config
	Activity     activity.Config
	Autoplay     autoplay.Config
	CleanupDelay time.Duration
}

// Orchestrator owns the session registry and routes audio-engine events to
// the per-guild managers. Exactly one session exists per guild at a time.
type Orchestrator struct {
	messenger chat.Messenger
	search    engine.Searcher
	suggest   autoplay.Suggester
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewOrchestrator creates an orchestrator with an empty registry.
func NewOrchestrator(messenger chat.Messenger, search engine.Searcher, suggest autoplay.Suggester, cfg Config) *Orchestrator {
	return &Orchestrator{
		messenger: messenger,
		search:    search,
		suggest:   suggest,
		cfg:       cfg,
		sessions:  make(map[string]*Session),
	}
}

// GetOrCreate returns the session for the guild, creating it with its
// managers on first access. Idempotent: repeated calls for the same guild
// return the same instance.
func (o *Orchestrator) GetOrCreate(guildID, channelID string, player engine.Player) *Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.sessions[guildID]; ok {
		return s
	}

	s := newSession(guildID, channelID, player)
	s.Display = display.New(guildID, channelID, o.messenger, player, o.cfg.Display)
	s.Monitor = activity.New(guildID, channelID, o.messenger, player, func() {
		o.destroyPlayer(guildID)
	}, o.cfg.Activity)
	s.Autoplay = autoplay.New(guildID, player, o.search, o.suggest, o.cfg.Autoplay)

	o.sessions[guildID] = s
	zlog.Info().Msgf("session created: guild=%s session_id=%s", guildID, s.ID)
	return s
}

// Get returns the session for the guild, if one exists.
func (o *Orchestrator) Get(guildID string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[guildID]
	return s, ok
}

// Remove tears down the guild's session, stopping all manager timers before
// it returns. The registry lock covers only the map removal: the teardown
// includes a final chat edit, and holding the lock across that suspended
// call would stall every other guild.
func (o *Orchestrator) Remove(guildID string) {
	o.mu.Lock()
	s, ok := o.sessions[guildID]
	if !ok {
		o.mu.Unlock()
		return
	}
	delete(o.sessions, guildID)
	o.mu.Unlock()

	s.stop()
	zlog.Info().Msgf("session removed: guild=%s session_id=%s", guildID, s.ID)
}

// Count returns the number of live sessions.
func (o *Orchestrator) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// Dispatch routes an audio-engine event to the guild's session. Handling
// runs on its own goroutine so a suspended call for one guild never delays
// another.
func (o *Orchestrator) Dispatch(guildID string, ev engine.Event) {
	s, ok := o.Get(guildID)
	if !ok {
		zlog.Warn().Msgf("event for unknown session ignored: guild=%s type=%s", guildID, ev.Type)
		return
	}

	zlog.Debug().Msgf("dispatching event: guild=%s type=%s", guildID, ev.Type)
	go o.handle(s, ev)
}

// handle applies one event to one session.
func (o *Orchestrator) handle(s *Session, ev engine.Event) {
	ctx := context.Background()

	switch ev.Type {
	case engine.EventTrackStarted:
		// A fresh track supersedes any pending emptied-queue cleanup.
		s.BumpCleanupToken()
		s.Display.OnTrackStarted(ctx)

	case engine.EventTrackEnded:
		if ev.Track == nil {
			zlog.Warn().Msgf("track ended event without track: guild=%s", s.GuildID)
			return
		}
		s.Autoplay.OnTrackCompleted(ctx, *ev.Track)

	case engine.EventQueueEmptied:
		o.scheduleCleanup(s)

	case engine.EventSessionDestroyed:
		o.Remove(s.GuildID)

	case engine.EventPausedChanged:
		if !ev.Paused {
			s.BumpCleanupToken()
		}
		s.Display.OnPauseChanged(ctx, ev.Paused)
	}
}

// scheduleCleanup arms a delayed destroy for an emptied queue. Cancellation
// is implicit: the scheduled func compares its captured token against the
// session's current one and does nothing when superseded.
func (o *Orchestrator) scheduleCleanup(s *Session) {
	token := s.BumpCleanupToken()
	guildID := s.GuildID

	zlog.Info().Msgf("queue empty, scheduling cleanup: guild=%s delay=%v token=%d", guildID, o.cfg.CleanupDelay, token)

	time.AfterFunc(o.cfg.CleanupDelay, func() {
		if s.CleanupToken() != token {
			zlog.Debug().Msgf("cleanup superseded: guild=%s token=%d", guildID, token)
			return
		}
		if _, ok := o.Get(guildID); !ok {
			return
		}

		zlog.Info().Msgf("cleanup elapsed, destroying idle session: guild=%s", guildID)
		o.destroyPlayer(guildID)
	})
}

// destroyPlayer destroys the guild's audio session. The engine reports the
// destruction back as an event, which removes the registry entry.
func (o *Orchestrator) destroyPlayer(guildID string) {
	s, ok := o.Get(guildID)
	if !ok {
		return
	}
	if err := s.Player.Destroy(); err != nil {
		zlog.Warn().Msgf("failed to destroy player: guild=%s error=%v", guildID, err)
	}
}
