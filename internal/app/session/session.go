// Package session provides the per-guild session registry and the
// orchestrator that dispatches audio-engine events to session managers.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/osa030/playkeeper/internal/app/activity"
	"github.com/osa030/playkeeper/internal/app/autoplay"
	"github.com/osa030/playkeeper/internal/app/display"
	"github.com/osa030/playkeeper/internal/app/engine"
)

// Session is the set of per-guild managers coordinating one playback
// context. The player is borrowed from the audio engine, never owned;
// managers never outlive their session.
type Session struct {
	ID        string // Instance ID, for logs
	GuildID   string
	ChannelID string

	Player   engine.Player
	Display  *display.Display
	Monitor  *activity.Monitor
	Autoplay *autoplay.Engine

	mu           sync.Mutex
	cleanupToken int64
}

// newSession assembles a session around a borrowed player.
func newSession(guildID, channelID string, player engine.Player) *Session {
	return &Session{
		ID:        uuid.New().String(),
		GuildID:   guildID,
		ChannelID: channelID,
		Player:    player,
	}
}

// BumpCleanupToken supersedes any pending scheduled cleanup and returns the
// new token. Tokens increase monotonically even under clock retreat.
func (s *Session) BumpCleanupToken() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := time.Now().UnixNano()
	if token <= s.cleanupToken {
		token = s.cleanupToken + 1
	}
	s.cleanupToken = token
	return token
}

// CleanupToken returns the current cleanup token.
func (s *Session) CleanupToken() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupToken
}

// stop synchronously stops all timers owned by the session's managers.
func (s *Session) stop() {
	if s.Monitor != nil {
		s.Monitor.Stop()
	}
	if s.Display != nil {
		s.Display.Close()
	}
}
