// Package activity provides the inactivity confirmation state machine.
// After a long stretch of unattended playback it posts a confirmation
// prompt; without a timely confirmation the session is destroyed.
package activity

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playkeeper/internal/app/chat"
	"github.com/osa030/playkeeper/internal/app/engine"
)

// State represents the monitor state.
type State int

const (
	StateIdle          State = iota // Waiting for the idle interval to elapse
	StatePromptPending              // Prompt posted, waiting for confirmation
	StateDestroyed                  // Terminal
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePromptPending:
		return "prompt_pending"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Config holds monitor timing parameters.
type Config struct {
	IdleAfter     time.Duration // Unattended playback span before a prompt
	PromptTimeout time.Duration // Response window before the session is destroyed
}

// Monitor is the per-session activity monitor. The 6h → 5m cadence is per
// session and reset only by explicit confirmation, never by track
// boundaries.
type Monitor struct {
	guildID   string
	channelID string
	messenger chat.Messenger
	player    engine.Player
	destroy   func() // Destroys the underlying audio session; owned by the session layer
	cfg       Config

	now func() time.Time

	mu           sync.Mutex
	state        State
	sessionStart time.Time
	prompt       *chat.MessageRef
	idleTimer    *time.Timer
	respTimer    *time.Timer
}

// New creates a monitor and arms the idle timer.
func New(guildID, channelID string, messenger chat.Messenger, player engine.Player, destroy func(), cfg Config) *Monitor {
	m := &Monitor{
		guildID:   guildID,
		channelID: channelID,
		messenger: messenger,
		player:    player,
		destroy:   destroy,
		cfg:       cfg,
		now:       time.Now,
		state:     StateIdle,
	}
	m.sessionStart = m.now()
	m.idleTimer = time.AfterFunc(cfg.IdleAfter, m.onIdleElapsed)
	return m
}

// State returns the current monitor state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionStart returns the time of the last confirmation or monitor start.
func (m *Monitor) SessionStart() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionStart
}

// Confirm handles a user confirmation of the pending prompt: the response
// timer is cleared, the prompt is replaced with a confirmed notice and the
// idle cadence restarts. A no-op unless a prompt is pending.
func (m *Monitor) Confirm() {
	m.mu.Lock()
	if m.state != StatePromptPending {
		m.mu.Unlock()
		return
	}

	if m.respTimer != nil {
		m.respTimer.Stop()
		m.respTimer = nil
	}
	ref := m.prompt
	m.prompt = nil
	m.state = StateIdle
	m.sessionStart = m.now()
	m.idleTimer.Reset(m.cfg.IdleAfter)
	m.mu.Unlock()

	zlog.Info().Msgf("activity confirmed, restarting cadence: guild=%s", m.guildID)

	if ref != nil {
		if err := m.messenger.EditNotice(context.Background(), *ref, chat.Notice{Kind: chat.NoticeActivityConfirmed}); err != nil {
			zlog.Debug().Msgf("activity: failed to update prompt after confirmation: guild=%s error=%v", m.guildID, err)
		}
	}
}

// Stop releases the monitor's timers without destroying the session. Used
// when the session is torn down externally.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateDestroyed {
		return
	}
	m.state = StateDestroyed
	m.idleTimer.Stop()
	if m.respTimer != nil {
		m.respTimer.Stop()
		m.respTimer = nil
	}
}

// onIdleElapsed fires when the idle interval elapses. The cycle is silently
// skipped and rescheduled when nothing is actively playing; a pending prompt
// suppresses any new one.
func (m *Monitor) onIdleElapsed() {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return
	}

	st := m.player.State()
	_, hasTrack := m.player.CurrentTrack()
	if (st != engine.StatePlaying && st != engine.StatePaused) || !hasTrack {
		m.idleTimer.Reset(m.cfg.IdleAfter)
		m.mu.Unlock()
		zlog.Debug().Msgf("activity: nothing playing, skipping cycle: guild=%s", m.guildID)
		return
	}

	m.state = StatePromptPending
	expires := m.now().Add(m.cfg.PromptTimeout)
	m.mu.Unlock()

	zlog.Info().Msgf("activity: posting confirmation prompt: guild=%s timeout=%v", m.guildID, m.cfg.PromptTimeout)

	t, _ := m.player.CurrentTrack()
	ref, err := m.messenger.PostNotice(context.Background(), m.channelID, chat.Notice{
		Kind:    chat.NoticeActivityPrompt,
		Track:   &t,
		Expires: expires,
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePromptPending {
		// Torn down while posting
		return
	}
	if err != nil {
		zlog.Warn().Msgf("activity: failed to post prompt, retrying next cycle: guild=%s error=%v", m.guildID, err)
		m.state = StateIdle
		m.idleTimer.Reset(m.cfg.IdleAfter)
		return
	}

	m.prompt = &ref
	m.respTimer = time.AfterFunc(m.cfg.PromptTimeout, m.onPromptTimeout)
}

// onPromptTimeout fires when the prompt goes unacknowledged: the prompt is
// replaced with a timed-out notice, a disconnect notice is posted and the
// audio session is destroyed. This is a designed outcome, not an error.
func (m *Monitor) onPromptTimeout() {
	m.mu.Lock()
	if m.state != StatePromptPending {
		m.mu.Unlock()
		return
	}
	m.state = StateDestroyed
	ref := m.prompt
	m.prompt = nil
	m.respTimer = nil
	m.idleTimer.Stop()
	m.mu.Unlock()

	zlog.Info().Msgf("activity: prompt timed out, destroying session: guild=%s", m.guildID)

	ctx := context.Background()
	if ref != nil {
		if err := m.messenger.EditNotice(ctx, *ref, chat.Notice{Kind: chat.NoticeActivityTimedOut}); err != nil {
			zlog.Debug().Msgf("activity: failed to update timed-out prompt: guild=%s error=%v", m.guildID, err)
		}
	}
	if _, err := m.messenger.PostNotice(ctx, m.channelID, chat.Notice{Kind: chat.NoticeDisconnected}); err != nil {
		zlog.Debug().Msgf("activity: failed to post disconnect notice: guild=%s error=%v", m.guildID, err)
	}

	m.destroy()
}
