package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/playkeeper/internal/app/chat"
	"github.com/osa030/playkeeper/internal/app/engine"
	"github.com/osa030/playkeeper/internal/domain/track"
)

// Mock messenger recording notices
type noticeRecorder struct {
	mu      sync.Mutex
	posted  []chat.Notice
	edited  []chat.Notice
	postErr error
}

func (r *noticeRecorder) PostNowPlaying(_ context.Context, channelID string, _ chat.NowPlaying) (chat.MessageRef, error) {
	return chat.MessageRef{ChannelID: channelID, MessageID: "np"}, nil
}

func (r *noticeRecorder) EditNowPlaying(_ context.Context, _ chat.MessageRef, _ chat.NowPlaying) error {
	return nil
}

func (r *noticeRecorder) PostNotice(_ context.Context, channelID string, n chat.Notice) (chat.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.postErr != nil {
		return chat.MessageRef{}, r.postErr
	}
	r.posted = append(r.posted, n)
	return chat.MessageRef{ChannelID: channelID, MessageID: "notice"}, nil
}

func (r *noticeRecorder) EditNotice(_ context.Context, _ chat.MessageRef, n chat.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edited = append(r.edited, n)
	return nil
}

func (r *noticeRecorder) Delete(_ context.Context, _ chat.MessageRef) error { return nil }

func (r *noticeRecorder) Recent(_ context.Context, _ string, _ int) ([]chat.Message, error) {
	return nil, nil
}

func (r *noticeRecorder) postedKinds() []chat.NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]chat.NoticeKind, len(r.posted))
	for i, n := range r.posted {
		kinds[i] = n.Kind
	}
	return kinds
}

func (r *noticeRecorder) editedKinds() []chat.NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]chat.NoticeKind, len(r.edited))
	for i, n := range r.edited {
		kinds[i] = n.Kind
	}
	return kinds
}

// Fixed-state player
type fixedPlayer struct {
	mu       sync.Mutex
	state    engine.State
	track    track.Track
	hasTrack bool
}

func (p *fixedPlayer) State() engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fixedPlayer) CurrentTrack() (track.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track, p.hasTrack
}

func (p *fixedPlayer) Position() time.Duration { return 0 }
func (p *fixedPlayer) QueueSize() int          { return 0 }
func (p *fixedPlayer) Enqueue(_ track.Track)   {}
func (p *fixedPlayer) Play() error             { return nil }
func (p *fixedPlayer) Destroy() error          { return nil }

type destroyFlag struct {
	mu     sync.Mutex
	called bool
}

func (d *destroyFlag) destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.called = true
}

func (d *destroyFlag) wasCalled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.called
}

func activePlayer() *fixedPlayer {
	return &fixedPlayer{
		state:    engine.StatePlaying,
		track:    track.Track{ID: "t1", Title: "Song", Author: "Artist"},
		hasTrack: true,
	}
}

func TestMonitor_PromptPostedAfterIdleInterval(t *testing.T) {
	rec := &noticeRecorder{}
	flag := &destroyFlag{}
	m := New("g", "ch", rec, activePlayer(), flag.destroy, Config{
		IdleAfter:     20 * time.Millisecond,
		PromptTimeout: time.Hour,
	})
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return m.State() == StatePromptPending
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []chat.NoticeKind{chat.NoticeActivityPrompt}, rec.postedKinds())
	assert.False(t, flag.wasCalled())
}

func TestMonitor_ConfirmRestartsCadence(t *testing.T) {
	rec := &noticeRecorder{}
	flag := &destroyFlag{}
	m := New("g", "ch", rec, activePlayer(), flag.destroy, Config{
		IdleAfter:     20 * time.Millisecond,
		PromptTimeout: time.Hour,
	})
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.State() == StatePromptPending
	}, time.Second, 5*time.Millisecond)

	before := m.SessionStart()
	m.Confirm()

	assert.Equal(t, StateIdle, m.State())
	assert.True(t, m.SessionStart().After(before) || m.SessionStart().Equal(before))
	assert.Equal(t, []chat.NoticeKind{chat.NoticeActivityConfirmed}, rec.editedKinds(),
		"The prompt should be replaced with a confirmed notice")
	assert.False(t, flag.wasCalled())

	// The cadence restarts: a second prompt arrives after another interval.
	assert.Eventually(t, func() bool {
		return m.State() == StatePromptPending
	}, time.Second, 5*time.Millisecond)
}

func TestMonitor_ConfirmWithoutPromptIsNoOp(t *testing.T) {
	rec := &noticeRecorder{}
	m := New("g", "ch", rec, activePlayer(), func() {}, Config{
		IdleAfter:     time.Hour,
		PromptTimeout: time.Hour,
	})
	defer m.Stop()

	m.Confirm()

	assert.Equal(t, StateIdle, m.State())
	assert.Empty(t, rec.editedKinds())
}

func TestMonitor_TimeoutDestroysSession(t *testing.T) {
	rec := &noticeRecorder{}
	flag := &destroyFlag{}
	m := New("g", "ch", rec, activePlayer(), flag.destroy, Config{
		IdleAfter:     20 * time.Millisecond,
		PromptTimeout: 20 * time.Millisecond,
	})
	defer m.Stop()

	assert.Eventually(t, flag.wasCalled, time.Second, 5*time.Millisecond,
		"An unacknowledged prompt must destroy the session")

	assert.Equal(t, StateDestroyed, m.State())
	assert.Equal(t, []chat.NoticeKind{chat.NoticeActivityPrompt, chat.NoticeDisconnected}, rec.postedKinds())
	assert.Equal(t, []chat.NoticeKind{chat.NoticeActivityTimedOut}, rec.editedKinds())
}

func TestMonitor_CycleSkippedWhenNothingPlaying(t *testing.T) {
	rec := &noticeRecorder{}
	flag := &destroyFlag{}
	idle := &fixedPlayer{state: engine.StateIdle}
	m := New("g", "ch", rec, idle, flag.destroy, Config{
		IdleAfter:     15 * time.Millisecond,
		PromptTimeout: 15 * time.Millisecond,
	})
	defer m.Stop()

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, StateIdle, m.State(), "Idle player must never trigger a prompt")
	assert.Empty(t, rec.postedKinds())
	assert.False(t, flag.wasCalled())
}

func TestMonitor_PausedPlaybackStillPrompts(t *testing.T) {
	rec := &noticeRecorder{}
	p := activePlayer()
	p.state = engine.StatePaused
	m := New("g", "ch", rec, p, func() {}, Config{
		IdleAfter:     20 * time.Millisecond,
		PromptTimeout: time.Hour,
	})
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return m.State() == StatePromptPending
	}, time.Second, 5*time.Millisecond, "Paused playback still counts as unattended")
}

func TestMonitor_PostFailureRetriesNextCycle(t *testing.T) {
	rec := &noticeRecorder{postErr: assert.AnError}
	flag := &destroyFlag{}
	m := New("g", "ch", rec, activePlayer(), flag.destroy, Config{
		IdleAfter:     20 * time.Millisecond,
		PromptTimeout: time.Hour,
	})
	defer m.Stop()

	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, StateIdle, m.State(), "A failed prompt post reverts to idle and retries later")
	assert.False(t, flag.wasCalled())

	// Heal the messenger: the next cycle posts normally.
	rec.mu.Lock()
	rec.postErr = nil
	rec.mu.Unlock()

	assert.Eventually(t, func() bool {
		return m.State() == StatePromptPending
	}, time.Second, 5*time.Millisecond)
}

func TestMonitor_StopIsTerminal(t *testing.T) {
	rec := &noticeRecorder{}
	flag := &destroyFlag{}
	m := New("g", "ch", rec, activePlayer(), flag.destroy, Config{
		IdleAfter:     20 * time.Millisecond,
		PromptTimeout: 20 * time.Millisecond,
	})

	m.Stop()
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, StateDestroyed, m.State())
	assert.Empty(t, rec.postedKinds(), "A stopped monitor must not post")
	assert.False(t, flag.wasCalled(), "Stop never destroys the audio session")

	// Safe to call again.
	m.Stop()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "prompt_pending", StatePromptPending.String())
	assert.Equal(t, "destroyed", StateDestroyed.String())
	assert.Equal(t, "unknown", State(99).String())
}
