// Package display provides the throttled now-playing display synchronizer.
// It keeps at most one live message per session in sync with playback and
// never lets a failed UI refresh affect playback.
package display

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playkeeper/internal/app/chat"
	"github.com/osa030/playkeeper/internal/app/engine"
)

// Config holds display tuning parameters.
type Config struct {
	TickInterval     time.Duration // Periodic refresh attempt interval
	Throttle         time.Duration // Minimum gap since the last successful edit
	RateLimitBackoff time.Duration // Fixed push-forward on a rate-limit response
	EndClamp         time.Duration // Displayed position stays this far short of the end
	NearEndFraction  float64       // Snap window as a fraction of duration
	NearEndMin       time.Duration // Lower bound of the snap window
	NearEndMax       time.Duration // Upper bound of the snap window
	SweepLimit       int           // Recent messages scanned for stale duplicates
}

// Display synchronizes one session's now-playing message. Edits are strictly
// serialized: a refresh request is dropped while another edit is in flight.
type Display struct {
	guildID   string
	channelID string
	messenger chat.Messenger
	player    engine.Player
	cfg       Config
	marker    string

	now func() time.Time

	mu          sync.Mutex
	msg         *chat.MessageRef
	lastEdit    time.Time // Last successful post or edit
	nextAllowed time.Time // Pushed forward on rate limiting
	inFlight    bool
	closed      bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a display for one session and starts its periodic tick.
func New(guildID, channelID string, messenger chat.Messenger, player engine.Player, cfg Config) *Display {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Display{
		guildID:   guildID,
		channelID: channelID,
		messenger: messenger,
		player:    player,
		cfg:       cfg,
		marker:    uuid.New().String(),
		now:       time.Now,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go d.loop(ctx)
	return d
}

// loop drives the periodic refresh tick.
func (d *Display) loop(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.refresh(ctx)
		}
	}
}

// Attach adopts a freshly posted now-playing message, releasing and
// best-effort deleting any previously held one.
func (d *Display) Attach(ctx context.Context, ref chat.MessageRef) {
	d.mu.Lock()
	old := d.msg
	d.msg = &ref
	d.lastEdit = d.now()
	d.mu.Unlock()

	if old != nil && old.MessageID != ref.MessageID {
		if err := d.messenger.Delete(ctx, *old); err != nil {
			zlog.Debug().Msgf("display: failed to delete replaced message: guild=%s error=%v", d.guildID, err)
		}
	}
}

// OnTrackStarted reacts to a new track. When no live message is held (for
// example after the previous one was deleted) a replacement is posted and
// stale duplicates in recent channel history are swept.
func (d *Display) OnTrackStarted(ctx context.Context) {
	d.mu.Lock()
	held := d.msg != nil
	d.mu.Unlock()

	if held {
		d.refresh(ctx)
		return
	}

	np, ok := d.payload(true)
	if !ok {
		return
	}

	ref, err := d.messenger.PostNowPlaying(ctx, d.channelID, np)
	if err != nil {
		zlog.Warn().Msgf("display: failed to post now-playing message: guild=%s error=%v", d.guildID, err)
		return
	}

	d.mu.Lock()
	d.msg = &ref
	d.lastEdit = d.now()
	d.mu.Unlock()

	d.sweepStale(ctx, ref)
}

// OnPauseChanged requests a refresh after a pause state change.
func (d *Display) OnPauseChanged(ctx context.Context, paused bool) {
	zlog.Debug().Msgf("display: pause changed: guild=%s paused=%t", d.guildID, paused)
	d.refresh(ctx)
}

// ForceRefresh requests an immediate refresh attempt. The throttle and
// single-flight guards still apply.
func (d *Display) ForceRefresh(ctx context.Context) {
	d.refresh(ctx)
}

// OnStopped renders the final edit with controls disabled and releases the
// message reference. The periodic tick stays armed until Close.
func (d *Display) OnStopped(ctx context.Context) {
	d.mu.Lock()
	if d.msg == nil {
		d.mu.Unlock()
		return
	}
	ref := *d.msg
	d.msg = nil
	d.mu.Unlock()

	np, ok := d.payload(false)
	if !ok {
		return
	}
	if err := d.messenger.EditNowPlaying(ctx, ref, np); err != nil {
		zlog.Debug().Msgf("display: final edit failed: guild=%s error=%v", d.guildID, err)
	}
}

// Close performs the final edit and stops the tick. Safe to call more than
// once.
func (d *Display) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.OnStopped(ctx)

	d.cancel()
	<-d.done
}

// refresh attempts one edit of the live message, honoring the throttle, the
// rate-limit backoff and the single-flight guard.
func (d *Display) refresh(ctx context.Context) {
	d.mu.Lock()
	if d.closed || d.msg == nil || d.inFlight {
		d.mu.Unlock()
		return
	}
	now := d.now()
	if now.Before(d.nextAllowed) {
		d.mu.Unlock()
		return
	}
	if now.Sub(d.lastEdit) < d.cfg.Throttle {
		d.mu.Unlock()
		return
	}
	ref := *d.msg
	d.inFlight = true
	d.mu.Unlock()

	np, ok := d.payload(true)
	if !ok {
		d.mu.Lock()
		d.inFlight = false
		d.mu.Unlock()
		return
	}

	err := d.messenger.EditNowPlaying(ctx, ref, np)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight = false

	var rl *chat.RateLimitedError
	switch {
	case err == nil:
		d.lastEdit = d.now()
	case errors.Is(err, chat.ErrMessageGone), errors.Is(err, chat.ErrForbidden):
		zlog.Debug().Msgf("display: message unreachable, releasing reference: guild=%s error=%v", d.guildID, err)
		d.msg = nil
	case errors.As(err, &rl):
		d.nextAllowed = d.now().Add(d.cfg.RateLimitBackoff)
		zlog.Warn().Msgf("display: rate limited, backing off: guild=%s backoff=%v", d.guildID, d.cfg.RateLimitBackoff)
	default:
		zlog.Warn().Msgf("display: refresh failed: guild=%s error=%v", d.guildID, err)
	}
}

// payload builds the now-playing data payload from the player state.
func (d *Display) payload(controlsEnabled bool) (chat.NowPlaying, bool) {
	t, ok := d.player.CurrentTrack()
	if !ok {
		return chat.NowPlaying{}, false
	}

	return chat.NowPlaying{
		Track:           t,
		Position:        displayPosition(d.player.Position(), t.Duration, d.cfg),
		Paused:          d.player.State() == engine.StatePaused,
		ControlsEnabled: controlsEnabled,
		Marker:          d.marker,
	}, true
}

// sweepStale best-effort deletes stray now-playing messages from recent
// channel history, identified by this session's marker.
func (d *Display) sweepStale(ctx context.Context, keep chat.MessageRef) {
	msgs, err := d.messenger.Recent(ctx, d.channelID, d.cfg.SweepLimit)
	if err != nil {
		zlog.Debug().Msgf("display: failed to fetch recent messages for sweep: guild=%s error=%v", d.guildID, err)
		return
	}

	for _, m := range msgs {
		if m.Marker != d.marker || m.Ref.MessageID == keep.MessageID {
			continue
		}
		if err := d.messenger.Delete(ctx, m.Ref); err != nil {
			zlog.Debug().Msgf("display: failed to delete stale message: guild=%s message=%s error=%v", d.guildID, m.Ref.MessageID, err)
		}
	}
}

// displayPosition fudges the raw position for the progress bar: it is
// clamped short of the end, and snaps to the full duration once inside a
// dynamic near-end window so the bar completes instead of stalling short.
// Streams and unknown durations pass through untouched.
func displayPosition(raw, duration time.Duration, cfg Config) time.Duration {
	if duration <= 0 {
		return raw
	}

	pos := raw
	if clamped := duration - cfg.EndClamp; pos > clamped {
		pos = clamped
	}

	window := time.Duration(float64(duration) * cfg.NearEndFraction)
	if window < cfg.NearEndMin {
		window = cfg.NearEndMin
	}
	if window > cfg.NearEndMax {
		window = cfg.NearEndMax
	}

	if duration-pos <= window {
		return duration
	}
	return pos
}
