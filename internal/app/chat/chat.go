// Package chat declares the boundary to the chat platform. This core
// supplies data payloads; rendering markup is the messenger's job.
package chat

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/playkeeper/internal/domain/track"
)

// Sentinel errors the messenger maps platform failures onto. Anything else
// is treated as transient and swallowed by the caller.
var (
	ErrMessageGone = errors.New("message deleted or inaccessible")
	ErrForbidden   = errors.New("missing permission")
)

// RateLimitedError signals the platform asked us to back off.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return "rate limited by platform"
}

// MessageRef is an opaque handle to a posted message.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// Message is a fetched channel message, carrying only what this core needs
// to recognize its own stale posts.
type Message struct {
	Ref    MessageRef
	Marker string // Opaque marker set by this core, empty for foreign messages
}

// NowPlaying is the data payload for the now-playing display.
type NowPlaying struct {
	Track           track.Track
	Position        time.Duration
	Paused          bool
	ControlsEnabled bool
	Marker          string // Opaque marker identifying this session's messages
}

// Notice is a plain informational payload (activity prompts, disconnect
// notices). Kind selects the message template on the platform side.
type Notice struct {
	Kind    NoticeKind
	Track   *track.Track // Context track, if any
	Expires time.Time    // Response deadline for prompts (zero otherwise)
}

// NoticeKind identifies the notice template.
type NoticeKind string

const (
	NoticeActivityPrompt    NoticeKind = "activity_prompt"
	NoticeActivityConfirmed NoticeKind = "activity_confirmed"
	NoticeActivityTimedOut  NoticeKind = "activity_timed_out"
	NoticeDisconnected      NoticeKind = "disconnected"
)

// Messenger is the only chat-platform surface this core touches.
type Messenger interface {
	PostNowPlaying(ctx context.Context, channelID string, np NowPlaying) (MessageRef, error)
	EditNowPlaying(ctx context.Context, ref MessageRef, np NowPlaying) error
	PostNotice(ctx context.Context, channelID string, n Notice) (MessageRef, error)
	EditNotice(ctx context.Context, ref MessageRef, n Notice) error
	Delete(ctx context.Context, ref MessageRef) error
	Recent(ctx context.Context, channelID string, limit int) ([]Message, error)
}
