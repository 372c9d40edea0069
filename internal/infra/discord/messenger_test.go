package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/playkeeper/internal/app/chat"
	"github.com/osa030/playkeeper/internal/domain/track"
)

func restError(code int) *discordgo.RESTError {
	return &discordgo.RESTError{
		Message: &discordgo.APIErrorMessage{Code: code, Message: "test"},
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, got error)
	}{
		{
			name: "nil passes through",
			err:  nil,
			check: func(t *testing.T, got error) {
				assert.NoError(t, got)
			},
		},
		{
			name: "unknown message maps to message gone",
			err:  restError(discordgo.ErrCodeUnknownMessage),
			check: func(t *testing.T, got error) {
				assert.ErrorIs(t, got, chat.ErrMessageGone)
			},
		},
		{
			name: "unknown channel maps to message gone",
			err:  restError(discordgo.ErrCodeUnknownChannel),
			check: func(t *testing.T, got error) {
				assert.ErrorIs(t, got, chat.ErrMessageGone)
			},
		},
		{
			name: "missing permissions maps to forbidden",
			err:  restError(discordgo.ErrCodeMissingPermissions),
			check: func(t *testing.T, got error) {
				assert.ErrorIs(t, got, chat.ErrForbidden)
			},
		},
		{
			name: "missing access maps to forbidden",
			err:  restError(discordgo.ErrCodeMissingAccess),
			check: func(t *testing.T, got error) {
				assert.ErrorIs(t, got, chat.ErrForbidden)
			},
		},
		{
			name: "rate limit maps to typed error",
			err: &discordgo.RateLimitError{
				RateLimit: &discordgo.RateLimit{
					TooManyRequests: &discordgo.TooManyRequests{RetryAfter: 3 * time.Second},
				},
			},
			check: func(t *testing.T, got error) {
				var rl *chat.RateLimitedError
				require.ErrorAs(t, got, &rl)
				assert.Equal(t, 3*time.Second, rl.RetryAfter)
			},
		},
		{
			name: "unrelated rest error passes through",
			err:  restError(50035), // invalid form body
			check: func(t *testing.T, got error) {
				assert.Error(t, got)
				assert.NotErrorIs(t, got, chat.ErrMessageGone)
				assert.NotErrorIs(t, got, chat.ErrForbidden)
			},
		},
		{
			name: "plain error passes through",
			err:  errors.New("boom"),
			check: func(t *testing.T, got error) {
				assert.EqualError(t, got, "boom")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mapError(tt.err))
		})
	}
}

func TestNowPlayingEmbed(t *testing.T) {
	np := chat.NowPlaying{
		Track: track.Track{
			ID:         "t1",
			Title:      "Song",
			Author:     "Artist",
			Duration:   3 * time.Minute,
			ArtworkURL: "https://example.com/a.jpg",
		},
		Position: 72 * time.Second,
		Marker:   "marker-123",
	}

	e := nowPlayingEmbed(np)

	assert.Equal(t, "Song", e.Title)
	assert.Contains(t, e.Description, "1:12 / 3:00")
	assert.Contains(t, e.Description, "Artist")
	require.NotNil(t, e.Footer)
	assert.Equal(t, "marker-123", e.Footer.Text, "Marker must ride in the footer")
	require.NotNil(t, e.Thumbnail)
	assert.Equal(t, "https://example.com/a.jpg", e.Thumbnail.URL)
}

func TestNowPlayingEmbed_Stream(t *testing.T) {
	np := chat.NowPlaying{
		Track: track.Track{ID: "t1", Title: "Radio", Stream: true},
	}

	e := nowPlayingEmbed(np)
	assert.Contains(t, e.Description, "live")
}

func TestNowPlayingEmbed_PausedIndicator(t *testing.T) {
	np := chat.NowPlaying{
		Track:  track.Track{ID: "t1", Title: "Song", Duration: time.Minute},
		Paused: true,
	}

	e := nowPlayingEmbed(np)
	assert.Contains(t, e.Description, "⏸")
}

func TestExtractMarker(t *testing.T) {
	msg := &discordgo.Message{
		Embeds: []*discordgo.MessageEmbed{
			{Footer: &discordgo.MessageEmbedFooter{Text: "marker-abc"}},
		},
	}
	assert.Equal(t, "marker-abc", extractMarker(msg))

	assert.Empty(t, extractMarker(&discordgo.Message{}))
	assert.Empty(t, extractMarker(&discordgo.Message{
		Embeds: []*discordgo.MessageEmbed{{}},
	}))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{72 * time.Second, "1:12"},
		{10 * time.Minute, "10:00"},
		{time.Hour + 5*time.Minute + 3*time.Second, "1:05:03"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatDuration(tt.d))
	}
}

func TestControls_DisabledForFinalEdit(t *testing.T) {
	row, ok := controls(false)[0].(discordgo.ActionsRow)
	require.True(t, ok)
	for _, c := range row.Components {
		btn, ok := c.(discordgo.Button)
		require.True(t, ok)
		assert.True(t, btn.Disabled)
	}
}
