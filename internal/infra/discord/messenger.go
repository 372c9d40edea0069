// Package discord provides the discordgo implementation of the chat
// boundary. It renders now-playing embeds and notices, and maps Discord
// REST failures onto the chat error taxonomy.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/osa030/playkeeper/internal/app/chat"
)

// Messenger implements chat.Messenger on top of a discordgo session.
type Messenger struct {
	s *discordgo.Session
}

// New wraps an existing discordgo session.
func New(s *discordgo.Session) *Messenger {
	return &Messenger{s: s}
}

// PostNowPlaying posts a now-playing embed and returns its reference.
func (m *Messenger) PostNowPlaying(ctx context.Context, channelID string, np chat.NowPlaying) (chat.MessageRef, error) {
	msg, err := m.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{nowPlayingEmbed(np)},
		Components: controls(np.ControlsEnabled),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return chat.MessageRef{}, mapError(err)
	}
	return chat.MessageRef{ChannelID: channelID, MessageID: msg.ID}, nil
}

// EditNowPlaying edits an existing now-playing message in place.
func (m *Messenger) EditNowPlaying(ctx context.Context, ref chat.MessageRef, np chat.NowPlaying) error {
	embeds := []*discordgo.MessageEmbed{nowPlayingEmbed(np)}
	comps := controls(np.ControlsEnabled)
	_, err := m.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    ref.ChannelID,
		ID:         ref.MessageID,
		Embeds:     &embeds,
		Components: &comps,
	}, discordgo.WithContext(ctx))
	return mapError(err)
}

// PostNotice posts an informational notice.
func (m *Messenger) PostNotice(ctx context.Context, channelID string, n chat.Notice) (chat.MessageRef, error) {
	msg, err := m.s.ChannelMessageSendEmbed(channelID, noticeEmbed(n), discordgo.WithContext(ctx))
	if err != nil {
		return chat.MessageRef{}, mapError(err)
	}
	return chat.MessageRef{ChannelID: channelID, MessageID: msg.ID}, nil
}

// EditNotice replaces a notice in place.
func (m *Messenger) EditNotice(ctx context.Context, ref chat.MessageRef, n chat.Notice) error {
	_, err := m.s.ChannelMessageEditEmbed(ref.ChannelID, ref.MessageID, noticeEmbed(n), discordgo.WithContext(ctx))
	return mapError(err)
}

// Delete removes a message.
func (m *Messenger) Delete(ctx context.Context, ref chat.MessageRef) error {
	return mapError(m.s.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)))
}

// Recent fetches the most recent channel messages, extracting the marker
// embedded in this bot's own now-playing posts.
func (m *Messenger) Recent(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	msgs, err := m.s.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]chat.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, chat.Message{
			Ref:    chat.MessageRef{ChannelID: channelID, MessageID: msg.ID},
			Marker: extractMarker(msg),
		})
	}
	return out, nil
}

// nowPlayingEmbed renders the display payload. The marker rides in the
// embed footer so stale messages can be identified reliably regardless of
// locale.
func nowPlayingEmbed(np chat.NowPlaying) *discordgo.MessageEmbed {
	title := np.Track.Title
	if title == "" {
		title = np.Track.ID
	}

	var position string
	if np.Track.Stream || np.Track.Duration <= 0 {
		position = "live"
	} else {
		position = fmt.Sprintf("%s / %s", formatDuration(np.Position), formatDuration(np.Track.Duration))
	}

	state := "▶"
	if np.Paused {
		state = "⏸"
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("%s %s\n%s", state, position, np.Track.Author),
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: np.Track.ArtworkURL},
		Footer:      &discordgo.MessageEmbedFooter{Text: np.Marker},
	}
}

// noticeEmbed renders a notice payload.
func noticeEmbed(n chat.Notice) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{}
	switch n.Kind {
	case chat.NoticeActivityPrompt:
		e.Title = "Still listening?"
		e.Description = "Playback has been running unattended for a while. Confirm to keep the session alive."
		if !n.Expires.IsZero() {
			e.Description += fmt.Sprintf("\nResponding before <t:%d:R> keeps the music going.", n.Expires.Unix())
		}
	case chat.NoticeActivityConfirmed:
		e.Title = "Thanks for confirming"
		e.Description = "The session stays connected."
	case chat.NoticeActivityTimedOut:
		e.Title = "No response"
		e.Description = "Nobody confirmed the session was still in use."
	case chat.NoticeDisconnected:
		e.Title = "Disconnected"
		e.Description = "Left the voice channel due to inactivity."
	default:
		e.Description = string(n.Kind)
	}
	return e
}

// controls renders the playback control row, disabled for the final edit.
func controls(enabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{CustomID: "playback:toggle", Emoji: &discordgo.ComponentEmoji{Name: "⏯"}, Style: discordgo.SecondaryButton, Disabled: !enabled},
				discordgo.Button{CustomID: "playback:skip", Emoji: &discordgo.ComponentEmoji{Name: "⏭"}, Style: discordgo.SecondaryButton, Disabled: !enabled},
			},
		},
	}
}

// extractMarker pulls the opaque marker out of a message's embed footer.
func extractMarker(msg *discordgo.Message) string {
	for _, e := range msg.Embeds {
		if e.Footer != nil && e.Footer.Text != "" {
			return e.Footer.Text
		}
	}
	return ""
}

// formatDuration renders m:ss (or h:mm:ss past the hour).
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// mapError converts discordgo failures into the chat error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return &chat.RateLimitedError{RetryAfter: rl.RetryAfter}
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return errors.Mark(err, chat.ErrMessageGone)
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return errors.Mark(err, chat.ErrForbidden)
		}
	}

	return err
}
