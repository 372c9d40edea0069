package engine

import "github.com/osa030/playkeeper/internal/domain/track"

// EventType represents an audio-engine event type.
type EventType int

const (
	EventTrackStarted     EventType = iota // Track started playing
	EventTrackEnded                        // Track finished playing
	EventQueueEmptied                      // Queue became empty
	EventSessionDestroyed                  // Engine session was destroyed
	EventPausedChanged                     // Playback was paused or resumed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventQueueEmptied:
		return "queue_emptied"
	case EventSessionDestroyed:
		return "session_destroyed"
	case EventPausedChanged:
		return "paused_changed"
	default:
		return "unknown"
	}
}

// Event represents an inbound audio-engine event for one guild.
type Event struct {
	Type   EventType
	Track  *track.Track // Subject track (nil for queue/session events)
	Reason string       // End reason for EventTrackEnded
	Paused bool         // New paused state for EventPausedChanged
}
