// Package redishistory provides a Redis-backed implementation of the
// play-history store. Play counts live in sorted sets scored by count;
// chronological history lives in capped lists of JSON records.
package redishistory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playkeeper/internal/app/history"
	"github.com/osa030/playkeeper/internal/domain/track"
)

// Key layout.
const (
	keyUserTop    = "hist:user:%s:top"    // ZSET member=track JSON key, score=play count
	keyGuildTop   = "hist:guild:%s:top"   // ZSET
	keyGlobalTop  = "hist:global:top"     // ZSET
	keyUserLog    = "hist:user:%s:log"    // LIST of playRecord JSON, newest first
	keyGuildLog   = "hist:guild:%s:log"   // LIST
	keyGlobalLog  = "hist:global:log"     // LIST
	keyLastPlayed = "hist:lastplayed"     // HASH track ID -> unix seconds
)

// Config represents store configuration.
type Config struct {
	Addr         string
	Password     string
	DB           int
	HistoryLimit int // Maximum records returned per chronological query
}

// Store is a Redis-backed history.Store.
type Store struct {
	rdb   *redis.Client
	limit int
}

// entry is the JSON shape of a stored track, shared by sorted-set members
// and log records.
type entry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Duration int64  `json:"duration_ms"`
	Artwork  string `json:"artwork,omitempty"`
	Source   string `json:"source,omitempty"`
	PlayedAt int64  `json:"played_at,omitempty"` // Unix seconds, log records only
}

func (e entry) track() track.Track {
	return track.Track{
		ID:         e.ID,
		Title:      e.Title,
		Author:     e.Author,
		Duration:   time.Duration(e.Duration) * time.Millisecond,
		ArtworkURL: e.Artwork,
		Source:     e.Source,
	}
}

// New creates a store and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 500
	}

	return &Store{rdb: rdb, limit: limit}, nil
}

// NewWithClient wraps an existing client (used by tests).
func NewWithClient(rdb *redis.Client, historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = 500
	}
	return &Store{rdb: rdb, limit: historyLimit}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// UserTopTracks returns the user's most-played tracks, highest count first.
func (s *Store) UserTopTracks(ctx context.Context, userID string, n int) ([]history.TopTrack, error) {
	return s.topTracks(ctx, fmt.Sprintf(keyUserTop, userID), n)
}

// GuildTopTracks returns the guild's most-played tracks, highest count first.
func (s *Store) GuildTopTracks(ctx context.Context, guildID string, n int) ([]history.TopTrack, error) {
	return s.topTracks(ctx, fmt.Sprintf(keyGuildTop, guildID), n)
}

// GlobalTopTracks returns the globally most-played tracks.
func (s *Store) GlobalTopTracks(ctx context.Context, n int) ([]history.TopTrack, error) {
	return s.topTracks(ctx, keyGlobalTop, n)
}

// UserHistory returns the user's plays, newest first.
func (s *Store) UserHistory(ctx context.Context, userID string) ([]history.PlayRecord, error) {
	return s.playLog(ctx, fmt.Sprintf(keyUserLog, userID))
}

// GuildHistory returns the guild's plays, newest first.
func (s *Store) GuildHistory(ctx context.Context, guildID string) ([]history.PlayRecord, error) {
	return s.playLog(ctx, fmt.Sprintf(keyGuildLog, guildID))
}

// GlobalHistory returns global plays, newest first.
func (s *Store) GlobalHistory(ctx context.Context) ([]history.PlayRecord, error) {
	return s.playLog(ctx, keyGlobalLog)
}

// RecordPlay appends a play to all three scopes and bumps the counters.
// The write side is the surrounding bot's concern; it is provided here so a
// deployment using this store has a single owner for the key layout.
func (s *Store) RecordPlay(ctx context.Context, t track.Track, userID, guildID string, playedAt time.Time) error {
	e := entry{
		ID:       t.ID,
		Title:    t.Title,
		Author:   t.Author,
		Duration: t.Duration.Milliseconds(),
		Artwork:  t.ArtworkURL,
		Source:   t.Source,
	}
	member, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "failed to marshal track")
	}

	e.PlayedAt = playedAt.Unix()
	record, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "failed to marshal play record")
	}

	pipe := s.rdb.TxPipeline()
	for _, key := range []string{fmt.Sprintf(keyUserTop, userID), fmt.Sprintf(keyGuildTop, guildID), keyGlobalTop} {
		pipe.ZIncrBy(ctx, key, 1, string(member))
	}
	for _, key := range []string{fmt.Sprintf(keyUserLog, userID), fmt.Sprintf(keyGuildLog, guildID), keyGlobalLog} {
		pipe.LPush(ctx, key, string(record))
		pipe.LTrim(ctx, key, 0, int64(s.limit-1))
	}
	pipe.HSet(ctx, keyLastPlayed, t.ID, playedAt.Unix())

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to record play")
	}
	return nil
}

// topTracks reads a count-scored sorted set, newest-play timestamps joined
// from the last-played hash.
func (s *Store) topTracks(ctx context.Context, key string, n int) ([]history.TopTrack, error) {
	if n <= 0 {
		return nil, nil
	}

	members, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read top tracks: key=%s", key)
	}

	out := make([]history.TopTrack, 0, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		raw, ok := m.Member.(string)
		if !ok {
			continue
		}
		var e entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			zlog.Warn().Msgf("redishistory: skipping malformed member: key=%s error=%v", key, err)
			continue
		}

		out = append(out, history.TopTrack{
			Track:     e.track(),
			PlayCount: int(m.Score),
		})
		ids = append(ids, e.ID)
	}

	// Join last-played timestamps in a single round trip. HMGET returns
	// values aligned with the requested fields, nil for missing ones.
	if len(ids) > 0 {
		vals, err := s.rdb.HMGet(ctx, keyLastPlayed, ids...).Result()
		if err != nil {
			zlog.Warn().Msgf("redishistory: failed to read last-played timestamps: key=%s error=%v", key, err)
			return out, nil
		}
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
				out[i].LastPlayed = time.Unix(ts, 0)
			}
		}
	}
	return out, nil
}

// playLog reads a chronological list, newest first.
func (s *Store) playLog(ctx context.Context, key string) ([]history.PlayRecord, error) {
	raws, err := s.rdb.LRange(ctx, key, 0, int64(s.limit-1)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read play log: key=%s", key)
	}

	out := make([]history.PlayRecord, 0, len(raws))
	for _, raw := range raws {
		var e entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			zlog.Warn().Msgf("redishistory: skipping malformed record: key=%s error=%v", key, err)
			continue
		}
		out = append(out, history.PlayRecord{
			Track:    e.track(),
			PlayedAt: time.Unix(e.PlayedAt, 0),
		})
	}
	return out, nil
}
