// Package recommend provides the content-based recommendation scorer.
// Candidates are gathered through a waterfall of source tiers, each tier
// absorbing whatever earlier tiers under-delivered.
package recommend

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/playkeeper/internal/app/engine"
	"github.com/osa030/playkeeper/internal/app/history"
	"github.com/osa030/playkeeper/internal/domain/track"
)

// Tier names recorded as candidate provenance.
const (
	TierSimilarity = "similarity"
	TierUser       = "user_history"
	TierGuild      = "guild_history"
	TierGlobal     = "global_history"
	TierEngine     = "engine_native"
)

// Settings configures the scorer. Decoded from config via mapstructure.
type Settings struct {
	SimilarityFraction float64 `yaml:"similarity_fraction" mapstructure:"similarity_fraction" default:"0.5" validate:"gt=0,lte=1"`
	UserFraction       float64 `yaml:"user_fraction" mapstructure:"user_fraction" default:"0.3" validate:"gt=0,lte=1"`
	GuildFraction      float64 `yaml:"guild_fraction" mapstructure:"guild_fraction" default:"0.5" validate:"gt=0,lte=1"`
	TitleThreshold     float64 `yaml:"title_threshold" mapstructure:"title_threshold" default:"0.4" validate:"gte=0,lte=1"`
	AuthorThreshold    float64 `yaml:"author_threshold" mapstructure:"author_threshold" default:"0.7" validate:"gte=0,lte=1"`
	AuthorWeight       float64 `yaml:"author_weight" mapstructure:"author_weight" default:"0.7" validate:"gte=0,lte=1"`
	TitleWeight        float64 `yaml:"title_weight" mapstructure:"title_weight" default:"0.3" validate:"gte=0,lte=1"`
	PlayCountWeight    float64 `yaml:"play_count_weight" mapstructure:"play_count_weight" default:"0.7" validate:"gte=0,lte=1"`
	RecencyWeight      float64 `yaml:"recency_weight" mapstructure:"recency_weight" default:"0.3" validate:"gte=0,lte=1"`
	FetchSize          int     `yaml:"fetch_size" mapstructure:"fetch_size" default:"50" validate:"gte=1"`
	PreferredSource    string  `yaml:"preferred_source" mapstructure:"preferred_source"`
}

// SourceResolver re-resolves a track against the preferred high-fidelity
// source during the enrichment pass.
type SourceResolver interface {
	Resolve(ctx context.Context, query string) (*track.Track, error)
}

// Scorer produces ranked candidate lists from a seed track and the play
// history at user, guild and global scope.
type Scorer struct {
	store       history.Store
	search      engine.Searcher
	recommender engine.Recommender // optional engine-native capability, may be nil
	resolver    SourceResolver     // optional enrichment resolver, may be nil
	cfg         *Settings
}

// NewScorer creates a scorer. recommender and resolver are optional and may
// be nil; settings may be empty to accept all defaults.
func NewScorer(
	store history.Store,
	search engine.Searcher,
	recommender engine.Recommender,
	resolver SourceResolver,
	settings map[string]any,
) (*Scorer, error) {
	if store == nil {
		return nil, errors.New("history store is required")
	}
	if search == nil {
		return nil, errors.New("searcher is required")
	}

	var cfg Settings
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if w := cfg.AuthorWeight + cfg.TitleWeight; math.Abs(w-1.0) > 1e-9 {
		return nil, errors.New("author weight and title weight must sum to 1.0")
	}
	if w := cfg.PlayCountWeight + cfg.RecencyWeight; math.Abs(w-1.0) > 1e-9 {
		return nil, errors.New("play count weight and recency weight must sum to 1.0")
	}

	return &Scorer{
		store:       store,
		search:      search,
		recommender: recommender,
		resolver:    resolver,
		cfg:         &cfg,
	}, nil
}

// Suggest returns up to count candidate tracks for the given seed. It never
// returns an error: every internal failure degrades that tier to an empty
// contribution and scoring continues with the remaining tiers.
func (s *Scorer) Suggest(ctx context.Context, seed track.Track, userID, guildID string, count int) []track.Track {
	if count <= 0 {
		return nil
	}
	if !seed.HasIdentity() {
		zlog.Warn().Msgf("recommend: seed track has no identity, skipping: id=%q title=%q", seed.ID, seed.Title)
		return nil
	}

	selected := make([]track.Candidate, 0, count)
	seen := map[string]bool{seed.ID: true}
	remaining := count

	take := func(tier string, cands []track.Candidate, limit int) {
		for _, c := range cands {
			if limit <= 0 || remaining <= 0 {
				return
			}
			if c.Track.ID == "" || seen[c.Track.ID] {
				continue
			}
			seen[c.Track.ID] = true
			c.Tier = tier
			selected = append(selected, c)
			remaining--
			limit--
		}
	}

	// Tier 1: similarity over user+guild history, topped up from global.
	t1 := tierTarget(remaining, s.cfg.SimilarityFraction)
	take(TierSimilarity, s.similarityCandidates(ctx, seed, userID, guildID, seen, t1), t1)

	// Tier 2: requester's own most-played tracks.
	take(TierUser, s.topTrackCandidates(ctx, TierUser, func(ctx context.Context, n int) ([]history.TopTrack, error) {
		return s.store.UserTopTracks(ctx, userID, n)
	}), tierTarget(remaining, s.cfg.UserFraction))

	// Tier 3: guild's most-played tracks, ranked by play count and recency.
	take(TierGuild, s.guildCandidates(ctx, guildID), tierTarget(remaining, s.cfg.GuildFraction))

	// Tier 4: global most-played fills whatever is left.
	take(TierGlobal, s.topTrackCandidates(ctx, TierGlobal, func(ctx context.Context, n int) ([]history.TopTrack, error) {
		return s.store.GlobalTopTracks(ctx, n)
	}), remaining)

	// Tier 5: engine-native fallback.
	if remaining > 0 {
		take(TierEngine, s.engineCandidates(ctx, seed), remaining)
	}

	result := make([]track.Track, 0, len(selected))
	for _, c := range selected {
		if c.Track.ID == "" {
			continue
		}
		result = append(result, c.Track)
	}

	shuffleTracks(result)
	if len(result) > count {
		result = result[:count]
	}

	s.enrich(ctx, result)

	zlog.Debug().Msgf("recommend: suggestion complete: seed=%s requested=%d returned=%d", seed.ID, count, len(result))
	return result
}

// tierTarget returns how many candidates a tier is asked for: a fraction of
// the remaining budget, rounded up so small budgets still request something.
func tierTarget(remaining int, fraction float64) int {
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(float64(remaining) * fraction))
}

// similarityCandidates gathers tier-1 candidates: tracks from the requester's
// and guild's history whose title or author is close to the seed, topped up
// from the global pool with a weighted score when the local pool yields fewer
// than requested.
func (s *Scorer) similarityCandidates(ctx context.Context, seed track.Track, userID, guildID string, seen map[string]bool, requested int) []track.Candidate {
	pool := make([]track.Track, 0)

	if records, err := s.store.UserHistory(ctx, userID); err != nil {
		zlog.Warn().Msgf("recommend: user history unavailable: user=%s error=%v", userID, err)
	} else {
		for _, r := range records {
			pool = append(pool, r.Track)
		}
	}

	if records, err := s.store.GuildHistory(ctx, guildID); err != nil {
		zlog.Warn().Msgf("recommend: guild history unavailable: guild=%s error=%v", guildID, err)
	} else {
		for _, r := range records {
			pool = append(pool, r.Track)
		}
	}

	var out []track.Candidate
	local := map[string]bool{}
	for _, t := range pool {
		if t.ID == "" || t.ID == seed.ID || seen[t.ID] || local[t.ID] {
			continue
		}
		titleSim := similarity(seed.Title, t.Title)
		authorSim := similarity(seed.Author, t.Author)
		if titleSim > s.cfg.TitleThreshold || authorSim > s.cfg.AuthorThreshold {
			local[t.ID] = true
			score := titleSim
			if authorSim > score {
				score = authorSim
			}
			out = append(out, track.Candidate{Track: t, Score: score})
		}
	}

	if len(out) >= requested {
		return out
	}

	// Top up from the global pool, ranked by the weighted similarity score.
	globalRecords, err := s.store.GlobalHistory(ctx)
	if err != nil {
		zlog.Warn().Msgf("recommend: global history unavailable: error=%v", err)
		return out
	}

	var topUp []track.Candidate
	for _, r := range globalRecords {
		t := r.Track
		if t.ID == "" || t.ID == seed.ID || seen[t.ID] || local[t.ID] {
			continue
		}
		titleSim := similarity(seed.Title, t.Title)
		authorSim := similarity(seed.Author, t.Author)
		if titleSim > s.cfg.TitleThreshold || authorSim > s.cfg.AuthorThreshold {
			local[t.ID] = true
			topUp = append(topUp, track.Candidate{
				Track: t,
				Score: s.cfg.AuthorWeight*authorSim + s.cfg.TitleWeight*titleSim,
			})
		}
	}
	sort.SliceStable(topUp, func(i, j int) bool {
		return topUp[i].Score > topUp[j].Score
	})

	return append(out, topUp...)
}

// topTrackCandidates turns a ranked top-track fetch into candidates,
// degrading to empty on store failure.
func (s *Scorer) topTrackCandidates(ctx context.Context, tier string, fetch func(context.Context, int) ([]history.TopTrack, error)) []track.Candidate {
	tops, err := fetch(ctx, s.cfg.FetchSize)
	if err != nil {
		zlog.Warn().Msgf("recommend: tier source unavailable: tier=%s error=%v", tier, err)
		return nil
	}

	out := make([]track.Candidate, 0, len(tops))
	for _, tt := range tops {
		out = append(out, track.Candidate{Track: tt.Track})
	}
	return out
}

// guildCandidates fetches the guild's top tracks and re-ranks them by
// weighted play count and recency, both normalized within the batch.
func (s *Scorer) guildCandidates(ctx context.Context, guildID string) []track.Candidate {
	tops, err := s.store.GuildTopTracks(ctx, guildID, s.cfg.FetchSize)
	if err != nil {
		zlog.Warn().Msgf("recommend: guild top tracks unavailable: guild=%s error=%v", guildID, err)
		return nil
	}
	if len(tops) == 0 {
		return nil
	}

	maxCount := 0
	var newest, oldest time.Time
	for i, tt := range tops {
		if tt.PlayCount > maxCount {
			maxCount = tt.PlayCount
		}
		if i == 0 || tt.LastPlayed.After(newest) {
			newest = tt.LastPlayed
		}
		if i == 0 || tt.LastPlayed.Before(oldest) {
			oldest = tt.LastPlayed
		}
	}

	span := newest.Sub(oldest)
	scored := make([]track.Candidate, 0, len(tops))
	for _, tt := range tops {
		countScore := 0.0
		if maxCount > 0 {
			countScore = float64(tt.PlayCount) / float64(maxCount)
		}
		recencyScore := 1.0
		if span > 0 {
			recencyScore = float64(tt.LastPlayed.Sub(oldest)) / float64(span)
		}
		scored = append(scored, track.Candidate{
			Track: tt.Track,
			Score: s.cfg.PlayCountWeight*countScore + s.cfg.RecencyWeight*recencyScore,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored
}

// engineCandidates resolves the seed via search and delegates to the audio
// engine's native recommender when that capability is present.
func (s *Scorer) engineCandidates(ctx context.Context, seed track.Track) []track.Candidate {
	if s.recommender == nil {
		return nil
	}

	result, err := s.search.Search(ctx, seed.ID)
	if err != nil || result.Empty() {
		zlog.Debug().Msgf("recommend: seed not resolvable for native recommendations: seed=%s error=%v", seed.ID, err)
		return nil
	}

	recs, err := s.recommender.NativeRecommendations(ctx, result.Tracks[0])
	if err != nil {
		zlog.Warn().Msgf("recommend: native recommendations failed: seed=%s error=%v", seed.ID, err)
		return nil
	}

	out := make([]track.Candidate, 0, len(recs))
	for _, t := range recs {
		out = append(out, track.Candidate{Track: t})
	}
	return out
}

// enrich re-resolves tracks that are not from the preferred source and swaps
// in the match, keeping count and order. A failed swap keeps the original.
func (s *Scorer) enrich(ctx context.Context, tracks []track.Track) {
	if s.resolver == nil || s.cfg.PreferredSource == "" {
		return
	}

	for i, t := range tracks {
		if t.Source == s.cfg.PreferredSource {
			continue
		}
		query := fmt.Sprintf("%s - %s", t.Author, t.Title)
		match, err := s.resolver.Resolve(ctx, query)
		if err != nil || match == nil {
			zlog.Debug().Msgf("recommend: enrichment miss, keeping original: track=%s error=%v", t.ID, err)
			continue
		}
		tracks[i] = *match
	}
}

// shuffleTracks shuffles in place with a crypto-seeded RNG.
func shuffleTracks(tracks []track.Track) {
	var cryptoSeed int64
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		cryptoSeed = int64(binary.LittleEndian.Uint64(buf[:]))
	} else {
		cryptoSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(cryptoSeed))

	rng.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
}
