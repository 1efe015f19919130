package services

import (
	"context"
	"fmt"

	"github.com/yungbote/bookmatch-backend/internal/data/catalogdb"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type SweepStats struct {
	Members       int `json:"members"`
	Recommended   int `json:"recommended"`
	NoPreferences int `json:"no_preferences"`
	NoMatch       int `json:"no_match"`
	Drift         int `json:"drift"`
	Failed        int `json:"failed"`
}

// RecommendationSweep resolves one recommendation for every member in turn.
// A failing member is logged and skipped.
type RecommendationSweep interface {
	Run(ctx context.Context) (*SweepStats, error)
}

type recommendationSweep struct {
	log      *logger.Logger
	store    catalogdb.Store
	resolver RecommendationResolver
}

func NewRecommendationSweep(baseLog *logger.Logger, store catalogdb.Store, resolver RecommendationResolver) RecommendationSweep {
	return &recommendationSweep{
		log:      baseLog.With("service", "RecommendationSweep"),
		store:    store,
		resolver: resolver,
	}
}

func (s *recommendationSweep) Run(ctx context.Context) (*SweepStats, error) {
	ids, err := s.store.ListAllMemberIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	stats := &SweepStats{Members: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		res, err := s.resolver.Recommend(ctx, id)
		if err != nil {
			stats.Failed++
			s.log.Warn("Recommendation failed for member, skipped", "member_id", id, "error", err)
			continue
		}
		switch res.Status {
		case RecommendStatusRecommended:
			stats.Recommended++
		case RecommendStatusNoPreferences:
			stats.NoPreferences++
		case RecommendStatusNoMatch:
			stats.NoMatch++
		}
		if res.Drift {
			stats.Drift++
		}
	}
	s.log.Info("Recommendation sweep finished",
		"members", stats.Members,
		"recommended", stats.Recommended,
		"no_preferences", stats.NoPreferences,
		"no_match", stats.NoMatch,
		"failed", stats.Failed,
	)
	return stats, nil
}
