package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/bookmatch-backend/internal/data/catalogdb"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type RecommendStatus string

const (
	RecommendStatusRecommended   RecommendStatus = "recommended"
	RecommendStatusNoPreferences RecommendStatus = "no_preferences"
	RecommendStatusNoMatch       RecommendStatus = "no_match"
)

type RecommendResult struct {
	MemberID int64           `json:"member_id"`
	Status   RecommendStatus `json:"status"`
	ISBN     string          `json:"isbn,omitempty"`
	BookID   int64           `json:"book_id,omitempty"`
	// RecommendationDate is the calendar day the recommendation is for.
	RecommendationDate string `json:"recommendation_date,omitempty"`
	// Drift is set when the nearest vector record had no relational book.
	Drift bool `json:"drift,omitempty"`
}

// RecommendationResolver picks one book for a member from the nearest
// neighbour of their joined preference terms and records it for the next day.
// Past picks are not excluded and there is no diversity or decay.
type RecommendationResolver interface {
	Recommend(ctx context.Context, memberID int64) (*RecommendResult, error)
}

type recommendationResolver struct {
	log     *logger.Logger
	store   catalogdb.Store
	index   BookIndex
	metrics *observability.Metrics
	alerter *observability.DriftAlerter
	now     func() time.Time
}

func NewRecommendationResolver(
	baseLog *logger.Logger,
	store catalogdb.Store,
	index BookIndex,
	metrics *observability.Metrics,
	alerter *observability.DriftAlerter,
) RecommendationResolver {
	return &recommendationResolver{
		log:     baseLog.With("service", "RecommendationResolver"),
		store:   store,
		index:   index,
		metrics: metrics,
		alerter: alerter,
		now:     time.Now,
	}
}

func (s *recommendationResolver) Recommend(ctx context.Context, memberID int64) (*RecommendResult, error) {
	ctx, span := tracer.Start(ctx, "recommendation.resolve")
	defer span.End()
	span.SetAttributes(attribute.Int64("member.id", memberID))

	res, err := s.recommend(ctx, memberID)
	if err != nil {
		s.metrics.IncRecommendation("failed")
		span.RecordError(err)
		return nil, err
	}
	s.metrics.IncRecommendation(string(res.Status))
	span.SetAttributes(attribute.String("recommendation.status", string(res.Status)))
	return res, nil
}

func (s *recommendationResolver) recommend(ctx context.Context, memberID int64) (*RecommendResult, error) {
	res := &RecommendResult{MemberID: memberID}

	prefs, err := s.store.ListPreferences(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	if len(prefs) == 0 {
		res.Status = RecommendStatusNoPreferences
		return res, nil
	}

	matches, err := s.index.QueryNearest(ctx, strings.Join(prefs, " "), 1)
	if err != nil {
		return nil, fmt.Errorf("query nearest: %w", err)
	}
	if len(matches) == 0 {
		res.Status = RecommendStatusNoMatch
		return res, nil
	}
	isbn := matches[0].ISBN
	res.ISBN = isbn

	bookID, ok, err := s.store.LookupBookIDByISBN(ctx, isbn)
	if err != nil {
		return nil, fmt.Errorf("lookup book id: %w", err)
	}
	if !ok {
		drift := &DriftError{ISBN: isbn}
		observability.ReportCatalogDrift(ctx, s.log, s.metrics, s.alerter, "resolver", []string{isbn})
		s.log.Warn("Recommendation unresolvable", "member_id", memberID, "error", drift)
		res.Status = RecommendStatusNoMatch
		res.Drift = true
		return res, nil
	}

	day := s.now().AddDate(0, 0, 1)
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if _, err := s.store.RecordRecommendation(ctx, memberID, bookID, date); err != nil {
		return nil, fmt.Errorf("record recommendation: %w", err)
	}
	res.Status = RecommendStatusRecommended
	res.BookID = bookID
	res.RecommendationDate = date.Format(time.DateOnly)
	return res, nil
}
