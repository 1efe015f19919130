package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/bookmatch-backend/internal/data/repos/testutil"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/observability"
)

func newTestResolver(env *testEnv, now time.Time) *recommendationResolver {
	r := NewRecommendationResolver(env.log, env.store, env.index, nil, nil).(*recommendationResolver)
	r.now = func() time.Time { return now }
	return r
}

func TestRecommendNoPreferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	member := testutil.SeedMember(t, ctx, env.db)

	res, err := newTestResolver(env, time.Now()).Recommend(ctx, member.ID)
	require.NoError(t, err)
	require.Equal(t, RecommendStatusNoPreferences, res.Status)
	require.Zero(t, env.embed.calls, "vector store must not be touched")
	require.Zero(t, testutil.CountRows(t, ctx, env.db, &catalog.Recommendation{}, ""))
}

func TestRecommendResolvesExactMatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedTaxonomy(t)
	ctx := context.Background()
	sync := env.synchronizer()

	for _, tc := range []struct{ isbn, sub string }{{"X", "역사"}, {"Y", "SF"}, {"Z", "시"}} {
		_, err := sync.Synchronize(ctx, SyncInput{Book: bookInfo(tc.isbn, tc.isbn), SubCategories: []string{tc.sub}})
		require.NoError(t, err)
	}
	member := testutil.SeedMember(t, ctx, env.db)
	var history catalog.SubCategory
	require.NoError(t, env.db.Where("sub_category_name = ?", "역사").First(&history).Error)
	testutil.SeedPreference(t, ctx, env.db, member.ID, history.ID, time.Now())

	now := time.Date(2026, 12, 31, 0, 1, 0, 0, time.Local)
	res, err := newTestResolver(env, now).Recommend(ctx, member.ID)
	require.NoError(t, err)
	require.Equal(t, RecommendStatusRecommended, res.Status)
	require.Equal(t, "X", res.ISBN)
	require.Equal(t, "2027-01-01", res.RecommendationDate)

	wantID, ok, err := env.store.LookupBookIDByISBN(ctx, "X")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wantID, res.BookID)

	var rows []catalog.Recommendation
	require.NoError(t, env.db.Where("member_id = ?", member.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, wantID, rows[0].BookID)
}

func TestRecommendReportsDrift(t *testing.T) {
	env := newTestEnv(t)
	env.seedTaxonomy(t)
	ctx := context.Background()

	// A vector record with no relational row.
	b := bookInfo("ghost", "G")
	_, err := env.index.Add(ctx, "ghost", b.Description, BookMetadata(b, "", []string{"SF"}, nil), EmbeddingText(b, "", []string{"SF"}, nil))
	require.NoError(t, err)

	member := testutil.SeedMember(t, ctx, env.db)
	var sf catalog.SubCategory
	require.NoError(t, env.db.Where("sub_category_name = ?", "SF").First(&sf).Error)
	testutil.SeedPreference(t, ctx, env.db, member.ID, sf.ID, time.Now())

	metrics := observability.NewMetrics()
	r := NewRecommendationResolver(env.log, env.store, env.index, metrics, nil)
	res, err := r.Recommend(ctx, member.ID)
	require.NoError(t, err)
	require.Equal(t, RecommendStatusNoMatch, res.Status)
	require.True(t, res.Drift)
	require.Equal(t, "ghost", res.ISBN)
	require.Zero(t, testutil.CountRows(t, ctx, env.db, &catalog.Recommendation{}, ""))
}

func TestRecommendNoMatchOnEmptyIndex(t *testing.T) {
	env := newTestEnv(t)
	env.seedTaxonomy(t)
	ctx := context.Background()
	member := testutil.SeedMember(t, ctx, env.db)
	var sf catalog.SubCategory
	require.NoError(t, env.db.Where("sub_category_name = ?", "SF").First(&sf).Error)
	testutil.SeedPreference(t, ctx, env.db, member.ID, sf.ID, time.Now())

	res, err := newTestResolver(env, time.Now()).Recommend(ctx, member.ID)
	require.NoError(t, err)
	require.Equal(t, RecommendStatusNoMatch, res.Status)
	require.False(t, res.Drift)
}

func TestRecommendationSweepIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedTaxonomy(t)
	ctx := context.Background()
	_, err := env.synchronizer().Synchronize(ctx, SyncInput{Book: bookInfo("X", "X"), SubCategories: []string{"SF"}})
	require.NoError(t, err)

	var sf catalog.SubCategory
	require.NoError(t, env.db.Where("sub_category_name = ?", "SF").First(&sf).Error)
	withPrefs := testutil.SeedMember(t, ctx, env.db)
	testutil.SeedPreference(t, ctx, env.db, withPrefs.ID, sf.ID, time.Now())
	testutil.SeedMember(t, ctx, env.db)

	stats, err := NewRecommendationSweep(env.log, env.store, newTestResolver(env, time.Now())).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Members)
	require.Equal(t, 1, stats.Recommended)
	require.Equal(t, 1, stats.NoPreferences)

	// Embedding outage: every member with preferences fails, the sweep completes.
	index := NewBookIndex(env.log, env.vec, &termEmbedder{err: errBoom}, nil)
	resolver := NewRecommendationResolver(env.log, env.store, index, nil, nil)
	stats, err = NewRecommendationSweep(env.log, env.store, resolver).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 1, stats.NoPreferences)
}
