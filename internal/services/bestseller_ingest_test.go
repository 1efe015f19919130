package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/bookmatch-backend/internal/data/catalogdb"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/kyobo"
)

type staticFeed struct {
	items []catalog.RankedBook
	err   error
}

func (f staticFeed) Bestsellers(context.Context) ([]catalog.RankedBook, error) {
	return f.items, f.err
}

func ranked(isbn string, rank int) catalog.RankedBook {
	return catalog.RankedBook{BookInfo: bookInfo(isbn, "책 "+isbn), Rank: rank}
}

func TestBestsellerIngestSyncsOnlyUnseen(t *testing.T) {
	env := newTestEnv(t)
	env.seedTaxonomy(t)
	ctx := context.Background()

	_, err := env.synchronizer().Synchronize(ctx, SyncInput{Book: bookInfo("OLD", "old")})
	require.NoError(t, err)

	counting := &countingSync{inner: env.synchronizer()}
	crawler := &fakeCrawler{results: map[string]kyobo.Result{"NEW": {CategoryHint: "소설", Hashtags: []string{"우주"}}}}
	classifier := &fakeClassifier{byISBN: map[string]catalog.Classification{"NEW": {MainCategory: "소설", SubCategories: []string{"SF"}}}}
	enricher := NewEnricher(env.log, crawler, classifier, nil)

	job := NewBestsellerIngest(env.log, staticFeed{items: []catalog.RankedBook{ranked("OLD", 1), ranked("NEW", 2)}}, env.store, enricher, counting, nil)
	stats, err := job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"NEW"}, counting.calls)
	require.Equal(t, 1, stats.Synced)
	require.Equal(t, 1, stats.AlreadyCataloged)
	require.Equal(t, 2, stats.Ranked)
	require.NotEmpty(t, stats.BatchID)

	require.Len(t, classifier.seen, 1)
	require.Equal(t, []string{"우주"}, classifier.seen[0].Hashtags)
	require.Equal(t, "소설", classifier.seen[0].CategoryHint)

	latest, err := env.store.LatestBestSellers(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "OLD", latest[0].ISBN)
	require.Equal(t, "NEW", latest[1].ISBN)

	got, err := env.index.Get(ctx, "NEW")
	require.NoError(t, err)
	require.Equal(t, "SF", got.Metadata[MetaSubCategory])
}

func TestBestsellerIngestIsolatesBadEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Collaborators fail for every entry; books still land with empty lists.
	enricher := NewEnricher(env.log, &fakeCrawler{err: errBoom}, &fakeClassifier{err: errBoom}, nil)
	feed := staticFeed{items: []catalog.RankedBook{ranked("A", 1), ranked("", 2), ranked("B", 3)}}

	job := NewBestsellerIngest(env.log, feed, env.store, enricher, env.synchronizer(), nil)
	stats, err := job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Entries)
	require.Equal(t, 2, stats.Synced)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 2, stats.Ranked)

	got, err := env.index.Get(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, "", got.Metadata[MetaHashtags])
}

func TestBestsellerIngestRanksEntriesWhoseSyncFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	store := &failingWriteStore{Store: env.store, failISBN: "B"}
	sync := NewCatalogSynchronizer(env.log, store, env.index, nil)
	enricher := NewEnricher(env.log, &fakeCrawler{}, &fakeClassifier{}, nil)
	feed := staticFeed{items: []catalog.RankedBook{ranked("A", 1), ranked("B", 2)}}

	job := NewBestsellerIngest(env.log, feed, store, enricher, sync, nil)
	stats, err := job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Synced)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 2, stats.Ranked)

	latest, err := env.store.LatestBestSellers(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "A", latest[0].ISBN)
	require.Equal(t, "B", latest[1].ISBN)
	require.Equal(t, 2, latest[1].BestRank)

	_, found, err := env.store.LookupBookIDByISBN(ctx, "B")
	require.NoError(t, err)
	require.False(t, found)
}

// failingWriteStore rejects the relational write for one isbn.
type failingWriteStore struct {
	catalogdb.Store
	failISBN string
}

func (s *failingWriteStore) WriteBook(ctx context.Context, in catalogdb.BookWrite) (*catalogdb.WriteResult, error) {
	if in.Book.ISBN == s.failISBN {
		return nil, errBoom
	}
	return s.Store.WriteBook(ctx, in)
}

func TestBestsellerIngestKeepsVectorPendingEntriesInBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	index := NewBookIndex(env.log, &failingVectorStore{Store: env.vec, putErr: errBoom}, env.embed, nil)
	sync := NewCatalogSynchronizer(env.log, env.store, index, nil)
	enricher := NewEnricher(env.log, &fakeCrawler{}, &fakeClassifier{}, nil)

	job := NewBestsellerIngest(env.log, staticFeed{items: []catalog.RankedBook{ranked("A", 1)}}, env.store, enricher, sync, nil)
	stats, err := job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.VectorPending)
	require.Equal(t, 1, stats.Ranked)
}

func TestBestsellerIngestFeedFailure(t *testing.T) {
	env := newTestEnv(t)
	job := NewBestsellerIngest(env.log, staticFeed{err: errBoom}, env.store, NewEnricher(env.log, &fakeCrawler{}, &fakeClassifier{}, nil), env.synchronizer(), nil)
	_, err := job.Run(context.Background())
	var ext *ExternalServiceError
	require.True(t, errors.As(err, &ext))
}

func TestBestsellerIngestStopsWhenCancelled(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.synchronizer().Synchronize(context.Background(), SyncInput{Book: bookInfo("A", "a")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	feed := &cancellingFeed{items: []catalog.RankedBook{ranked("A", 1), ranked("B", 2)}, cancel: cancel}
	job := NewBestsellerIngest(env.log, feed, env.store, NewEnricher(env.log, &fakeCrawler{}, &fakeClassifier{}, nil), env.synchronizer(), nil).(*bestsellerIngest)
	job.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	stats, err := job.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, stats.Ranked)
	require.Equal(t, "", stats.BatchID)
}

func TestBestsellerIngestSavesPartialBatchWhenCancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sync := &cancellingSync{inner: env.synchronizer(), cancel: cancel}
	feed := staticFeed{items: []catalog.RankedBook{ranked("A", 1), ranked("B", 2)}}
	job := NewBestsellerIngest(env.log, feed, env.store, NewEnricher(env.log, &fakeCrawler{}, &fakeClassifier{}, nil), sync, nil)

	stats, err := job.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, stats.Synced)
	require.Equal(t, 1, stats.Ranked)
	require.NotEmpty(t, stats.BatchID)

	latest, err := env.store.LatestBestSellers(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, "A", latest[0].ISBN)
}

// cancellingSync cancels the run after the first book is synchronized.
type cancellingSync struct {
	inner  CatalogSynchronizer
	cancel context.CancelFunc
}

func (s *cancellingSync) Synchronize(ctx context.Context, in SyncInput) (*SyncResult, error) {
	defer s.cancel()
	return s.inner.Synchronize(ctx, in)
}

// cancellingFeed cancels the run as soon as the feed is read.
type cancellingFeed struct {
	items  []catalog.RankedBook
	cancel context.CancelFunc
}

func (f *cancellingFeed) Bestsellers(context.Context) ([]catalog.RankedBook, error) {
	f.cancel()
	return f.items, nil
}
