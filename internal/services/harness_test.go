package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/bookmatch-backend/internal/data/catalogdb"
	"github.com/yungbote/bookmatch-backend/internal/data/repos"
	"github.com/yungbote/bookmatch-backend/internal/data/repos/testutil"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/kyobo"
	"github.com/yungbote/bookmatch-backend/internal/platform/localvec"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
	"github.com/yungbote/bookmatch-backend/internal/platform/vectorstore"
)

// termEmbedder embeds text as counts of each vocabulary term plus a constant
// bias dimension, so identical text gives identical vectors and shared terms
// pull vectors together.
type termEmbedder struct {
	vocab []string
	err   error

	mu    sync.Mutex
	calls int
}

func (e *termEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(inputs))
	for _, in := range inputs {
		v := make([]float32, len(e.vocab)+1)
		for i, term := range e.vocab {
			v[i] = float32(strings.Count(in, term))
		}
		v[len(e.vocab)] = 0.1
		out = append(out, v)
	}
	return out, nil
}

type failingVectorStore struct {
	vectorstore.Store
	putErr error
}

func (s *failingVectorStore) Put(ctx context.Context, recs ...vectorstore.Record) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.Store.Put(ctx, recs...)
}

type fakeCrawler struct {
	results map[string]kyobo.Result
	err     error
}

func (c *fakeCrawler) Hashtags(_ context.Context, isbn string) (kyobo.Result, error) {
	if c.err != nil {
		return kyobo.Result{}, c.err
	}
	return c.results[isbn], nil
}

type fakeClassifier struct {
	byISBN map[string]catalog.Classification
	err    error
	seen   []ClassifyInput
}

func (c *fakeClassifier) Classify(_ context.Context, in ClassifyInput) (catalog.Classification, error) {
	c.seen = append(c.seen, in)
	if c.err != nil {
		return catalog.Classification{}, c.err
	}
	return c.byISBN[in.ISBN], nil
}

type countingSync struct {
	inner CatalogSynchronizer
	calls []string
}

func (s *countingSync) Synchronize(ctx context.Context, in SyncInput) (*SyncResult, error) {
	s.calls = append(s.calls, in.Book.ISBN)
	return s.inner.Synchronize(ctx, in)
}

type testEnv struct {
	db    *gorm.DB
	log   *logger.Logger
	store catalogdb.Store
	vec   vectorstore.Store
	embed *termEmbedder
	index BookIndex
}

var errBoom = errors.New("boom")

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	vec, err := localvec.Open(log, localvec.Config{Collection: "books", InMemory: true})
	if err != nil {
		t.Fatalf("localvec.Open: %v", err)
	}
	t.Cleanup(func() { _ = vec.Close() })
	embed := &termEmbedder{vocab: []string{"SF", "역사", "시", "여행", "우주"}}
	return &testEnv{
		db:    db,
		log:   log,
		store: catalogdb.New(db, log, repos.NewSet(db, log)),
		vec:   vec,
		embed: embed,
		index: NewBookIndex(log, vec, embed, nil),
	}
}

func (e *testEnv) synchronizer() CatalogSynchronizer {
	return NewCatalogSynchronizer(e.log, e.store, e.index, nil)
}

func (e *testEnv) seedTaxonomy(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, sc := range [][2]string{{"소설", "SF"}, {"인문", "역사"}, {"시/에세이", "시"}, {"시/에세이", "여행"}} {
		testutil.SeedSubCategory(t, ctx, e.db, sc[0], sc[1])
	}
}

func bookInfo(isbn, title string) catalog.BookInfo {
	return catalog.BookInfo{ISBN: isbn, Title: title, Author: "작가", Description: title + " 설명"}
}
