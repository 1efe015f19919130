package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/bookmatch-backend/internal/data/repos/testutil"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
)

func TestSynchronizeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedTaxonomy(t)
	ctx := context.Background()
	sync := env.synchronizer()

	in := SyncInput{
		Book:          bookInfo("9788901234567", "우주"),
		MainCategory:  "소설",
		SubCategories: []string{"SF"},
		Hashtags:      []string{"우주", "모험"},
	}
	first, err := sync.Synchronize(ctx, in)
	require.NoError(t, err)
	require.Equal(t, AddOutcomeAdded, first.VectorOutcome)
	require.False(t, first.AlreadyIndexed)

	second, err := sync.Synchronize(ctx, in)
	require.NoError(t, err)
	require.Equal(t, AddOutcomeAlreadyExists, second.VectorOutcome)
	require.True(t, second.AlreadyIndexed)
	require.Equal(t, first.BookID, second.BookID)

	require.EqualValues(t, 1, testutil.CountRows(t, ctx, env.db, &catalog.Book{}, "isbn = ?", in.Book.ISBN))
	require.Equal(t, 1, env.embed.calls, "second call must not embed again")
}

func TestSynchronizeSkipsUnknownSubCategory(t *testing.T) {
	env := newTestEnv(t)
	env.seedTaxonomy(t)
	ctx := context.Background()

	res, err := env.synchronizer().Synchronize(ctx, SyncInput{
		Book:          bookInfo("1", "A"),
		MainCategory:  "소설",
		SubCategories: []string{"없는분류", "SF"},
		Hashtags:      []string{"태그"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"SF"}, res.MappedSubCategories)
	require.Equal(t, []string{"없는분류"}, res.SkippedSubCategories)
	require.EqualValues(t, 1, testutil.CountRows(t, ctx, env.db, &catalog.BookSubCategoryMapping{}, "book_id = ?", res.BookID))
	require.EqualValues(t, 1, testutil.CountRows(t, ctx, env.db, &catalog.BookHashtagMapping{}, "book_id = ?", res.BookID))

	got, err := env.index.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "없는분류, SF", got.Metadata[MetaSubCategory], "vector snapshot keeps every sub category")
}

func TestSynchronizeDegradesNilLists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.synchronizer().Synchronize(ctx, SyncInput{Book: bookInfo("1", "A")})
	require.NoError(t, err)
	require.Equal(t, AddOutcomeAdded, res.VectorOutcome)

	got, err := env.index.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "", got.Metadata[MetaHashtags])
	require.Equal(t, "", got.Metadata[MetaSubCategory])
}

func TestSynchronizeVectorFailureLeavesRelationalRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	index := NewBookIndex(env.log, &failingVectorStore{Store: env.vec, putErr: errBoom}, env.embed, nil)
	sync := NewCatalogSynchronizer(env.log, env.store, index, nil)

	res, err := sync.Synchronize(ctx, SyncInput{Book: bookInfo("1", "A")})
	require.Error(t, err)
	var se *StoreError
	require.True(t, errors.As(err, &se))
	require.NotNil(t, res)
	require.NotZero(t, res.BookID)

	id, ok, err := env.store.LookupBookIDByISBN(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, res.BookID, id)

	exists, err := env.index.Exists(ctx, "1")
	require.NoError(t, err)
	require.False(t, exists)
}
