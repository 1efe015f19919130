package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/aladin"
	"github.com/yungbote/bookmatch-backend/internal/platform/kyobo"
)

type fakeMetadata struct {
	books map[string]catalog.BookInfo
	err   error
}

func (m *fakeMetadata) LookupByISBN(_ context.Context, isbn string) (catalog.BookInfo, error) {
	if m.err != nil {
		return catalog.BookInfo{}, m.err
	}
	b, ok := m.books[isbn]
	if !ok {
		return catalog.BookInfo{}, fmt.Errorf("lookup %s: %w", isbn, aladin.ErrNotFound)
	}
	return b, nil
}

func TestBookIntakeAddByISBN(t *testing.T) {
	env := newTestEnv(t)
	env.seedTaxonomy(t)
	ctx := context.Background()

	meta := &fakeMetadata{books: map[string]catalog.BookInfo{"1": bookInfo("1", "우주")}}
	enricher := NewEnricher(env.log,
		&fakeCrawler{results: map[string]kyobo.Result{"1": {CategoryHint: "소설", Hashtags: []string{"우주"}}}},
		&fakeClassifier{byISBN: map[string]catalog.Classification{"1": {MainCategory: "소설", SubCategories: []string{"SF"}}}},
		nil,
	)
	intake := NewBookIntake(env.log, meta, enricher, env.synchronizer(), nil)

	res, err := intake.AddByISBN(ctx, " 1 ")
	require.NoError(t, err)
	require.Equal(t, AddOutcomeAdded, res.VectorOutcome)
	require.Equal(t, "소설", res.MainCategory)
	require.Equal(t, []string{"우주"}, res.Hashtags)
	require.Empty(t, res.Degraded)

	res, err = intake.AddByISBN(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, AddOutcomeAlreadyExists, res.VectorOutcome)

	_, err = intake.AddByISBN(ctx, "404")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = intake.AddByISBN(ctx, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestBookIntakeDegradesOnCollaboratorFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	meta := &fakeMetadata{books: map[string]catalog.BookInfo{"1": bookInfo("1", "A")}}
	enricher := NewEnricher(env.log, &fakeCrawler{err: errBoom}, &fakeClassifier{err: errBoom}, nil)
	res, err := NewBookIntake(env.log, meta, enricher, env.synchronizer(), nil).AddByISBN(ctx, "1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"crawler", "classifier"}, res.Degraded)
	require.Equal(t, []string{}, res.Hashtags)
	require.Equal(t, []string{}, res.SubCategories)

	meta.err = errBoom
	_, err = NewBookIntake(env.log, meta, enricher, env.synchronizer(), nil).AddByISBN(ctx, "1")
	var ext *ExternalServiceError
	require.True(t, errors.As(err, &ext))
	require.Equal(t, "metadata", ext.Service)
}
