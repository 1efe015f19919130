package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/bookmatch-backend/internal/data/repos/testutil"
	"github.com/yungbote/bookmatch-backend/internal/observability"
)

func TestReconcilerCheckAndRepair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.synchronizer().Synchronize(ctx, SyncInput{Book: bookInfo("both", "b")})
	require.NoError(t, err)
	testutil.SeedBook(t, ctx, env.db, "relational-only", "r")
	ghost := bookInfo("vector-only", "v")
	_, err = env.index.Add(ctx, ghost.ISBN, ghost.Description, BookMetadata(ghost, "", nil, nil), EmbeddingText(ghost, "", nil, nil))
	require.NoError(t, err)

	rec := NewReconciler(env.log, env.store, env.index, observability.NewMetrics(), nil)
	report, err := rec.Check(ctx)
	require.NoError(t, err)
	require.False(t, report.Consistent())
	require.Equal(t, []string{"vector-only"}, report.VectorOnly)
	require.Equal(t, []string{"relational-only"}, report.RelationalOnly)
	require.Equal(t, 2, report.RelationalSize)
	require.Equal(t, 2, report.VectorSize)

	errs := report.DriftErrors()
	require.Len(t, errs, 1)
	var drift *DriftError
	require.ErrorAs(t, errs[0], &drift)
	require.Equal(t, "vector-only", drift.ISBN)

	repaired, err := rec.Repair(ctx, report)
	require.NoError(t, err)
	require.Equal(t, []string{"vector-only"}, repaired.Removed)
	require.Empty(t, repaired.Resolved)

	after, err := rec.Check(ctx)
	require.NoError(t, err)
	require.Empty(t, after.VectorOnly)
	require.Equal(t, []string{"relational-only"}, after.RelationalOnly, "repair never touches the relational store")
}

func TestReconcilerRepairSkipsBooksSyncedAfterCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	late := bookInfo("late", "l")
	_, err := env.index.Add(ctx, late.ISBN, late.Description, BookMetadata(late, "", nil, nil), EmbeddingText(late, "", nil, nil))
	require.NoError(t, err)

	rec := NewReconciler(env.log, env.store, env.index, nil, nil)
	report, err := rec.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"late"}, report.VectorOnly)

	_, err = env.synchronizer().Synchronize(ctx, SyncInput{Book: late})
	require.NoError(t, err)

	repaired, err := rec.Repair(ctx, report)
	require.NoError(t, err)
	require.Empty(t, repaired.Removed)
	require.Equal(t, []string{"late"}, repaired.Resolved)

	exists, err := env.index.Exists(ctx, "late")
	require.NoError(t, err)
	require.True(t, exists, "a book synced after the check keeps its vector record")

	after, err := rec.Check(ctx)
	require.NoError(t, err)
	require.True(t, after.Consistent())
}
