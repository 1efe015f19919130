package ranks

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/bookmatch-backend/internal/data/repos/testutil"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
)

func TestBestSellerRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewBestSellerRepo(db, testutil.Logger(t))

	latest, err := repo.LatestBatch(dbc)
	if err != nil || len(latest) != 0 {
		t.Fatalf("LatestBatch empty: got=%v err=%v", latest, err)
	}

	older := time.Now().UTC().Add(-24 * time.Hour)
	newer := older.Add(time.Hour)
	if err := repo.CreateBatch(dbc, []*catalog.BestSeller{
		{BatchID: "a", ISBN: "1", BestRank: 1, ObservedAt: older},
		{BatchID: "a", ISBN: "2", BestRank: 2, ObservedAt: older},
	}); err != nil {
		t.Fatalf("CreateBatch a: %v", err)
	}
	if err := repo.CreateBatch(dbc, []*catalog.BestSeller{
		{BatchID: "b", ISBN: "2", BestRank: 2, ObservedAt: newer},
		{BatchID: "b", ISBN: "3", BestRank: 1, ObservedAt: newer},
	}); err != nil {
		t.Fatalf("CreateBatch b: %v", err)
	}
	if err := repo.CreateBatch(dbc, nil); err != nil {
		t.Fatalf("CreateBatch nil: %v", err)
	}

	if n := testutil.CountRows(t, ctx, tx, &catalog.BestSeller{}, ""); n != 4 {
		t.Fatalf("CreateBatch: history want=4 got=%d", n)
	}
	latest, err = repo.LatestBatch(dbc)
	if err != nil {
		t.Fatalf("LatestBatch: %v", err)
	}
	if len(latest) != 2 || latest[0].ISBN != "3" || latest[1].ISBN != "2" {
		t.Fatalf("LatestBatch: got=%+v", latest)
	}
}
