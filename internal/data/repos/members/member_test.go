package members

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/bookmatch-backend/internal/data/repos/testutil"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
)

func TestMemberRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMemberRepo(db, testutil.Logger(t))

	ids, err := repo.ListIDs(dbc)
	if err != nil || len(ids) != 0 {
		t.Fatalf("ListIDs empty: got=%v err=%v", ids, err)
	}
	a, err := repo.Create(dbc, &catalog.Member{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := repo.Create(dbc, &catalog.Member{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ids, err = repo.ListIDs(dbc)
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != a.ID || ids[1] != b.ID {
		t.Fatalf("ListIDs: want=[%d %d] got=%v", a.ID, b.ID, ids)
	}
}

func TestPreferenceRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewPreferenceRepo(db, testutil.Logger(t))

	member := testutil.SeedMember(t, ctx, tx)
	poetry := testutil.SeedSubCategory(t, ctx, tx, "문학", "시")
	essay := testutil.SeedSubCategory(t, ctx, tx, "문학", "에세이")
	history := testutil.SeedSubCategory(t, ctx, tx, "인문", "역사")

	names, err := repo.ListNames(dbc, member.ID)
	if err != nil || len(names) != 0 {
		t.Fatalf("ListNames empty: got=%v err=%v", names, err)
	}

	base := time.Now().UTC()
	testutil.SeedPreference(t, ctx, tx, member.ID, history.ID, base.Add(-time.Hour))
	if err := repo.Select(dbc, member.ID, []int64{essay.ID, poetry.ID}); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := repo.Select(dbc, member.ID, []int64{essay.ID}); err != nil {
		t.Fatalf("Select again: %v", err)
	}

	names, err = repo.ListNames(dbc, member.ID)
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	want := []string{"역사", "에세이", "시"}
	if len(names) != len(want) {
		t.Fatalf("ListNames: want=%v got=%v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ListNames[%d]: want=%s got=%s", i, want[i], names[i])
		}
	}
}

func TestRecommendationRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewRecommendationRepo(db, testutil.Logger(t))

	member := testutil.SeedMember(t, ctx, tx)
	book := testutil.SeedBook(t, ctx, tx, "9788936434120", "A")
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		rec := &catalog.Recommendation{MemberID: member.ID, BookID: book.ID, RecommendationDate: datatypes.Date(day)}
		if _, err := repo.Create(dbc, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	rows, err := repo.ListByMember(dbc, member.ID)
	if err != nil {
		t.Fatalf("ListByMember: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ListByMember: want=2 got=%d", len(rows))
	}
	if rows[0].BookID != book.ID {
		t.Fatalf("ListByMember: want book=%d got=%d", book.ID, rows[0].BookID)
	}
}
