package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
)

func SeedSubCategory(tb testing.TB, ctx context.Context, tx *gorm.DB, main, name string) *catalog.SubCategory {
	tb.Helper()
	sc := &catalog.SubCategory{Name: name, MainCategoryName: main}
	if err := tx.WithContext(ctx).Create(sc).Error; err != nil {
		tb.Fatalf("seed sub category: %v", err)
	}
	return sc
}

func SeedMember(tb testing.TB, ctx context.Context, tx *gorm.DB) *catalog.Member {
	tb.Helper()
	m := &catalog.Member{}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed member: %v", err)
	}
	return m
}

func SeedPreference(tb testing.TB, ctx context.Context, tx *gorm.DB, memberID, subCategoryID int64, at time.Time) {
	tb.Helper()
	row := &catalog.MemberSubCategorySelection{MemberID: memberID, SubCategoryID: subCategoryID, SelectedAt: at}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed preference: %v", err)
	}
}

func SeedBook(tb testing.TB, ctx context.Context, tx *gorm.DB, isbn, title string) *catalog.Book {
	tb.Helper()
	now := time.Now().UTC()
	b := &catalog.Book{ISBN: isbn, Title: title, CreatedAt: now, UpdatedAt: now}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed book: %v", err)
	}
	return b
}

func CountRows(tb testing.TB, ctx context.Context, tx *gorm.DB, model any, where string, args ...any) int64 {
	tb.Helper()
	var n int64
	q := tx.WithContext(ctx).Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		tb.Fatalf("count: %v", err)
	}
	return n
}
