package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/bookmatch-backend/internal/data/repos"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(catalog.AllModels()...)
}

// SeedTaxonomy upserts every sub category of tax. Existing rows keep their ids.
func SeedTaxonomy(ctx context.Context, db *gorm.DB, baseLog *logger.Logger, tax catalog.Taxonomy) (int, error) {
	rows := tax.SubCategoryRows()
	repo := repos.NewSubCategoryRepo(db, baseLog)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.Seed(dbctx.Context{Ctx: ctx, Tx: tx}, rows)
	})
	if err != nil {
		return 0, fmt.Errorf("seed taxonomy: %w", err)
	}
	return len(rows), nil
}
