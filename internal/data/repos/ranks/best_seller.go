package ranks

import (
	"gorm.io/gorm"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type BestSellerRepo interface {
	CreateBatch(dbc dbctx.Context, rows []*catalog.BestSeller) error
	// LatestBatch returns the most recently observed snapshot ordered by rank.
	LatestBatch(dbc dbctx.Context) ([]*catalog.BestSeller, error)
}

type bestSellerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBestSellerRepo(db *gorm.DB, baseLog *logger.Logger) BestSellerRepo {
	return &bestSellerRepo{db: db, log: baseLog.With("repo", "BestSellerRepo")}
}

func (r *bestSellerRepo) CreateBatch(dbc dbctx.Context, rows []*catalog.BestSeller) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).CreateInBatches(rows, 200).Error
}

func (r *bestSellerRepo) LatestBatch(dbc dbctx.Context) ([]*catalog.BestSeller, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var latest catalog.BestSeller
	if err := t.WithContext(dbc.Ctx).Order("observed_at DESC, id DESC").Limit(1).Find(&latest).Error; err != nil {
		return nil, err
	}
	if latest.ID == 0 {
		return []*catalog.BestSeller{}, nil
	}
	var out []*catalog.BestSeller
	if err := t.WithContext(dbc.Ctx).Where("batch_id = ?", latest.BatchID).Order("best_rank").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
