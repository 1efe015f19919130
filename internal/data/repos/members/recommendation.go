package members

import (
	"gorm.io/gorm"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type RecommendationRepo interface {
	Create(dbc dbctx.Context, rec *catalog.Recommendation) (*catalog.Recommendation, error)
	ListByMember(dbc dbctx.Context, memberID int64) ([]*catalog.Recommendation, error)
}

type recommendationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return &recommendationRepo{db: db, log: baseLog.With("repo", "RecommendationRepo")}
}

func (r *recommendationRepo) Create(dbc dbctx.Context, rec *catalog.Recommendation) (*catalog.Recommendation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(dbc.Ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *recommendationRepo) ListByMember(dbc dbctx.Context, memberID int64) ([]*catalog.Recommendation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*catalog.Recommendation
	if err := t.WithContext(dbc.Ctx).Where("member_id = ?", memberID).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
