package members

import (
	"gorm.io/gorm"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type MemberRepo interface {
	ListIDs(dbc dbctx.Context) ([]int64, error)
	Create(dbc dbctx.Context, m *catalog.Member) (*catalog.Member, error)
}

type memberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return &memberRepo{db: db, log: baseLog.With("repo", "MemberRepo")}
}

func (r *memberRepo) ListIDs(dbc dbctx.Context) ([]int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []int64
	if err := t.WithContext(dbc.Ctx).Model(&catalog.Member{}).Distinct("member_id").Order("member_id").Pluck("member_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *memberRepo) Create(dbc dbctx.Context, m *catalog.Member) (*catalog.Member, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(dbc.Ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}
