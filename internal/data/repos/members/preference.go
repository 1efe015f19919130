package members

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type PreferenceRepo interface {
	// ListNames returns the member's selected sub-category names in selection order.
	ListNames(dbc dbctx.Context, memberID int64) ([]string, error)
	Select(dbc dbctx.Context, memberID int64, subCategoryIDs []int64) error
}

type preferenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferenceRepo(db *gorm.DB, baseLog *logger.Logger) PreferenceRepo {
	return &preferenceRepo{db: db, log: baseLog.With("repo", "PreferenceRepo")}
}

func (r *preferenceRepo) ListNames(dbc dbctx.Context, memberID int64) ([]string, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []string
	err := t.WithContext(dbc.Ctx).
		Table("member_sub_category_selections AS ms").
		Joins("JOIN sub_categories sc ON ms.sub_category_id = sc.sub_category_id").
		Where("ms.member_id = ?", memberID).
		Order("ms.selected_at, ms.sub_category_id").
		Pluck("sc.sub_category_name", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *preferenceRepo) Select(dbc dbctx.Context, memberID int64, subCategoryIDs []int64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(subCategoryIDs) == 0 {
		return nil
	}
	base := time.Now().UTC()
	rows := make([]catalog.MemberSubCategorySelection, 0, len(subCategoryIDs))
	for i, id := range subCategoryIDs {
		rows = append(rows, catalog.MemberSubCategorySelection{
			MemberID:      memberID,
			SubCategoryID: id,
			SelectedAt:    base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return t.WithContext(dbc.Ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
