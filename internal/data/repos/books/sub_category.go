package books

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type SubCategoryRepo interface {
	GetByName(dbc dbctx.Context, name string) (*catalog.SubCategory, error)
	List(dbc dbctx.Context) ([]*catalog.SubCategory, error)
	// Seed upserts taxonomy rows by name.
	Seed(dbc dbctx.Context, rows []*catalog.SubCategory) error
	Link(dbc dbctx.Context, bookID int64, subCategoryIDs []int64) error
	ListNamesForBook(dbc dbctx.Context, bookID int64) ([]string, error)
}

type subCategoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubCategoryRepo(db *gorm.DB, baseLog *logger.Logger) SubCategoryRepo {
	return &subCategoryRepo{db: db, log: baseLog.With("repo", "SubCategoryRepo")}
}

func (r *subCategoryRepo) GetByName(dbc dbctx.Context, name string) (*catalog.SubCategory, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row catalog.SubCategory
	if err := t.WithContext(dbc.Ctx).Where("sub_category_name = ?", name).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *subCategoryRepo) List(dbc dbctx.Context) ([]*catalog.SubCategory, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*catalog.SubCategory
	if err := t.WithContext(dbc.Ctx).Order("sub_category_id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *subCategoryRepo) Seed(dbc dbctx.Context, rows []*catalog.SubCategory) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sub_category_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"main_category_name"}),
		}).
		Create(&rows).Error
}

func (r *subCategoryRepo) Link(dbc dbctx.Context, bookID int64, subCategoryIDs []int64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(subCategoryIDs) == 0 {
		return nil
	}
	rows := make([]catalog.BookSubCategoryMapping, 0, len(subCategoryIDs))
	for _, id := range subCategoryIDs {
		rows = append(rows, catalog.BookSubCategoryMapping{BookID: bookID, SubCategoryID: id})
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *subCategoryRepo) ListNamesForBook(dbc dbctx.Context, bookID int64) ([]string, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []string
	err := t.WithContext(dbc.Ctx).
		Table("sub_categories AS sc").
		Joins("JOIN book_sub_category_mappings m ON m.sub_category_id = sc.sub_category_id").
		Where("m.book_id = ?", bookID).
		Order("sc.sub_category_id").
		Pluck("sc.sub_category_name", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
