package books

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type BookRepo interface {
	// Upsert inserts or overwrites the scalar fields of the row keyed by ISBN
	// and returns the stored row with its id.
	Upsert(dbc dbctx.Context, book *catalog.Book) (*catalog.Book, error)
	GetByISBN(dbc dbctx.Context, isbn string) (*catalog.Book, error)
	GetByID(dbc dbctx.Context, id int64) (*catalog.Book, error)
	ListISBNs(dbc dbctx.Context) ([]string, error)
}

type bookRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBookRepo(db *gorm.DB, baseLog *logger.Logger) BookRepo {
	return &bookRepo{db: db, log: baseLog.With("repo", "BookRepo")}
}

func (r *bookRepo) Upsert(dbc dbctx.Context, book *catalog.Book) (*catalog.Book, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	now := time.Now().UTC()
	row := *book
	row.ID = 0
	row.CreatedAt = now
	row.UpdatedAt = now
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "isbn"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "author", "publisher", "publish_year", "cover_url", "description", "updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	// The insert id is unreliable on the conflict path across dialects.
	return r.GetByISBN(dbc, row.ISBN)
}

func (r *bookRepo) GetByISBN(dbc dbctx.Context, isbn string) (*catalog.Book, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row catalog.Book
	if err := t.WithContext(dbc.Ctx).Where("isbn = ?", isbn).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *bookRepo) GetByID(dbc dbctx.Context, id int64) (*catalog.Book, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row catalog.Book
	if err := t.WithContext(dbc.Ctx).Where("book_id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *bookRepo) ListISBNs(dbc dbctx.Context) ([]string, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []string
	if err := t.WithContext(dbc.Ctx).Model(&catalog.Book{}).Order("isbn").Pluck("isbn", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
