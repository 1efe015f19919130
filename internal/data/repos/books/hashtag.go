package books

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type HashtagRepo interface {
	// Ensure inserts names that are not yet in the dictionary and returns the
	// rows for all of them. Names are stored verbatim.
	Ensure(dbc dbctx.Context, names []string) ([]*catalog.Hashtag, error)
	Link(dbc dbctx.Context, bookID int64, hashtagIDs []int64) error
	ListNamesForBook(dbc dbctx.Context, bookID int64) ([]string, error)
}

type hashtagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHashtagRepo(db *gorm.DB, baseLog *logger.Logger) HashtagRepo {
	return &hashtagRepo{db: db, log: baseLog.With("repo", "HashtagRepo")}
}

func (r *hashtagRepo) Ensure(dbc dbctx.Context, names []string) ([]*catalog.Hashtag, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	uniq := dedupe(names)
	if len(uniq) == 0 {
		return []*catalog.Hashtag{}, nil
	}
	rows := make([]*catalog.Hashtag, 0, len(uniq))
	for _, n := range uniq {
		rows = append(rows, &catalog.Hashtag{Name: n})
	}
	if err := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows).Error; err != nil {
		return nil, err
	}
	var out []*catalog.Hashtag
	if err := t.WithContext(dbc.Ctx).Where("name IN ?", uniq).Order("hashtag_id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *hashtagRepo) Link(dbc dbctx.Context, bookID int64, hashtagIDs []int64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(hashtagIDs) == 0 {
		return nil
	}
	rows := make([]catalog.BookHashtagMapping, 0, len(hashtagIDs))
	for _, id := range hashtagIDs {
		rows = append(rows, catalog.BookHashtagMapping{BookID: bookID, HashtagID: id})
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *hashtagRepo) ListNamesForBook(dbc dbctx.Context, bookID int64) ([]string, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []string
	err := t.WithContext(dbc.Ctx).
		Table("hashtags AS h").
		Joins("JOIN book_hashtag_mappings m ON m.hashtag_id = h.hashtag_id").
		Where("m.book_id = ?", bookID).
		Order("h.hashtag_id").
		Pluck("h.name", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
