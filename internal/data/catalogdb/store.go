package catalogdb

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/bookmatch-backend/internal/data/repos"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

// BookWrite is everything persisted relationally for one book.
type BookWrite struct {
	Book          catalog.BookInfo
	Hashtags      []string
	SubCategories []string
}

type WriteResult struct {
	BookID         int64
	Hashtags       int
	SubCategories  []string
	SkippedUnknown []string
}

// Store is the relational catalog. Every method acquires its own connection
// or transaction scope and releases it before returning.
type Store interface {
	UpsertBook(ctx context.Context, info catalog.BookInfo) (*catalog.Book, error)
	UpsertHashtags(ctx context.Context, bookID int64, names []string) error
	MapSubCategories(ctx context.Context, bookID int64, names []string) (mapped, skipped []string, err error)
	// WriteBook runs the book row, hashtag and sub-category writes in a single
	// transaction.
	WriteBook(ctx context.Context, in BookWrite) (*WriteResult, error)
	LookupBookIDByISBN(ctx context.Context, isbn string) (int64, bool, error)
	GetBook(ctx context.Context, isbn string) (*catalog.Book, error)
	ListPreferences(ctx context.Context, memberID int64) ([]string, error)
	RecordRecommendation(ctx context.Context, memberID, bookID int64, date time.Time) (*catalog.Recommendation, error)
	ListAllMemberIDs(ctx context.Context) ([]int64, error)
	ListISBNs(ctx context.Context) ([]string, error)
	SaveBestSellers(ctx context.Context, entries []catalog.RankEntry, observedAt time.Time) (string, error)
	LatestBestSellers(ctx context.Context) ([]*catalog.BestSeller, error)
	Ping(ctx context.Context) error
}

type store struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Set
}

func New(db *gorm.DB, baseLog *logger.Logger, set repos.Set) Store {
	return &store{db: db, log: baseLog.With("component", "CatalogStore"), repos: set}
}

func (s *store) UpsertBook(ctx context.Context, info catalog.BookInfo) (*catalog.Book, error) {
	row := info.Row()
	out, err := s.repos.Book.Upsert(dbctx.Context{Ctx: ctx}, &row)
	return out, wrap("upsert_book", err)
}

func (s *store) UpsertHashtags(ctx context.Context, bookID int64, names []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.linkHashtags(dbctx.Context{Ctx: ctx, Tx: tx}, bookID, names)
		return err
	})
	return wrap("upsert_hashtags", err)
}

func (s *store) MapSubCategories(ctx context.Context, bookID int64, names []string) ([]string, []string, error) {
	var mapped, skipped []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		mapped, skipped, err = s.linkSubCategories(dbctx.Context{Ctx: ctx, Tx: tx}, bookID, names)
		return err
	})
	if err != nil {
		return nil, nil, wrap("map_sub_categories", err)
	}
	return mapped, skipped, nil
}

func (s *store) WriteBook(ctx context.Context, in BookWrite) (*WriteResult, error) {
	isbn := strings.TrimSpace(in.Book.ISBN)
	if isbn == "" {
		return nil, &StoreError{Op: "write_book", Err: errEmptyISBN}
	}
	res := &WriteResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row := in.Book.Row()
		book, err := s.repos.Book.Upsert(dbc, &row)
		if err != nil {
			return wrap("upsert_book", err)
		}
		res.BookID = book.ID

		n, err := s.linkHashtags(dbc, book.ID, in.Hashtags)
		if err != nil {
			return wrap("upsert_hashtags", err)
		}
		res.Hashtags = n

		mapped, skipped, err := s.linkSubCategories(dbc, book.ID, in.SubCategories)
		if err != nil {
			return wrap("map_sub_categories", err)
		}
		res.SubCategories = mapped
		res.SkippedUnknown = skipped
		return nil
	})
	if err != nil {
		s.log.Warn("Book write rolled back", "isbn", isbn, "error", err)
		return nil, wrap("write_book", err)
	}
	return res, nil
}

func (s *store) linkHashtags(dbc dbctx.Context, bookID int64, names []string) (int, error) {
	tags, err := s.repos.Hashtag.Ensure(dbc, names)
	if err != nil {
		return 0, err
	}
	ids := make([]int64, 0, len(tags))
	for _, h := range tags {
		ids = append(ids, h.ID)
	}
	if err := s.repos.Hashtag.Link(dbc, bookID, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// linkSubCategories maps each known name and skips unknown ones with a warning.
func (s *store) linkSubCategories(dbc dbctx.Context, bookID int64, names []string) ([]string, []string, error) {
	mapped := make([]string, 0, len(names))
	skipped := make([]string, 0)
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sc, err := s.repos.SubCategory.GetByName(dbc, name)
		if err != nil {
			return nil, nil, err
		}
		if sc == nil {
			s.log.Warn("Unknown sub category, mapping skipped", "book_id", bookID, "sub_category", name)
			skipped = append(skipped, name)
			continue
		}
		ids = append(ids, sc.ID)
		mapped = append(mapped, name)
	}
	if err := s.repos.SubCategory.Link(dbc, bookID, ids); err != nil {
		return nil, nil, err
	}
	return mapped, skipped, nil
}

func (s *store) LookupBookIDByISBN(ctx context.Context, isbn string) (int64, bool, error) {
	b, err := s.repos.Book.GetByISBN(dbctx.Context{Ctx: ctx}, strings.TrimSpace(isbn))
	if err != nil {
		return 0, false, wrap("lookup_book_id", err)
	}
	if b == nil {
		return 0, false, nil
	}
	return b.ID, true, nil
}

func (s *store) GetBook(ctx context.Context, isbn string) (*catalog.Book, error) {
	b, err := s.repos.Book.GetByISBN(dbctx.Context{Ctx: ctx}, strings.TrimSpace(isbn))
	return b, wrap("get_book", err)
}

func (s *store) ListPreferences(ctx context.Context, memberID int64) ([]string, error) {
	names, err := s.repos.Preference.ListNames(dbctx.Context{Ctx: ctx}, memberID)
	return names, wrap("list_preferences", err)
}

func (s *store) RecordRecommendation(ctx context.Context, memberID, bookID int64, date time.Time) (*catalog.Recommendation, error) {
	rec := &catalog.Recommendation{
		MemberID:           memberID,
		BookID:             bookID,
		RecommendationDate: datatypes.Date(date),
	}
	out, err := s.repos.Recommendation.Create(dbctx.Context{Ctx: ctx}, rec)
	return out, wrap("record_recommendation", err)
}

func (s *store) ListAllMemberIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.repos.Member.ListIDs(dbctx.Context{Ctx: ctx})
	return ids, wrap("list_member_ids", err)
}

func (s *store) ListISBNs(ctx context.Context) ([]string, error) {
	isbns, err := s.repos.Book.ListISBNs(dbctx.Context{Ctx: ctx})
	return isbns, wrap("list_isbns", err)
}

// SaveBestSellers appends one snapshot and returns its batch id. An empty
// batch writes nothing and returns "".
func (s *store) SaveBestSellers(ctx context.Context, entries []catalog.RankEntry, observedAt time.Time) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	batchID := uuid.NewString()
	rows := make([]*catalog.BestSeller, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, &catalog.BestSeller{
			BatchID:    batchID,
			ISBN:       e.ISBN,
			BestRank:   e.Rank,
			ObservedAt: observedAt.UTC(),
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repos.BestSeller.CreateBatch(dbctx.Context{Ctx: ctx, Tx: tx}, rows)
	})
	if err != nil {
		return "", wrap("save_best_sellers", err)
	}
	return batchID, nil
}

func (s *store) LatestBestSellers(ctx context.Context) ([]*catalog.BestSeller, error) {
	rows, err := s.repos.BestSeller.LatestBatch(dbctx.Context{Ctx: ctx})
	return rows, wrap("latest_best_sellers", err)
}

func (s *store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return wrap("ping", err)
	}
	return wrap("ping", sqlDB.PingContext(ctx))
}
