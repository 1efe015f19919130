package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/bookmatch-backend/internal/data/catalogdb"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

var tracer = otel.Tracer("github.com/yungbote/bookmatch-backend/internal/services")

type SyncInput struct {
	Book          catalog.BookInfo
	MainCategory  string
	SubCategories []string
	Hashtags      []string
}

type SyncResult struct {
	ISBN   string `json:"isbn"`
	BookID int64  `json:"book_id"`
	// AlreadyIndexed reports that the vector record existed before this call.
	AlreadyIndexed       bool       `json:"already_indexed"`
	VectorOutcome        AddOutcome `json:"vector_outcome"`
	MappedSubCategories  []string   `json:"mapped_sub_categories"`
	SkippedSubCategories []string   `json:"skipped_sub_categories"`
}

// CatalogSynchronizer makes one classified book durable in both stores. The
// relational write commits first; a failed vector write afterwards leaves
// the book pending in the index and is reported, never rolled back.
type CatalogSynchronizer interface {
	Synchronize(ctx context.Context, in SyncInput) (*SyncResult, error)
}

type catalogSynchronizer struct {
	log     *logger.Logger
	store   catalogdb.Store
	index   BookIndex
	metrics *observability.Metrics
}

func NewCatalogSynchronizer(baseLog *logger.Logger, store catalogdb.Store, index BookIndex, metrics *observability.Metrics) CatalogSynchronizer {
	return &catalogSynchronizer{
		log:     baseLog.With("service", "CatalogSynchronizer"),
		store:   store,
		index:   index,
		metrics: metrics,
	}
}

func (s *catalogSynchronizer) Synchronize(ctx context.Context, in SyncInput) (*SyncResult, error) {
	in.Book.ISBN = strings.TrimSpace(in.Book.ISBN)
	in.SubCategories = nonNil(in.SubCategories)
	in.Hashtags = nonNil(in.Hashtags)

	ctx, span := tracer.Start(ctx, "catalog.synchronize")
	defer span.End()
	span.SetAttributes(attribute.String("book.isbn", in.Book.ISBN))

	res := &SyncResult{ISBN: in.Book.ISBN}
	indexed, err := s.index.Exists(ctx, in.Book.ISBN)
	if err != nil {
		s.log.Warn("Vector existence probe failed, continuing", "isbn", in.Book.ISBN, "error", err)
	}
	res.AlreadyIndexed = indexed

	written, err := s.store.WriteBook(ctx, catalogdb.BookWrite{
		Book:          in.Book,
		Hashtags:      in.Hashtags,
		SubCategories: in.SubCategories,
	})
	if err != nil {
		s.metrics.IncSync("relational_failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "relational write failed")
		return nil, err
	}
	res.BookID = written.BookID
	res.MappedSubCategories = written.SubCategories
	res.SkippedSubCategories = written.SkippedUnknown

	if indexed {
		res.VectorOutcome = AddOutcomeAlreadyExists
		s.metrics.IncSync(string(AddOutcomeAlreadyExists))
		return res, nil
	}

	outcome, err := s.index.Add(
		ctx,
		in.Book.ISBN,
		in.Book.Description,
		BookMetadata(in.Book, in.MainCategory, in.SubCategories, in.Hashtags),
		EmbeddingText(in.Book, in.MainCategory, in.SubCategories, in.Hashtags),
	)
	if err != nil {
		s.metrics.IncSync("vector_failed")
		s.log.Warn("Vector write failed after relational commit; book is pending in the index",
			"event", "vector_write_pending",
			"isbn", in.Book.ISBN,
			"book_id", res.BookID,
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "vector write failed")
		return res, err
	}
	res.VectorOutcome = outcome
	s.metrics.IncSync(string(outcome))
	span.SetAttributes(attribute.String("sync.vector_outcome", string(outcome)))
	return res, nil
}
