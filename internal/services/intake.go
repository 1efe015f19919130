package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/aladin"
	"github.com/yungbote/bookmatch-backend/internal/platform/kyobo"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

// MetadataProvider fetches book metadata by isbn.
type MetadataProvider interface {
	LookupByISBN(ctx context.Context, isbn string) (catalog.BookInfo, error)
}

// HashtagCrawler fetches the retail category hint and hashtags for an isbn.
type HashtagCrawler interface {
	Hashtags(ctx context.Context, isbn string) (kyobo.Result, error)
}

type Enrichment struct {
	CategoryHint   string
	Hashtags       []string
	Classification catalog.Classification
	// Degraded lists the collaborators that failed and were replaced by
	// empty results.
	Degraded []string
}

// Enricher runs crawl then classify for one book. Collaborator failures are
// logged and degrade to empty lists.
type Enricher struct {
	log        *logger.Logger
	crawler    HashtagCrawler
	classifier Classifier
	metrics    *observability.Metrics
}

func NewEnricher(baseLog *logger.Logger, crawler HashtagCrawler, classifier Classifier, metrics *observability.Metrics) *Enricher {
	return &Enricher{
		log:        baseLog.With("service", "Enricher"),
		crawler:    crawler,
		classifier: classifier,
		metrics:    metrics,
	}
}

func (e *Enricher) Enrich(ctx context.Context, b catalog.BookInfo) Enrichment {
	out := Enrichment{Hashtags: []string{}, Classification: catalog.Classification{SubCategories: []string{}}}

	crawled, err := e.crawler.Hashtags(ctx, b.ISBN)
	e.metrics.ObserveExternalCall("crawler", "hashtags", err)
	if err != nil {
		e.log.Warn("Hashtag crawl failed, continuing without hashtags", "isbn", b.ISBN, "error", external("crawler", "hashtags", err))
		out.Degraded = append(out.Degraded, "crawler")
	} else {
		out.CategoryHint = crawled.CategoryHint
		out.Hashtags = nonNil(crawled.Hashtags)
	}

	cls, err := e.classifier.Classify(ctx, ClassifyInput{
		Title:        b.Title,
		Author:       b.Author,
		ISBN:         b.ISBN,
		Description:  b.Description,
		Hashtags:     out.Hashtags,
		CategoryHint: out.CategoryHint,
	})
	if err != nil {
		e.log.Warn("Classification failed, continuing without categories", "isbn", b.ISBN, "error", err)
		out.Degraded = append(out.Degraded, "classifier")
	} else {
		cls.SubCategories = nonNil(cls.SubCategories)
		out.Classification = cls
	}
	return out
}

type IntakeResult struct {
	*SyncResult
	MainCategory  string   `json:"main_category"`
	SubCategories []string `json:"sub_categories"`
	Hashtags      []string `json:"hashtags"`
	Degraded      []string `json:"degraded,omitempty"`
}

// BookIntake is the online add path: fetch metadata, enrich, synchronize.
type BookIntake interface {
	AddByISBN(ctx context.Context, isbn string) (*IntakeResult, error)
}

type bookIntake struct {
	log      *logger.Logger
	metadata MetadataProvider
	enricher *Enricher
	sync     CatalogSynchronizer
	metrics  *observability.Metrics
}

func NewBookIntake(baseLog *logger.Logger, metadata MetadataProvider, enricher *Enricher, sync CatalogSynchronizer, metrics *observability.Metrics) BookIntake {
	return &bookIntake{
		log:      baseLog.With("service", "BookIntake"),
		metadata: metadata,
		enricher: enricher,
		sync:     sync,
		metrics:  metrics,
	}
}

func (s *bookIntake) AddByISBN(ctx context.Context, isbn string) (*IntakeResult, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return nil, fmt.Errorf("add book: empty isbn: %w", ErrInvalidInput)
	}

	info, err := s.metadata.LookupByISBN(ctx, isbn)
	s.metrics.ObserveExternalCall("metadata", "lookup", err)
	if errors.Is(err, aladin.ErrNotFound) {
		return nil, fmt.Errorf("book %s: %w", isbn, ErrNotFound)
	}
	if err != nil {
		return nil, external("metadata", "lookup", err)
	}
	if strings.TrimSpace(info.ISBN) == "" {
		info.ISBN = isbn
	}

	enr := s.enricher.Enrich(ctx, info)
	res, err := s.sync.Synchronize(ctx, SyncInput{
		Book:          info,
		MainCategory:  enr.Classification.MainCategory,
		SubCategories: enr.Classification.SubCategories,
		Hashtags:      enr.Hashtags,
	})
	if err != nil {
		return nil, fmt.Errorf("synchronize %s: %w", isbn, err)
	}
	s.log.Info("Book added", "isbn", isbn, "book_id", res.BookID, "vector_outcome", res.VectorOutcome)
	return &IntakeResult{
		SyncResult:    res,
		MainCategory:  enr.Classification.MainCategory,
		SubCategories: enr.Classification.SubCategories,
		Hashtags:      enr.Hashtags,
		Degraded:      enr.Degraded,
	}, nil
}
