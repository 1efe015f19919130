package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
	"github.com/yungbote/bookmatch-backend/internal/platform/vectorstore"
)

// Embedder maps text to fixed-dimension vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type AddOutcome string

const (
	AddOutcomeAdded         AddOutcome = "added"
	AddOutcomeAlreadyExists AddOutcome = "already_exists"
)

type RemoveOutcome string

const (
	RemoveOutcomeRemoved  RemoveOutcome = "removed"
	RemoveOutcomeNotFound RemoveOutcome = "not_found"
)

// Metadata keys stored with every vector record.
const (
	MetaTitle        = "title"
	MetaAuthor       = "author"
	MetaISBN         = "isbn"
	MetaHashtags     = "hashtags"
	MetaMainCategory = "mainCategory"
	MetaSubCategory  = "subCategory"

	metaListDelimiter = ", "
)

type IndexedBook struct {
	ISBN     string            `json:"isbn"`
	Document string            `json:"description"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance,omitempty"`
}

// BookIndex is the embedding index keyed by isbn. Records are insert-only:
// changing a record's categories or hashtags means Remove then Add.
type BookIndex interface {
	Exists(ctx context.Context, isbn string) (bool, error)
	Add(ctx context.Context, isbn, document string, metadata map[string]string, embeddingText string) (AddOutcome, error)
	Remove(ctx context.Context, isbn string) (RemoveOutcome, error)
	Get(ctx context.Context, isbn string) (*IndexedBook, error)
	QueryNearest(ctx context.Context, queryText string, k int) ([]IndexedBook, error)
	ListISBNs(ctx context.Context) ([]string, error)
}

type bookIndex struct {
	log     *logger.Logger
	store   vectorstore.Store
	embed   Embedder
	metrics *observability.Metrics
}

func NewBookIndex(baseLog *logger.Logger, store vectorstore.Store, embed Embedder, metrics *observability.Metrics) BookIndex {
	return &bookIndex{
		log:     baseLog.With("service", "BookIndex"),
		store:   store,
		embed:   embed,
		metrics: metrics,
	}
}

// BookMetadata builds the flattened metadata snapshot for one book.
func BookMetadata(b catalog.BookInfo, mainCategory string, subCategories, hashtags []string) map[string]string {
	return map[string]string{
		MetaTitle:        b.Title,
		MetaAuthor:       b.Author,
		MetaISBN:         b.ISBN,
		MetaHashtags:     strings.Join(nonNil(hashtags), metaListDelimiter),
		MetaMainCategory: mainCategory,
		MetaSubCategory:  strings.Join(nonNil(subCategories), metaListDelimiter),
	}
}

// EmbeddingText is the text embedded for one book.
func EmbeddingText(b catalog.BookInfo, mainCategory string, subCategories, hashtags []string) string {
	return fmt.Sprintf(
		"title: %s\nauthor: %s\ndescription: %s\nmain_category: %s\nsub_category: %s\nhashtags: %s",
		b.Title,
		b.Author,
		b.Description,
		mainCategory,
		strings.Join(nonNil(subCategories), metaListDelimiter),
		strings.Join(nonNil(hashtags), metaListDelimiter),
	)
}

// SplitMetaList reverses the list flattening of BookMetadata.
func SplitMetaList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return []string{}
	}
	return strings.Split(v, metaListDelimiter)
}

func (s *bookIndex) Exists(ctx context.Context, isbn string) (bool, error) {
	recs, err := s.get(ctx, isbn)
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}

func (s *bookIndex) Add(ctx context.Context, isbn, document string, metadata map[string]string, embeddingText string) (AddOutcome, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return "", fmt.Errorf("add: empty isbn: %w", ErrInvalidInput)
	}
	exists, err := s.Exists(ctx, isbn)
	if err != nil {
		return "", err
	}
	if exists {
		s.log.Debug("Vector record already present", "isbn", isbn)
		return AddOutcomeAlreadyExists, nil
	}

	vecs, err := s.embed.Embed(ctx, []string{embeddingText})
	if err != nil {
		return "", external("embedding", "embed_document", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return "", external("embedding", "embed_document", fmt.Errorf("expected 1 embedding, got %d", len(vecs)))
	}

	rec := vectorstore.Record{
		ID:       isbn,
		Vector:   vecs[0],
		Document: document,
		Metadata: vectorstore.CloneMetadata(metadata),
	}
	start := time.Now()
	err = s.store.Put(ctx, rec)
	s.metrics.ObserveVectorOp("put", err, time.Since(start))
	if err != nil {
		return "", vectorStoreError("put", err)
	}
	return AddOutcomeAdded, nil
}

func (s *bookIndex) Remove(ctx context.Context, isbn string) (RemoveOutcome, error) {
	exists, err := s.Exists(ctx, isbn)
	if err != nil {
		return "", err
	}
	if !exists {
		return RemoveOutcomeNotFound, nil
	}
	start := time.Now()
	err = s.store.Delete(ctx, strings.TrimSpace(isbn))
	s.metrics.ObserveVectorOp("delete", err, time.Since(start))
	if err != nil {
		return "", vectorStoreError("delete", err)
	}
	return RemoveOutcomeRemoved, nil
}

func (s *bookIndex) Get(ctx context.Context, isbn string) (*IndexedBook, error) {
	recs, err := s.get(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("book %s: %w", isbn, ErrNotFound)
	}
	out := toIndexedBook(recs[0], 0)
	return &out, nil
}

func (s *bookIndex) QueryNearest(ctx context.Context, queryText string, k int) ([]IndexedBook, error) {
	if k <= 0 {
		k = 1
	}
	vecs, err := s.embed.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, external("embedding", "embed_query", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, external("embedding", "embed_query", fmt.Errorf("expected 1 embedding, got %d", len(vecs)))
	}
	start := time.Now()
	matches, err := s.store.Query(ctx, vecs[0], k)
	s.metrics.ObserveVectorOp("query", err, time.Since(start))
	if err != nil {
		return nil, vectorStoreError("query", err)
	}
	out := make([]IndexedBook, 0, len(matches))
	for _, m := range matches {
		out = append(out, toIndexedBook(m.Record, m.Distance))
	}
	return out, nil
}

func (s *bookIndex) ListISBNs(ctx context.Context) ([]string, error) {
	start := time.Now()
	ids, err := s.store.ListIDs(ctx)
	s.metrics.ObserveVectorOp("list", err, time.Since(start))
	if err != nil {
		return nil, vectorStoreError("list", err)
	}
	return ids, nil
}

func (s *bookIndex) get(ctx context.Context, isbn string) ([]vectorstore.Record, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return nil, fmt.Errorf("empty isbn: %w", ErrInvalidInput)
	}
	start := time.Now()
	recs, err := s.store.Get(ctx, isbn)
	s.metrics.ObserveVectorOp("get", err, time.Since(start))
	if err != nil {
		return nil, vectorStoreError("get", err)
	}
	return recs, nil
}

func toIndexedBook(r vectorstore.Record, distance float64) IndexedBook {
	isbn := r.Metadata[MetaISBN]
	if isbn == "" {
		isbn = r.ID
	}
	return IndexedBook{
		ISBN:     isbn,
		Document: r.Document,
		Metadata: vectorstore.CloneMetadata(r.Metadata),
		Distance: distance,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
