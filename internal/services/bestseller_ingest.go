package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/bookmatch-backend/internal/data/catalogdb"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

// BestsellerFeed is the external ranked list.
type BestsellerFeed interface {
	Bestsellers(ctx context.Context) ([]catalog.RankedBook, error)
}

type IngestStats struct {
	Entries          int    `json:"entries"`
	Synced           int    `json:"synced"`
	VectorPending    int    `json:"vector_pending"`
	AlreadyCataloged int    `json:"already_cataloged"`
	Failed           int    `json:"failed"`
	Ranked           int    `json:"ranked"`
	BatchID          string `json:"batch_id,omitempty"`
}

// BestsellerIngest synchronizes unseen feed entries and appends one rank
// snapshot per run. Books already cataloged are not refreshed.
type BestsellerIngest interface {
	Run(ctx context.Context) (*IngestStats, error)
}

type bestsellerIngest struct {
	log      *logger.Logger
	feed     BestsellerFeed
	store    catalogdb.Store
	enricher *Enricher
	sync     CatalogSynchronizer
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewBestsellerIngest(
	baseLog *logger.Logger,
	feed BestsellerFeed,
	store catalogdb.Store,
	enricher *Enricher,
	sync CatalogSynchronizer,
	metrics *observability.Metrics,
) BestsellerIngest {
	return &bestsellerIngest{
		log:      baseLog.With("service", "BestsellerIngest"),
		feed:     feed,
		store:    store,
		enricher: enricher,
		sync:     sync,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *bestsellerIngest) Run(ctx context.Context) (*IngestStats, error) {
	ctx, span := tracer.Start(ctx, "bestseller.ingest")
	defer span.End()

	items, err := s.feed.Bestsellers(ctx)
	s.metrics.ObserveExternalCall("metadata", "bestsellers", err)
	if err != nil {
		span.RecordError(err)
		return nil, external("metadata", "bestsellers", err)
	}

	stats := &IngestStats{Entries: len(items)}
	ranks := make([]catalog.RankEntry, 0, len(items))
	var runErr error
	for _, item := range items {
		if runErr = ctx.Err(); runErr != nil {
			s.log.Warn("Ingestion interrupted, persisting ranks collected so far", "processed", stats.Synced+stats.VectorPending+stats.AlreadyCataloged+stats.Failed, "entries", stats.Entries)
			break
		}
		outcome, ok := s.ingestOne(ctx, item)
		s.metrics.IncIngestEntry(outcome)
		switch outcome {
		case "synced":
			stats.Synced++
		case "vector_pending":
			stats.VectorPending++
		case "already_cataloged":
			stats.AlreadyCataloged++
		default:
			stats.Failed++
		}
		if ok {
			ranks = append(ranks, catalog.RankEntry{ISBN: strings.TrimSpace(item.ISBN), Rank: item.Rank})
		}
	}

	// The snapshot is written even if the run was cancelled part-way.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	batchID, err := s.store.SaveBestSellers(saveCtx, ranks, s.now())
	if err != nil {
		span.RecordError(err)
		return stats, fmt.Errorf("save rank batch: %w", err)
	}
	stats.Ranked = len(ranks)
	stats.BatchID = batchID
	span.SetAttributes(
		attribute.Int("ingest.entries", stats.Entries),
		attribute.Int("ingest.synced", stats.Synced),
		attribute.Int("ingest.failed", stats.Failed),
	)
	s.log.Info("Bestseller ingestion finished",
		"entries", stats.Entries,
		"synced", stats.Synced,
		"vector_pending", stats.VectorPending,
		"already_cataloged", stats.AlreadyCataloged,
		"failed", stats.Failed,
		"batch_id", batchID,
	)
	if runErr != nil {
		span.RecordError(runErr)
	}
	return stats, runErr
}

// ingestOne reports the entry outcome and whether the entry belongs in the
// rank batch. Any entry with an isbn is ranked, even when its sync failed.
func (s *bestsellerIngest) ingestOne(ctx context.Context, item catalog.RankedBook) (string, bool) {
	isbn := strings.TrimSpace(item.ISBN)
	if isbn == "" {
		s.log.Warn("Feed entry without isbn skipped", "title", item.Title, "rank", item.Rank)
		return "failed", false
	}

	_, found, err := s.store.LookupBookIDByISBN(ctx, isbn)
	if err != nil {
		s.log.Warn("Catalog lookup failed, entry not synced", "isbn", isbn, "error", err)
		return "failed", true
	}
	if found {
		s.log.Debug("Already cataloged", "isbn", isbn, "rank", item.Rank)
		return "already_cataloged", true
	}

	info := item.BookInfo
	info.ISBN = isbn
	enr := s.enricher.Enrich(ctx, info)
	res, err := s.sync.Synchronize(ctx, SyncInput{
		Book:          info,
		MainCategory:  enr.Classification.MainCategory,
		SubCategories: enr.Classification.SubCategories,
		Hashtags:      enr.Hashtags,
	})
	if err != nil {
		if res != nil && res.BookID != 0 {
			return "vector_pending", true
		}
		s.log.Warn("Synchronization failed, entry not synced", "isbn", isbn, "error", err)
		return "failed", true
	}
	return "synced", true
}
