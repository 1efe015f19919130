package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/bookmatch-backend/internal/data/catalogdb"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type DriftReport struct {
	CheckedAt      time.Time `json:"checked_at"`
	RelationalSize int       `json:"relational_size"`
	VectorSize     int       `json:"vector_size"`
	// VectorOnly are index records with no relational book.
	VectorOnly []string `json:"vector_only"`
	// RelationalOnly are books whose vector write is pending or failed.
	RelationalOnly []string `json:"relational_only"`
}

func (r *DriftReport) Consistent() bool {
	return len(r.VectorOnly) == 0 && len(r.RelationalOnly) == 0
}

// DriftErrors returns one DriftError per vector-only isbn.
func (r *DriftReport) DriftErrors() []error {
	out := make([]error, 0, len(r.VectorOnly))
	for _, isbn := range r.VectorOnly {
		out = append(out, &DriftError{ISBN: isbn})
	}
	return out
}

type RepairResult struct {
	Removed []string `json:"removed"`
	// Resolved were vector-only when reported but have a relational book now.
	Resolved []string `json:"resolved"`
	Failed   []string `json:"failed"`
}

// Reconciler compares the isbn sets of both stores.
type Reconciler interface {
	Check(ctx context.Context) (*DriftReport, error)
	// Repair removes vector-only records. The relational store is never
	// modified.
	Repair(ctx context.Context, report *DriftReport) (*RepairResult, error)
}

type reconciler struct {
	log     *logger.Logger
	store   catalogdb.Store
	index   BookIndex
	metrics *observability.Metrics
	alerter *observability.DriftAlerter
}

func NewReconciler(baseLog *logger.Logger, store catalogdb.Store, index BookIndex, metrics *observability.Metrics, alerter *observability.DriftAlerter) Reconciler {
	return &reconciler{
		log:     baseLog.With("service", "Reconciler"),
		store:   store,
		index:   index,
		metrics: metrics,
		alerter: alerter,
	}
}

func (s *reconciler) Check(ctx context.Context) (*DriftReport, error) {
	var relational, vector []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		isbns, err := s.store.ListISBNs(gctx)
		if err != nil {
			return fmt.Errorf("list relational isbns: %w", err)
		}
		relational = isbns
		return nil
	})
	g.Go(func() error {
		isbns, err := s.index.ListISBNs(gctx)
		if err != nil {
			return fmt.Errorf("list vector isbns: %w", err)
		}
		vector = isbns
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &DriftReport{
		CheckedAt:      time.Now().UTC(),
		RelationalSize: len(relational),
		VectorSize:     len(vector),
		VectorOnly:     difference(vector, relational),
		RelationalOnly: difference(relational, vector),
	}
	observability.ReportCatalogDrift(ctx, s.log, s.metrics, s.alerter, "reconciler", report.VectorOnly)
	if len(report.RelationalOnly) > 0 {
		s.log.Warn("Books missing from the vector index", "count", len(report.RelationalOnly))
	}
	return report, nil
}

func (s *reconciler) Repair(ctx context.Context, report *DriftReport) (*RepairResult, error) {
	if report == nil {
		var err error
		if report, err = s.Check(ctx); err != nil {
			return nil, err
		}
	}
	res := &RepairResult{Removed: []string{}, Resolved: []string{}, Failed: []string{}}
	for _, isbn := range report.VectorOnly {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		// The report may predate a sync of this isbn.
		_, found, err := s.store.LookupBookIDByISBN(ctx, isbn)
		if err != nil {
			s.log.Warn("Drift repair lookup failed", "isbn", isbn, "error", err)
			res.Failed = append(res.Failed, isbn)
			continue
		}
		if found {
			res.Resolved = append(res.Resolved, isbn)
			continue
		}
		if _, err := s.index.Remove(ctx, isbn); err != nil {
			s.log.Warn("Drift repair failed for record", "isbn", isbn, "error", err)
			res.Failed = append(res.Failed, isbn)
			continue
		}
		res.Removed = append(res.Removed, isbn)
	}
	s.log.Info("Drift repair finished", "removed", len(res.Removed), "resolved", len(res.Resolved), "failed", len(res.Failed))
	return res, nil
}

// difference returns the sorted members of a that are not in b.
func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, s := range b {
		in[s] = struct{}{}
	}
	out := []string{}
	for _, s := range a {
		if _, ok := in[s]; !ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
