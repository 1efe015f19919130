package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Record is one stored item: an embedding plus the document and flattened
// metadata it was built from. ID is the natural key shared with the catalog.
type Record struct {
	ID       string
	Vector   []float32
	Document string
	Metadata map[string]string
}

// Match is a query hit. Distance is cosine distance (1 - similarity), so
// smaller is closer. Vector is not populated on matches.
type Match struct {
	Record
	Distance float64
}

// Store is the backend contract shared by the local and remote vector stores.
// Put overwrites; callers enforce insert-only semantics on top of Get.
type Store interface {
	Put(ctx context.Context, recs ...Record) error
	// Get returns the records that exist; missing ids are omitted.
	Get(ctx context.Context, ids ...string) ([]Record, error)
	Delete(ctx context.Context, ids ...string) error
	// Query returns up to k records ordered by increasing distance.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	ListIDs(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyVector       = errors.New("empty vector")
)

// CosineDistance returns 1 - cos(a, b).
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, ErrEmptyVector
	}
	var dot, na2, nb2 float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		// zero vectors are maximally distant from everything
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na2)*math.Sqrt(nb2)), nil
}

// SortMatches orders by increasing distance. Equal distances keep input order.
func SortMatches(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Distance < ms[j].Distance })
}

// CloneMetadata copies m so stored snapshots are not aliased by callers.
func CloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
