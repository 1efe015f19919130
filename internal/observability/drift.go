package observability

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/yungbote/bookmatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

// DriftAlerter posts catalog drift reports to a webhook, at most once per
// MinInterval per source.
type DriftAlerter struct {
	WebhookURL  string
	MinInterval time.Duration
	Client      *http.Client

	mu   sync.Mutex
	last map[string]time.Time
}

type driftAlert struct {
	Title     string         `json:"title"`
	Source    string         `json:"source"`
	ISBNs     []string       `json:"isbns"`
	Meta      map[string]any `json:"meta,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// ReportCatalogDrift logs unresolvable vector records at Error with
// event=catalog_drift, counts them, and forwards them to the alerter if one
// is configured.
func ReportCatalogDrift(ctx context.Context, log *logger.Logger, m *Metrics, a *DriftAlerter, source string, isbns []string) {
	if len(isbns) == 0 {
		return
	}
	meta := map[string]any{}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			meta["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			meta["request_id"] = td.RequestID
		}
	}
	if log != nil {
		log.Error("catalog drift detected", "event", "catalog_drift", "source", source, "isbns", isbns, "count", len(isbns))
	}
	for range isbns {
		m.IncDrift(source)
	}
	a.send(ctx, log, source, isbns, meta)
}

func (a *DriftAlerter) send(ctx context.Context, log *logger.Logger, source string, isbns []string, meta map[string]any) {
	if a == nil || strings.TrimSpace(a.WebhookURL) == "" {
		return
	}
	minInterval := a.MinInterval
	if minInterval <= 0 {
		minInterval = 10 * time.Minute
	}
	a.mu.Lock()
	if a.last == nil {
		a.last = map[string]time.Time{}
	}
	last := a.last[source]
	if !last.IsZero() && time.Since(last) < minInterval {
		a.mu.Unlock()
		return
	}
	a.last[source] = time.Now()
	a.mu.Unlock()

	body, _ := json.Marshal(driftAlert{
		Title:     "Catalog drift detected",
		Source:    source,
		ISBNs:     isbns,
		Meta:      meta,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, a.WebhookURL, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("drift alert request build failed", "error", err)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("drift alert post failed", "error", err)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("drift alert sent", "status", resp.StatusCode)
	}
}
