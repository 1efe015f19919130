package qdrant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
	"github.com/yungbote/bookmatch-backend/internal/platform/vectorstore"
)

const (
	payloadIDKey       = "_bm_id"
	payloadDocumentKey = "_bm_document"
	maxErrorBodyBytes  = 1024
	scrollPageSize     = 256
)

var pointIDNamespaceUUID = uuid.MustParse("5b7c1f5e-0d8f-4d0a-9a53-3c1f1f4f6b21")

// VectorStore talks to Qdrant over its REST API. Records map to points whose
// id is a UUIDv5 of the record id; the record id, document and metadata ride
// in the payload.
type VectorStore struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	distance string
	http     *http.Client
}

var _ vectorstore.Store = (*VectorStore)(nil)

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type qdrantScrollResult struct {
	Points         []qdrantPoint   `json:"points"`
	NextPageOffset json.RawMessage `json:"next_page_offset"`
}

func NewVectorStore(ctx context.Context, log *logger.Logger, cfg Config) (*VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	s := &VectorStore{
		log:     log.With("service", "QdrantVectorStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	if err := s.bootstrap(ctx); err != nil {
		return nil, err
	}
	log.Info(
		"Qdrant vector store selected",
		"provider", "qdrant",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", s.cfg.VectorDim,
		"distance", s.distance,
	)
	return s, nil
}

func (s *VectorStore) Put(ctx context.Context, recs ...vectorstore.Record) error {
	const op = "upsert"
	if len(recs) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "record id is required", nil)
		}
		if len(r.Vector) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("record %q has empty vector", id), vectorstore.ErrEmptyVector)
		}
		if s.cfg.VectorDim > 0 && len(r.Vector) != s.cfg.VectorDim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("record %q dimension mismatch: expected=%d got=%d", id, s.cfg.VectorDim, len(r.Vector)),
				vectorstore.ErrDimensionMismatch)
		}
		payload := make(map[string]any, len(r.Metadata)+2)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[payloadIDKey] = id
		payload[payloadDocumentKey] = r.Document
		points = append(points, map[string]any{
			"id":      s.pointID(id),
			"vector":  r.Vector,
			"payload": payload,
		})
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (s *VectorStore) Get(ctx context.Context, ids ...string) ([]vectorstore.Record, error) {
	const op = "retrieve"
	if len(ids) == 0 {
		return nil, nil
	}
	pointIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, s.pointID(strings.TrimSpace(id)))
	}
	req := map[string]any{"ids": pointIDs, "with_payload": true, "with_vector": false}
	var points []qdrantPoint
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points"), req, &points); err != nil {
		return nil, err
	}
	out := make([]vectorstore.Record, 0, len(points))
	for _, p := range points {
		if rec, ok := recordFromPayload(p); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *VectorStore) Delete(ctx context.Context, ids ...string) error {
	const op = "delete"
	pointIDs := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		pid := s.pointID(id)
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		pointIDs = append(pointIDs, pid)
	}
	if len(pointIDs) == 0 {
		return nil
	}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), map[string]any{"points": pointIDs}, nil)
}

func (s *VectorStore) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	const op = "query"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", vectorstore.ErrEmptyVector)
	}
	if s.cfg.VectorDim > 0 && len(vector) != s.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(vector)),
			vectorstore.ErrDimensionMismatch)
	}
	if k <= 0 {
		k = 1
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
	}
	var points []qdrantPoint
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &points); err != nil {
		return nil, err
	}
	out := make([]vectorstore.Match, 0, len(points))
	for _, p := range points {
		rec, ok := recordFromPayload(p)
		if !ok {
			continue
		}
		out = append(out, vectorstore.Match{Record: rec, Distance: s.toDistance(p.Score)})
	}
	vectorstore.SortMatches(out)
	return out, nil
}

func (s *VectorStore) ListIDs(ctx context.Context) ([]string, error) {
	const op = "scroll"
	var (
		ids    []string
		offset json.RawMessage
	)
	for {
		req := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": []string{payloadIDKey},
			"with_vector":  false,
		}
		if len(offset) > 0 {
			req["offset"] = offset
		}
		var page qdrantScrollResult
		if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/scroll"), req, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Points {
			if id, _ := p.Payload[payloadIDKey].(string); id != "" {
				ids = append(ids, id)
			}
		}
		next := strings.TrimSpace(string(page.NextPageOffset))
		if next == "" || next == "null" {
			return ids, nil
		}
		offset = page.NextPageOffset
	}
}

func (s *VectorStore) Ping(ctx context.Context) error {
	const op = "ready"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	s.authorize(req)
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (s *VectorStore) Close() error {
	s.http.CloseIdleConnections()
	return nil
}

// bootstrap verifies readiness and the collection shape, creating the
// collection when configured to.
func (s *VectorStore) bootstrap(ctx context.Context) error {
	const op = "bootstrap_verify"
	if err := s.Ping(ctx); err != nil {
		return err
	}
	var result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &result)
	var oe *OperationError
	if errors.As(err, &oe) && oe.StatusCode == http.StatusNotFound && s.cfg.CreateIfMissing {
		s.log.Info("Creating qdrant collection", "collection", s.cfg.Collection, "vector_dim", s.cfg.VectorDim)
		create := map[string]any{"vectors": map[string]any{"size": s.cfg.VectorDim, "distance": "Cosine"}}
		if err := s.doJSON(ctx, "create_collection", http.MethodPut, s.collectionPath(""), create, nil); err != nil {
			return err
		}
		s.distance = "Cosine"
		return nil
	}
	if err != nil {
		return err
	}
	size := result.Config.Params.Vectors.Size
	switch {
	case s.cfg.VectorDim == 0:
		s.cfg.VectorDim = size
	case size != 0 && size != s.cfg.VectorDim:
		return &OperationError{
			Code:      OperationErrorValidation,
			Operation: op,
			Message: fmt.Sprintf("qdrant collection %q vector size mismatch: expected=%d actual=%d",
				s.cfg.Collection, s.cfg.VectorDim, size),
		}
	}
	s.distance = strings.TrimSpace(result.Config.Params.Vectors.Distance)
	return nil
}

func (s *VectorStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := OperationErrorQueryFailed
		if resp.StatusCode == http.StatusNotFound {
			code = OperationErrorNotFound
		}
		return &OperationError{
			Code:       code,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func (s *VectorStore) authorize(req *http.Request) {
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}
	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func recordFromPayload(p qdrantPoint) (vectorstore.Record, bool) {
	id, _ := p.Payload[payloadIDKey].(string)
	if strings.TrimSpace(id) == "" {
		return vectorstore.Record{}, false
	}
	rec := vectorstore.Record{ID: id, Metadata: map[string]string{}}
	for k, v := range p.Payload {
		switch k {
		case payloadIDKey:
		case payloadDocumentKey:
			rec.Document, _ = v.(string)
		default:
			if sv, ok := v.(string); ok {
				rec.Metadata[k] = sv
			} else {
				rec.Metadata[k] = fmt.Sprint(v)
			}
		}
	}
	return rec, true
}

func (s *VectorStore) pointID(id string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(s.cfg.Collection+"|"+id)).String()
}

func (s *VectorStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

// toDistance converts a Qdrant score into a distance where smaller is closer.
func (s *VectorStore) toDistance(score float64) float64 {
	switch strings.ToLower(s.distance) {
	case "euclid", "manhattan":
		if score < 0 {
			return -score
		}
		return score
	case "dot":
		return -score
	default:
		return 1 - score
	}
}
