package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	httpH "github.com/yungbote/bookmatch-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bookmatch-backend/internal/http/middleware"
	"github.com/yungbote/bookmatch-backend/internal/jobs/scheduler"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/kyobo"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
	"github.com/yungbote/bookmatch-backend/internal/services"
)

type fakeIntake struct{}

func (fakeIntake) AddByISBN(_ context.Context, isbn string) (*services.IntakeResult, error) {
	switch isbn {
	case "new":
		return &services.IntakeResult{SyncResult: &services.SyncResult{ISBN: isbn, BookID: 7, VectorOutcome: services.AddOutcomeAdded}}, nil
	case "dup":
		return &services.IntakeResult{SyncResult: &services.SyncResult{ISBN: isbn, BookID: 7, AlreadyIndexed: true, VectorOutcome: services.AddOutcomeAlreadyExists}}, nil
	case "missing":
		return nil, fmt.Errorf("book %s: %w", isbn, services.ErrNotFound)
	}
	return nil, &services.ExternalServiceError{Service: "metadata", Op: "lookup", Err: fmt.Errorf("down")}
}

type fakeIndex struct {
	services.BookIndex
	books map[string]*services.IndexedBook
}

func (f *fakeIndex) Remove(_ context.Context, isbn string) (services.RemoveOutcome, error) {
	if _, ok := f.books[isbn]; !ok {
		return services.RemoveOutcomeNotFound, nil
	}
	delete(f.books, isbn)
	return services.RemoveOutcomeRemoved, nil
}

func (f *fakeIndex) Get(_ context.Context, isbn string) (*services.IndexedBook, error) {
	b, ok := f.books[isbn]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", isbn, services.ErrNotFound)
	}
	return b, nil
}

type fakeResolver struct{}

func (fakeResolver) Recommend(_ context.Context, memberID int64) (*services.RecommendResult, error) {
	if memberID == 1 {
		return &services.RecommendResult{MemberID: 1, Status: services.RecommendStatusRecommended, ISBN: "a", BookID: 42, RecommendationDate: "2026-10-16"}, nil
	}
	return &services.RecommendResult{MemberID: memberID, Status: services.RecommendStatusNoPreferences}, nil
}

type fakeTools struct{}

func (fakeTools) Classify(_ context.Context, in services.ClassifyInput) (catalog.Classification, error) {
	if in.Title == "down" {
		return catalog.Classification{}, &services.ExternalServiceError{Service: "llm", Op: "classify", Err: fmt.Errorf("down")}
	}
	return catalog.Classification{MainCategory: "소설", SubCategories: []string{"SF"}}, nil
}

func (fakeTools) Hashtags(_ context.Context, isbn string) (kyobo.Result, error) {
	if isbn == "down" {
		return kyobo.Result{}, fmt.Errorf("kyobo: status 503")
	}
	return kyobo.Result{CategoryHint: "소설"}, nil
}

func (fakeTools) GenerateText(_ context.Context, system, user string) (string, error) {
	return "echo: " + user, nil
}

type fakeJobs struct{ triggered []string }

func (f *fakeJobs) Trigger(_ context.Context, jobType string) (*catalog.JobRun, error) {
	if jobType != catalog.JobTypeBestsellerIngest {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, jobType)
	}
	f.triggered = append(f.triggered, jobType)
	return &catalog.JobRun{ID: "run-1", JobType: jobType, Status: catalog.JobStatusRunning}, nil
}

func (f *fakeJobs) Recent(context.Context, string, int) ([]*catalog.JobRun, error) {
	return nil, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, secret string) (*gin.Engine, *fakeIndex, *fakeJobs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	idx := &fakeIndex{books: map[string]*services.IndexedBook{
		"a": {ISBN: "a", Document: "desc", Metadata: map[string]string{services.MetaTitle: "T", services.MetaSubCategory: "SF, 시"}},
	}}
	jobs := &fakeJobs{}
	log := logger.Nop()
	r := NewRouter(RouterConfig{
		Log:                   log,
		Metrics:               observability.NewMetrics(),
		AuthMiddleware:        httpMW.NewAuthMiddleware(log, secret),
		BookHandler:           httpH.NewBookHandler(fakeIntake{}, idx),
		RecommendationHandler: httpH.NewRecommendationHandler(fakeResolver{}),
		CatalogToolsHandler:   httpH.NewCatalogToolsHandler(fakeTools{}, fakeTools{}, fakeTools{}),
		JobHandler:            httpH.NewJobHandler(jobs),
		HealthHandler:         httpH.NewHealthHandler(pinger{}),
	})
	return r, idx, jobs
}

func do(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestBookRoutes(t *testing.T) {
	r, idx, _ := newTestRouter(t, "")

	cases := []struct {
		method, path string
		wantStatus   int
		wantField    string
		wantValue    any
	}{
		{http.MethodPost, "/api/books/new", http.StatusOK, "message", "book added"},
		{http.MethodPost, "/api/books/dup", http.StatusOK, "status", "already_exists"},
		{http.MethodPost, "/api/books/missing", http.StatusNotFound, "", nil},
		{http.MethodPost, "/api/books/broken", http.StatusInternalServerError, "", nil},
		{http.MethodGet, "/api/books/a", http.StatusOK, "subCategory", "SF, 시"},
		{http.MethodGet, "/api/books/zzz", http.StatusNotFound, "", nil},
		{http.MethodDelete, "/api/books/a", http.StatusOK, "message", "book deleted"},
		{http.MethodDelete, "/api/books/a", http.StatusOK, "message", "book not found"},
	}
	for _, tc := range cases {
		rec := do(r, tc.method, tc.path, "", "")
		if rec.Code != tc.wantStatus {
			t.Fatalf("%s %s: want=%d got=%d body=%s", tc.method, tc.path, tc.wantStatus, rec.Code, rec.Body.String())
		}
		body := decode(t, rec)
		if tc.wantField == "" {
			if _, ok := body["error"]; !ok {
				t.Fatalf("%s %s: expected error envelope, got %v", tc.method, tc.path, body)
			}
			continue
		}
		if body[tc.wantField] != tc.wantValue {
			t.Fatalf("%s %s: %s want=%v got=%v", tc.method, tc.path, tc.wantField, tc.wantValue, body[tc.wantField])
		}
	}
	if len(idx.books) != 0 {
		t.Fatalf("delete: book still indexed")
	}
}

func TestRecommendAndToolRoutes(t *testing.T) {
	r, _, _ := newTestRouter(t, "")

	rec := do(r, http.MethodPost, "/api/recommendations/1", "", "")
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "recommended book id: 42" {
		t.Fatalf("recommend: got=%d %s", rec.Code, rec.Body.String())
	}
	rec = do(r, http.MethodPost, "/api/recommendations/abc", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("recommend bad id: want=400 got=%d", rec.Code)
	}

	rec = do(r, http.MethodPost, "/api/classify", `{"title":"코스모스","hashtags":["우주"]}`, "")
	if rec.Code != http.StatusOK || decode(t, rec)["main_category"] != "소설" {
		t.Fatalf("classify: got=%d %s", rec.Code, rec.Body.String())
	}
	rec = do(r, http.MethodPost, "/api/classify", `{"author":"x"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("classify without title: want=400 got=%d", rec.Code)
	}

	rec = do(r, http.MethodGet, "/api/crawl/123", "", "")
	body := decode(t, rec)
	if rec.Code != http.StatusOK || body["category_hint"] != "소설" {
		t.Fatalf("crawl: got=%d %s", rec.Code, rec.Body.String())
	}
	if tags, ok := body["hashtags"].([]any); !ok || len(tags) != 0 {
		t.Fatalf("crawl: hashtags want empty list got=%v", body["hashtags"])
	}

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/classify", `{"title":"down"}`},
		{http.MethodGet, "/api/crawl/down", ""},
	} {
		rec = do(r, tc.method, tc.path, tc.body, "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s %s: want=500 got=%d body=%s", tc.method, tc.path, rec.Code, rec.Body.String())
		}
		envelope, _ := decode(t, rec)["error"].(map[string]any)
		if envelope["code"] != "external_service_error" {
			t.Fatalf("%s %s: code want=external_service_error got=%v", tc.method, tc.path, envelope["code"])
		}
	}

	rec = do(r, http.MethodPost, "/api/generate", `{"prompt":"hi"}`, "")
	if rec.Code != http.StatusOK || decode(t, rec)["generated_text"] != "echo: hi" {
		t.Fatalf("generate: got=%d %s", rec.Code, rec.Body.String())
	}
}

func TestMutatingRoutesRequireToken(t *testing.T) {
	secret := "s3cret"
	r, _, jobs := newTestRouter(t, secret)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if rec := do(r, http.MethodGet, "/api/books/a", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("read route: want=200 got=%d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/jobs/bestseller_ingest/run", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated trigger: want=401 got=%d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/jobs/bestseller_ingest/run", "", token); rec.Code != http.StatusAccepted {
		t.Fatalf("trigger: want=202 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodPost, "/api/jobs/nope/run", "", token); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job: want=404 got=%d", rec.Code)
	}
	if len(jobs.triggered) != 1 {
		t.Fatalf("triggered: want=1 got=%d", len(jobs.triggered))
	}
	rec := do(r, http.MethodGet, "/api/jobs/recent", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"jobs":[]`) {
		t.Fatalf("recent: got=%d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r, _, _ := newTestRouter(t, "")
	if rec := do(r, http.MethodGet, "/healthcheck", "", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: got=%d %q", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz: got=%d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/books/a", "", ""); rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("request id header missing")
	}
	rec := do(r, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `bookmatch_api_requests_total{method="GET",route="/api/books/:isbn",status="200"}`) {
		t.Fatalf("metrics: got=%d body lacks api counter", rec.Code)
	}

	gin.SetMode(gin.TestMode)
	notReady := NewRouter(RouterConfig{HealthHandler: httpH.NewHealthHandler(pinger{err: fmt.Errorf("db down")})})
	if rec := do(notReady, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz down: want=503 got=%d", rec.Code)
	}
}
