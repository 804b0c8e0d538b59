package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/feedguard/internal/api"
	"github.com/jonesrussell/feedguard/internal/detector"
	"github.com/jonesrussell/feedguard/internal/domain"
	"github.com/jonesrussell/feedguard/internal/flagstore"
	"github.com/jonesrussell/feedguard/internal/logger"
	"github.com/jonesrussell/feedguard/internal/mlclient"
)

const testBadLink = "https://bad-login-verify.xyz/account"

type scriptedClassifier struct {
	mu      sync.Mutex
	results map[string]mlclient.Result
}

func (c *scriptedClassifier) Classify(_ context.Context, postID string, _ []string) mlclient.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[postID]
}

type nopEffects struct{}

func (nopEffects) RequestBlur(string)   {}
func (nopEffects) RequestUnblur(string) {}

type countingQueue struct {
	mu    sync.Mutex
	items []domain.OutboxItem
}

func (q *countingQueue) Enqueue(item domain.OutboxItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

func (q *countingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type nopFlags struct{}

func (nopFlags) Add(context.Context, string, string) error { return nil }

type nopGraph struct{}

func (nopGraph) IngestPost(context.Context, string, []string, map[string]any) {}
func (nopGraph) IngestClick(context.Context, string, string)                  {}
func (nopGraph) EnsureForReport(context.Context, string, []string)           {}

type okHealth struct{ err error }

func (h okHealth) Health(context.Context) error { return h.err }

type testServer struct {
	engine     *gin.Engine
	classifier *scriptedClassifier
	reports    *countingQueue
	reviews    *countingQueue
	mock       sqlmock.Sqlmock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	classifier := &scriptedClassifier{results: make(map[string]mlclient.Result)}
	reports := &countingQueue{}
	reviews := &countingQueue{}
	log := logger.NewNop()

	tracker := detector.NewTracker(
		classifier,
		nopEffects{},
		reports,
		reviews,
		nopFlags{},
		nopGraph{},
		detector.Config{UserID: "u1", ReviewMin: 0.45, ReviewMax: 0.60},
		log,
	)

	flags := flagstore.New(sqlx.NewDb(db, "sqlmock"))
	handler := api.NewHandler(tracker, flags, reports, reviews, log)

	engine := gin.New()
	api.RegisterRoutes(engine, handler, okHealth{})

	return &testServer{
		engine:     engine,
		classifier: classifier,
		reports:    reports,
		reviews:    reviews,
		mock:       mock,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) scanPhishingPost(t *testing.T, postID string) {
	t.Helper()

	s.classifier.mu.Lock()
	s.classifier.results[postID] = mlclient.Result{IsPhishing: true, FlaggedLinks: []string{testBadLink}}
	s.classifier.mu.Unlock()

	w := s.do(t, http.MethodPost, "/api/v1/scan", gin.H{
		"posts": []gin.H{{"id": postID, "text": "urgent", "links": []string{testBadLink}}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("scan failed with %d: %s", w.Code, w.Body.String())
	}
}

func TestScanEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.scanPhishingPost(t, "p1")

	w := s.do(t, http.MethodGet, "/api/v1/posts/p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Post    domain.Post `json:"post"`
		Blurred bool        `json:"blurred"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Post.Status != domain.StatusFlagged {
		t.Errorf("expected flagged, got %s", resp.Post.Status)
	}
	if !resp.Blurred {
		t.Error("expected blurred render state")
	}
}

func TestScanEndpoint_InvalidBody(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/scan", gin.H{"not_posts": true})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReportSafeEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.scanPhishingPost(t, "p1")

	w := s.do(t, http.MethodPost, "/api/v1/posts/p1/safe", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if s.reports.Len() != 1 {
		t.Errorf("expected 1 report enqueued, got %d", s.reports.Len())
	}
}

func TestReportSafeEndpoint_UnknownPost(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/posts/ghost/safe", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestReportSafeEndpoint_InvalidState(t *testing.T) {
	s := newTestServer(t)

	// Clean post: reporting it safe is a conflict.
	s.classifier.mu.Lock()
	s.classifier.results["p1"] = mlclient.Result{}
	s.classifier.mu.Unlock()
	s.do(t, http.MethodPost, "/api/v1/scan", gin.H{
		"posts": []gin.H{{"id": "p1", "links": []string{"https://news.example"}}},
	})

	w := s.do(t, http.MethodPost, "/api/v1/posts/p1/safe", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestReportMaliciousEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.scanPhishingPost(t, "p1")

	w := s.do(t, http.MethodPost, "/api/v1/posts/p1/malicious", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if s.reports.Len() != 1 {
		t.Errorf("expected 1 report enqueued, got %d", s.reports.Len())
	}
}

func TestRecheckEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.scanPhishingPost(t, "p1")

	if w := s.do(t, http.MethodPost, "/api/v1/posts/p1/safe", nil); w.Code != http.StatusOK {
		t.Fatalf("report safe failed: %d", w.Code)
	}

	// The model has been retrained; the recheck comes back clean.
	s.classifier.mu.Lock()
	s.classifier.results["p1"] = mlclient.Result{}
	s.classifier.mu.Unlock()

	w := s.do(t, http.MethodPost, "/api/v1/posts/p1/recheck", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/v1/posts/p1", nil)
	var resp struct {
		Post domain.Post `json:"post"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Post.Status != domain.StatusClean {
		t.Errorf("expected clean after recheck, got %s", resp.Post.Status)
	}
}

func TestClicksEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/clicks", gin.H{"domain": "bad.example", "post_id": "p1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/v1/clicks", gin.H{"post_id": "p1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing domain, got %d", w.Code)
	}
}

func TestFlaggedEndpoint(t *testing.T) {
	s := newTestServer(t)

	rows := sqlmock.NewRows([]string{"url", "user_id", "flagged_at"}).
		AddRow(testBadLink, "u1", time.Now())
	s.mock.ExpectQuery("SELECT url, user_id, flagged_at").
		WithArgs(100).
		WillReturnRows(rows)

	w := s.do(t, http.MethodGet, "/api/v1/flagged", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Links []flagstore.FlaggedLink `json:"links"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Links) != 1 || resp.Links[0].URL != testBadLink {
		t.Errorf("unexpected links: %+v", resp.Links)
	}
}

func TestQueuesEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.scanPhishingPost(t, "p1")

	if w := s.do(t, http.MethodPost, "/api/v1/posts/p1/safe", nil); w.Code != http.StatusOK {
		t.Fatalf("report safe failed: %d", w.Code)
	}

	w := s.do(t, http.MethodGet, "/api/v1/queues", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["report_queue"] != 1 {
		t.Errorf("expected report queue depth 1, got %d", resp["report_queue"])
	}
	if resp["review_queue"] != 0 {
		t.Errorf("expected review queue depth 0, got %d", resp["review_queue"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "healthy" || resp["classifier"] != "ok" {
		t.Errorf("unexpected health response: %v", resp)
	}
}
