package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appanalysis "github.com/carclabs/credit-funnel/internal/application/analysis"
	appleads "github.com/carclabs/credit-funnel/internal/application/leads"
	domanalysis "github.com/carclabs/credit-funnel/internal/domain/analysis"
	domleads "github.com/carclabs/credit-funnel/internal/domain/leads"
	"github.com/carclabs/credit-funnel/internal/middleware"
)

type stubRepo struct {
	status      domleads.UpsertStatus
	upsertErr   error
	recentCount int
	countErr    error
	upserts     int
}

func (r *stubRepo) Upsert(ctx context.Context, lead *domleads.Lead) (domleads.UpsertStatus, error) {
	r.upserts++
	return r.status, r.upsertErr
}

func (r *stubRepo) CountCreatedSince(ctx context.Context, ip string, since time.Time) (int, error) {
	return r.recentCount, r.countErr
}

func (r *stubRepo) RecordAnalysis(ctx context.Context, email string, violations int) error {
	return nil
}

type stubClient struct {
	raw string
	err error
}

func (c *stubClient) Analyze(ctx context.Context, reports []domanalysis.Report) (string, error) {
	return c.raw, c.err
}

func testLimits() Limits {
	return Limits{
		MaxRequestBytes: 10 << 20,
		MaxFileBytes:    5 << 20,
		RateLimitMax:    20,
		RateLimitWindow: time.Hour,
	}
}

func newTestRouter(t *testing.T, repo *stubRepo, client *stubClient, limits Limits) http.Handler {
	t.Helper()

	origins, err := middleware.NewOriginPolicy(
		[]string{"http://localhost:3000"},
		[]string{`^https://[a-z0-9-]+\.lovable\.app$`},
	)
	require.NoError(t, err)

	leadsSvc := &appleads.Service{Repo: repo, Clock: appleads.SystemClock{}}
	analysisSvc := &appanalysis.Service{
		Client:         client,
		Leads:          leadsSvc,
		Clock:          appleads.SystemClock{},
		HeartbeatEvery: time.Minute, // keep heartbeats out of short tests
	}
	return NewRouter(leadsSvc, analysisSvc, origins, nil, limits)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateLead(t *testing.T) {
	repo := &stubRepo{status: domleads.StatusCreated}
	h := newTestRouter(t, repo, &stubClient{}, testLimits())

	rec := postJSON(t, h, "/v1/leads", map[string]any{
		"name":  "Jane Roe",
		"email": "jane@example.com",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Lead created", body["message"])
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, 1, repo.upserts)
}

func TestCreateLeadUpdated(t *testing.T) {
	repo := &stubRepo{status: domleads.StatusUpdated}
	h := newTestRouter(t, repo, &stubClient{}, testLimits())

	rec := postJSON(t, h, "/v1/leads", map[string]any{
		"name":  "Jane Roe",
		"email": "JANE@example.com",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lead updated")
}

func TestCreateLeadValidation(t *testing.T) {
	repo := &stubRepo{}
	h := newTestRouter(t, repo, &stubClient{}, testLimits())

	rec := postJSON(t, h, "/v1/leads", map[string]any{
		"name":  "J",
		"email": "nope",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name")
	assert.Contains(t, rec.Body.String(), "email")
	assert.Zero(t, repo.upserts)
}

func TestCreateLeadStorageErrorRedacted(t *testing.T) {
	repo := &stubRepo{upsertErr: errors.New("duplicate entry 'x' for key 'leads.email'")}
	h := newTestRouter(t, repo, &stubClient{}, testLimits())

	rec := postJSON(t, h, "/v1/leads", map[string]any{
		"name":  "Jane",
		"email": "jane@example.com",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "duplicate entry")
}

type uploadFile struct {
	field string
	data  []byte
}

func analyzeRequest(t *testing.T, files []uploadFile, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.field+".pdf")
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Origin", "http://localhost:3000")
	return req
}

func TestAnalyzeRejectsOversizedRequest(t *testing.T) {
	h := newTestRouter(t, &stubRepo{}, &stubClient{}, testLimits())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader("x"))
	req.ContentLength = (10 << 20) + 1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyzeRejectsDirectAccess(t *testing.T) {
	h := newTestRouter(t, &stubRepo{}, &stubClient{}, testLimits())

	req := analyzeRequest(t, []uploadFile{{"equifax", []byte("%PDF")}}, nil)
	req.Header.Del("Origin")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Direct API access")
}

func TestAnalyzeRejectsUnknownOrigin(t *testing.T) {
	h := newTestRouter(t, &stubRepo{}, &stubClient{}, testLimits())

	req := analyzeRequest(t, []uploadFile{{"equifax", []byte("%PDF")}}, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnalyzeAcceptsPreviewSubdomain(t *testing.T) {
	h := newTestRouter(t, &stubRepo{}, &stubClient{raw: `{"summary":"ok"}`}, testLimits())

	req := analyzeRequest(t, []uploadFile{{"equifax", []byte("%PDF")}}, nil)
	req.Header.Set("Origin", "https://abc123.lovable.app")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "[DONE]")
}

func TestAnalyzeRateLimited(t *testing.T) {
	repo := &stubRepo{recentCount: 20}
	h := newTestRouter(t, repo, &stubClient{}, testLimits())

	req := analyzeRequest(t, []uploadFile{{"equifax", []byte("%PDF")}}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 3600, body["retry_after_seconds"])
}

func TestAnalyzeRateLimitLookupFailureIsOpen(t *testing.T) {
	repo := &stubRepo{countErr: errors.New("db down")}
	h := newTestRouter(t, repo, &stubClient{raw: `{"summary":"ok"}`}, testLimits())

	req := analyzeRequest(t, []uploadFile{{"equifax", []byte("%PDF")}}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzeRejectsOversizedFile(t *testing.T) {
	limits := testLimits()
	limits.MaxFileBytes = 16
	h := newTestRouter(t, &stubRepo{}, &stubClient{}, limits)

	req := analyzeRequest(t, []uploadFile{{"experian", bytes.Repeat([]byte("x"), 64)}}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "experian")
}

func TestAnalyzeRequiresFiles(t *testing.T) {
	h := newTestRouter(t, &stubRepo{}, &stubClient{}, testLimits())

	req := analyzeRequest(t, nil, map[string]string{"leadName": "Jane"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No credit report files")
}

func decodeStream(t *testing.T, body io.Reader) (events []map[string]any, done bool) {
	t.Helper()
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			done = true
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events, done
}

func TestAnalyzeStreamsToCompletion(t *testing.T) {
	repo := &stubRepo{status: domleads.StatusCreated}
	client := &stubClient{raw: `{"summary":"two issues","violations":[{},{}]}`}
	h := newTestRouter(t, repo, client, testLimits())

	req := analyzeRequest(t,
		[]uploadFile{{"equifax", []byte("%PDF-fake")}},
		map[string]string{"leadName": "Jane Roe", "leadEmail": "jane@example.com"},
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events, done := decodeStream(t, rec.Body)
	require.True(t, done, "missing [DONE] sentinel")
	require.NotEmpty(t, events)

	last := -1.0
	for _, ev := range events {
		p, _ := ev["progress"].(float64)
		require.GreaterOrEqual(t, p, last, "progress went backwards")
		last = p
	}

	final := events[len(events)-1]
	assert.Equal(t, "completed", final["status"])
	assert.EqualValues(t, 100, final["progress"])
	result, ok := final["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "two issues", result["summary"])
}

func TestAnalyzeUpstreamErrorFrame(t *testing.T) {
	client := &stubClient{err: domanalysis.ErrQuotaExceeded}
	h := newTestRouter(t, &stubRepo{}, client, testLimits())

	req := analyzeRequest(t, []uploadFile{{"equifax", []byte("%PDF")}}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	events, done := decodeStream(t, rec.Body)
	require.True(t, done)

	final := events[len(events)-1]
	assert.Equal(t, "error", final["status"])
	assert.Equal(t, "Rate limit exceeded. Please try again later.", final["message"])
}

func TestGenerateReport(t *testing.T) {
	h := newTestRouter(t, &stubRepo{}, &stubClient{}, testLimits())

	rec := postJSON(t, h, "/v1/report", map[string]any{
		"results":  map[string]any{"summary": "hello"},
		"leadName": "Jane Roe",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Credit-Report-Analysis-")
	assert.Contains(t, rec.Body.String(), "Jane Roe")
}

func TestGenerateReportRequiresResults(t *testing.T) {
	h := newTestRouter(t, &stubRepo{}, &stubClient{}, testLimits())

	rec := postJSON(t, h, "/v1/report", map[string]any{"leadName": "Jane"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, &stubRepo{}, &stubClient{}, testLimits())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
