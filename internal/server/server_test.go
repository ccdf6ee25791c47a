package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinCortex/internal/graph"
	"github.com/dyike/FinCortex/internal/models"
	"github.com/dyike/FinCortex/internal/storage"
)

type fakeAnalyzer struct {
	got models.AnalysisRequest
	err error
}

func (f *fakeAnalyzer) Run(_ context.Context, req models.AnalysisRequest) (*models.AnalysisReport, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnalysisReport{
		ID:        req.ID,
		Query:     req.Query,
		Company:   req.Company,
		K:         req.K,
		Synthesis: "Recommendation: Buy\n\n## Executive Summary",
	}, nil
}

type fakeHistory struct {
	records []storage.AnalysisRecord
	reports map[string]*models.AnalysisReport
	limit   int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]storage.AnalysisRecord, error) {
	f.limit = limit
	return f.records, nil
}

func (f *fakeHistory) Get(_ context.Context, id string) (*models.AnalysisReport, error) {
	if r, ok := f.reports[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
}

func postAnalyze(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeDefaultsK(t *testing.T) {
	a := &fakeAnalyzer{}
	h := New(a, nil).Router()

	rec := postAnalyze(t, h, `{"query": "Key risks?", "company": "MSFT"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 4, a.got.K)
	assert.Equal(t, "Key risks?", a.got.Query)
	assert.Equal(t, "MSFT", a.got.Company)
	assert.NotEmpty(t, a.got.ID)
	assert.Equal(t, a.got.ID, rec.Header().Get("X-Request-ID"))

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, map[string]string{"synthesis": "Recommendation: Buy\n\n## Executive Summary"}, out)
}

func TestAnalyzeExplicitK(t *testing.T) {
	for _, k := range []int{0, 7} {
		a := &fakeAnalyzer{}
		rec := postAnalyze(t, New(a, nil).Router(), fmt.Sprintf(`{"query": "q", "company": "MSFT", "k": %d}`, k))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, k, a.got.K)
	}
}

func TestAnalyzeUsesCallerRequestID(t *testing.T) {
	a := &fakeAnalyzer{}
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"query": "q", "company": "MSFT"}`))
	req.Header.Set("X-Request-ID", "trace-123")
	rec := httptest.NewRecorder()
	New(a, nil).Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace-123", a.got.ID)
}

func TestAnalyzeBadRequests(t *testing.T) {
	cases := map[string]string{
		"malformed json": `{"query": "q", "company":`,
		"missing query":  `{"company": "MSFT"}`,
		"blank company":  `{"query": "q", "company": "   "}`,
		"negative k":     `{"query": "q", "company": "MSFT", "k": -1}`,
		"k wrong type":   `{"query": "q", "company": "MSFT", "k": "four"}`,
		"empty body":     ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			a := &fakeAnalyzer{}
			rec := postAnalyze(t, New(a, nil).Router(), body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var out map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			assert.NotEmpty(t, out["detail"])
			assert.Empty(t, a.got.Query)
		})
	}
}

func TestAnalyzePipelineError(t *testing.T) {
	a := &fakeAnalyzer{err: errors.New("graph exploded")}
	rec := postAnalyze(t, New(a, nil).Router(), `{"query": "q", "company": "MSFT"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "graph exploded", out["detail"])
}

func TestAnalyzeInvalidRequestFromPipeline(t *testing.T) {
	a := &fakeAnalyzer{err: fmt.Errorf("%w: query and company are required", graph.ErrInvalidRequest)}
	rec := postAnalyze(t, New(a, nil).Router(), `{"query": "q", "company": "MSFT"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeFullReport(t *testing.T) {
	a := &fakeAnalyzer{}
	req := httptest.NewRequest(http.MethodPost, "/analyze?full=true", strings.NewReader(`{"query": "q", "company": "MSFT", "k": 2}`))
	rec := httptest.NewRecorder()
	New(a, nil).Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out models.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "MSFT", out.Company)
	assert.Equal(t, 2, out.K)
}

func TestHealthAndMetrics(t *testing.T) {
	h := New(&fakeAnalyzer{}, nil).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fincortex_")
}

func TestHistoryRoutes(t *testing.T) {
	hist := &fakeHistory{
		records: []storage.AnalysisRecord{{ID: "a1", Company: "MSFT", RiskScore: 35}},
		reports: map[string]*models.AnalysisReport{"a1": {ID: "a1", Synthesis: "Recommendation: Hold"}},
	}
	h := New(&fakeAnalyzer{}, nil, WithHistory(hist)).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, hist.limit)
	assert.Contains(t, rec.Body.String(), `"a1"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/a1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Recommendation: Hold")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/zzz", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryDisabledWithoutStore(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeAnalyzer{}, nil).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
