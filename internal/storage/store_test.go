package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinCortex/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history", "fincortex.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(id, company string) *models.AnalysisReport {
	return &models.AnalysisReport{
		ID:        id,
		Query:     "What are the key risks?",
		Company:   company,
		K:         4,
		Research:  "research text",
		Market:    "market text",
		News:      "news text",
		Synthesis: "Recommendation: Hold",
		Risk: models.ValidatedRisk(models.RiskAssessment{
			RiskScore:        35,
			RiskDrivers:      []string{"competition", "regulation"},
			ConfidenceLevel:  models.ConfidenceHigh,
			QuantitativeFlag: "Price_Above_MA_Bullish",
		}),
		StartedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Duration:  2500 * time.Millisecond,
	}
}

func TestRecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	want := sampleReport("a1", "MSFT")

	require.NoError(t, s.Record(ctx, want))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, want.Query, got.Query)
	assert.Equal(t, want.Company, got.Company)
	assert.Equal(t, want.K, got.K)
	assert.Equal(t, want.Research, got.Research)
	assert.Equal(t, want.Market, got.Market)
	assert.Equal(t, want.News, got.News)
	assert.Equal(t, want.Synthesis, got.Synthesis)
	assert.Equal(t, want.Risk.Assessment, got.Risk.Assessment)
	assert.False(t, got.Risk.IsFallback())
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, want.Duration, got.Duration)
}

func TestRecordFallbackRisk(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	report := sampleReport("f1", "AAPL")
	report.Risk = models.FallbackRisk(errors.New("no json"))

	require.NoError(t, s.Record(ctx, report))

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, StatusFallback, recent[0].Status)
	assert.True(t, recent[0].RiskFallback)
	assert.Equal(t, models.FallbackRiskScore, recent[0].RiskScore)

	got, err := s.Get(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, got.Risk.IsFallback())
	assert.Contains(t, got.Risk.Error, "no json")
}

func TestRecentNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.Record(ctx, sampleReport(id, "MSFT")))
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "r3", recent[0].ID)
	assert.Equal(t, "r2", recent[1].ID)
	assert.Equal(t, StatusDone, recent[0].Status)
}

func TestRecordReplacesSameID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	report := sampleReport("dup", "MSFT")
	require.NoError(t, s.Record(ctx, report))

	report.Synthesis = "Recommendation: Sell"
	require.NoError(t, s.Record(ctx, report))

	recent, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
	got, err := s.Get(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "Recommendation: Sell", got.Synthesis)
}

func TestGetUnknown(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRequiresID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Record(context.Background(), &models.AnalysisReport{}))
	assert.Error(t, s.Record(context.Background(), nil))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ")
	assert.Error(t, err)
}
