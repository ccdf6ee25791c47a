package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dyike/FinCortex/consts"
	"github.com/dyike/FinCortex/internal/models"
)

const (
	StatusDone     = "done"
	StatusFallback = "fallback"
)

// ErrNotFound is returned by Get for an unknown analysis id.
var ErrNotFound = errors.New("analysis not found")

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Store keeps a history of finished analyses in SQLite. Each analysis row
// owns one output row per stage.
type Store struct {
	db *sql.DB
}

// AnalysisRecord is the summary row listed by Recent.
type AnalysisRecord struct {
	ID           string
	Query        string
	Company      string
	K            int
	Status       string
	RiskScore    int
	RiskFallback bool
	StartedAt    time.Time
	Duration     time.Duration
	CreatedAt    string
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    query TEXT NOT NULL,
    company TEXT NOT NULL,
    k INTEGER NOT NULL,
    status TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    risk_fallback INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stage_outputs (
    analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
    stage TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    seq INTEGER NOT NULL,
    PRIMARY KEY (analysis_id, stage)
);

CREATE INDEX IF NOT EXISTS idx_analyses_company_created ON analyses(company, created_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Record stores report and its stage outputs in one transaction. Recording
// the same id again replaces the earlier row.
func (s *Store) Record(ctx context.Context, report *models.AnalysisReport) error {
	if report == nil || strings.TrimSpace(report.ID) == "" {
		return fmt.Errorf("report id is required")
	}
	risk, err := json.Marshal(report.Risk)
	if err != nil {
		return fmt.Errorf("encode risk: %w", err)
	}
	status := StatusDone
	if report.Risk.IsFallback() {
		status = StatusFallback
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO analyses (id, query, company, k, status, risk_score, risk_fallback, started_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    query=excluded.query,
    company=excluded.company,
    k=excluded.k,
    status=excluded.status,
    risk_score=excluded.risk_score,
    risk_fallback=excluded.risk_fallback,
    started_at=excluded.started_at,
    duration_ms=excluded.duration_ms
`, report.ID, report.Query, report.Company, report.K, status,
		report.Risk.Assessment.RiskScore, report.Risk.IsFallback(),
		report.StartedAt.UTC().Format(time.RFC3339Nano), report.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	outputs := []struct {
		stage   string
		content string
	}{
		{consts.Stage_Research, report.Research},
		{consts.Stage_Market, report.Market},
		{consts.Stage_News, report.News},
		{consts.Stage_Risk, string(risk)},
		{consts.Stage_Synthesis, report.Synthesis},
	}
	for i, out := range outputs {
		_, err := tx.ExecContext(ctx, `
INSERT INTO stage_outputs (analysis_id, stage, content, seq)
VALUES (?, ?, ?, ?)
ON CONFLICT(analysis_id, stage) DO UPDATE SET content=excluded.content, seq=excluded.seq
`, report.ID, out.stage, out.content, i+1)
		if err != nil {
			return fmt.Errorf("insert %s output: %w", out.stage, err)
		}
	}
	return tx.Commit()
}

// Recent lists analyses newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	rows, err := s.db.QueryContext(ctx, `
SELECT id, query, company, k, status, risk_score, risk_fallback, started_at, duration_ms, created_at
FROM analyses
ORDER BY rowid DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses rows: %w", err)
	}
	return out, nil
}

// Get rebuilds the full report stored under id.
func (s *Store) Get(ctx context.Context, id string) (*models.AnalysisReport, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, query, company, k, status, risk_score, risk_fallback, started_at, duration_ms, created_at
FROM analyses
WHERE id = ?
`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	report := &models.AnalysisReport{
		ID:        rec.ID,
		Query:     rec.Query,
		Company:   rec.Company,
		K:         rec.K,
		StartedAt: rec.StartedAt,
		Duration:  rec.Duration,
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT stage, content FROM stage_outputs WHERE analysis_id = ? ORDER BY seq ASC
`, id)
	if err != nil {
		return nil, fmt.Errorf("list stage outputs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stage, content string
		if err := rows.Scan(&stage, &content); err != nil {
			return nil, fmt.Errorf("scan stage output: %w", err)
		}
		switch stage {
		case consts.Stage_Research:
			report.Research = content
		case consts.Stage_Market:
			report.Market = content
		case consts.Stage_News:
			report.News = content
		case consts.Stage_Synthesis:
			report.Synthesis = content
		case consts.Stage_Risk:
			if err := json.Unmarshal([]byte(content), &report.Risk); err != nil {
				return nil, fmt.Errorf("decode risk: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stage output rows: %w", err)
	}
	return report, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (AnalysisRecord, error) {
	var (
		rec        AnalysisRecord
		startedAt  string
		durationMS int64
	)
	err := row.Scan(&rec.ID, &rec.Query, &rec.Company, &rec.K, &rec.Status,
		&rec.RiskScore, &rec.RiskFallback, &startedAt, &durationMS, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan analysis: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		rec.StartedAt = t
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}
