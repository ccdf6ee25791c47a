package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dyike/FinCortex/internal/models"
)

const (
	// MinTextLength is the exclusive lower bound on filing text length.
	MinTextLength = 100
	SampleSeed    = 42

	itemColumnPrefix = "item_"
	itemSeparator    = " \n\n "
)

var (
	ErrEmptyDataset  = errors.New("dataset is empty after filtering")
	ErrMissingColumn = errors.New("dataset is missing a required column")
)

// Filing is one annual report row.
type Filing struct {
	Company string
	CIK     string
	Date    string
	Text    string
}

func (f Filing) Chunk() models.Chunk {
	return models.Chunk{
		Text: f.Text,
		Metadata: models.ChunkMetadata{
			Company:    f.Company,
			CIK:        f.CIK,
			FilingDate: f.Date,
		},
	}
}

type Options struct {
	// FilterCompany keeps rows whose company contains it, case-insensitively.
	FilterCompany string
	// Sample keeps at most this many rows, chosen with a fixed seed. Zero keeps all.
	Sample int
	Logger *zap.Logger
}

// LoadFile reads a filings CSV from disk.
func LoadFile(path string, opts Options) ([]Filing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load reads filings with columns company, cik, date and text. When there is
// no text column, every item_* column is joined into the text. Rows with
// short text or no company are dropped, then the company filter and sampling
// are applied in that order.
func Load(r io.Reader, opts Options) ([]Filing, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}
	if len(cols.items) == 0 && cols.text < 0 {
		logger.Warn("no text or item_ columns found, schema may be incorrect")
	}

	var filings []Filing
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row: %w", err)
		}
		filing := cols.filing(row)
		if utf8.RuneCountInString(filing.Text) <= MinTextLength {
			continue
		}
		if strings.TrimSpace(filing.Company) == "" {
			continue
		}
		filings = append(filings, filing)
	}
	logger.Info("dataset loaded and cleaned", zap.Int("documents", len(filings)))

	if opts.FilterCompany != "" {
		before := len(filings)
		filings = FilterCompany(filings, opts.FilterCompany)
		logger.Info("filtered by company",
			zap.String("company", opts.FilterCompany),
			zap.Int("retained", len(filings)),
			zap.Int("dropped", before-len(filings)))
	}

	if opts.Sample > 0 && len(filings) > opts.Sample {
		filings = Sample(filings, opts.Sample)
		logger.Info("dataset sampled", zap.Int("documents", len(filings)))
	}

	if len(filings) == 0 {
		return nil, ErrEmptyDataset
	}
	return filings, nil
}

// FilterCompany keeps filings whose company contains needle, ignoring case.
func FilterCompany(filings []Filing, needle string) []Filing {
	needle = strings.ToLower(needle)
	out := filings[:0:0]
	for _, f := range filings {
		if strings.Contains(strings.ToLower(f.Company), needle) {
			out = append(out, f)
		}
	}
	return out
}

// Sample picks n filings with the fixed seed and keeps their original order.
// The same input always yields the same sample.
func Sample(filings []Filing, n int) []Filing {
	if n <= 0 || n >= len(filings) {
		return filings
	}
	rng := rand.New(rand.NewPCG(SampleSeed, SampleSeed))
	picked := rng.Perm(len(filings))[:n]
	sort.Ints(picked)
	out := make([]Filing, 0, n)
	for _, i := range picked {
		out = append(out, filings[i])
	}
	return out
}

func Chunks(filings []Filing) []models.Chunk {
	out := make([]models.Chunk, 0, len(filings))
	for _, f := range filings {
		out = append(out, f.Chunk())
	}
	return out
}

type columns struct {
	company, cik, date, text int
	items                    []int
}

func resolveColumns(header []string) (columns, error) {
	cols := columns{company: -1, cik: -1, date: -1, text: -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case name == "company":
			cols.company = i
		case name == "cik":
			cols.cik = i
		case name == "date":
			cols.date = i
		case name == "text":
			cols.text = i
		case strings.HasPrefix(name, itemColumnPrefix):
			cols.items = append(cols.items, i)
		}
	}
	if cols.company < 0 {
		return cols, fmt.Errorf("%w: company", ErrMissingColumn)
	}
	return cols, nil
}

func (c columns) filing(row []string) Filing {
	f := Filing{
		Company: field(row, c.company),
		CIK:     field(row, c.cik),
		Date:    field(row, c.date),
	}
	if c.text >= 0 {
		f.Text = field(row, c.text)
		return f
	}
	parts := make([]string, 0, len(c.items))
	for _, i := range c.items {
		parts = append(parts, field(row, i))
	}
	f.Text = strings.Join(parts, itemSeparator)
	return f
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
