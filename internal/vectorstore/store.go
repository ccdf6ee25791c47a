package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/FinCortex/internal/models"
)

const (
	IndexFile   = "index.json"
	defaultTopK = models.DefaultTopK
)

// ErrIndexNotFound is returned by Load when no usable index exists at the
// given path. It is fatal at startup.
var ErrIndexNotFound = errors.New("vector index not found")

// Store is a read-only, in-memory copy of a persisted index. Similarity is
// brute-force cosine over every record. Safe for concurrent readers.
type Store struct {
	path      string
	model     string
	dimension int
	records   []record
	embedder  embedding.Embedder
}

var _ retriever.Retriever = (*Store)(nil)

type record struct {
	ID       string
	Text     string
	Vector   []float64
	Norm     float64
	Metadata models.ChunkMetadata
}

type indexPayload struct {
	Model     string        `json:"model"`
	Dimension int           `json:"dimension"`
	Records   []indexRecord `json:"records"`
}

type indexRecord struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Embedding []float64      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// Load reads <path>/index.json. Any failure to produce a consistent index is
// reported as ErrIndexNotFound.
func Load(path string, embedder embedding.Embedder) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("vectorstore: embedder is required")
	}
	file := filepath.Join(path, IndexFile)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: read %q: %w (%v)", file, ErrIndexNotFound, err)
	}
	var payload indexPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("vectorstore: decode %q: %w (%v)", file, ErrIndexNotFound, err)
	}

	s := &Store{
		path:      path,
		model:     payload.Model,
		dimension: payload.Dimension,
		records:   make([]record, 0, len(payload.Records)),
		embedder:  embedder,
	}
	for i := range payload.Records {
		rec := payload.Records[i]
		if len(rec.Embedding) != s.dimension {
			return nil, fmt.Errorf("vectorstore: record %q has dimension %d, index declares %d: %w",
				rec.ID, len(rec.Embedding), s.dimension, ErrIndexNotFound)
		}
		s.records = append(s.records, record{
			ID:       rec.ID,
			Text:     rec.Text,
			Vector:   rec.Embedding,
			Norm:     norm(rec.Embedding),
			Metadata: metadataFromMap(rec.Metadata),
		})
	}
	return s, nil
}

func (s *Store) Len() int { return len(s.records) }

func (s *Store) Dimension() int { return s.dimension }

func (s *Store) Model() string { return s.model }

func (s *Store) Path() string { return s.path }

func (s *Store) GetType() string { return "FileVectorStore" }

// Retrieve implements retriever.Retriever. Results are ordered by descending
// cosine similarity, ties broken by record id, and hold at most TopK
// documents. A TopK of zero or less returns nothing without embedding.
func (s *Store) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := defaultTopK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil {
		topK = *options.TopK
	}
	if topK <= 0 || len(s.records) == 0 {
		return []*schema.Document{}, nil
	}

	embedder := s.embedder
	if options.Embedding != nil {
		embedder = options.Embedding
	}
	vecs, err := embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != s.dimension {
		return nil, fmt.Errorf("vectorstore: query embedding has unexpected shape for dimension %d", s.dimension)
	}

	var threshold float64
	if options.ScoreThreshold != nil {
		threshold = *options.ScoreThreshold
	}
	matches := s.search(vecs[0], topK, threshold)

	docs := make([]*schema.Document, 0, len(matches))
	for _, m := range matches {
		rec := s.records[m.idx]
		chunk := models.Chunk{ID: rec.ID, Text: rec.Text, Metadata: rec.Metadata, Score: m.score}
		docs = append(docs, chunk.ToDocument())
	}
	return docs, nil
}

// SimilaritySearch returns the k most similar chunks for query.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	docs, err := s.Retrieve(ctx, query, retriever.WithTopK(k))
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, 0, len(docs))
	for _, doc := range docs {
		chunks = append(chunks, models.ChunkFromDocument(doc))
	}
	return chunks, nil
}

type match struct {
	idx   int
	score float64
}

func (s *Store) search(query []float64, topK int, threshold float64) []match {
	qNorm := norm(query)
	candidates := make([]match, 0, len(s.records))
	for i := range s.records {
		score := cosine(s.records[i].Vector, s.records[i].Norm, query, qNorm)
		if threshold > 0 && score < threshold {
			continue
		}
		candidates = append(candidates, match{idx: i, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return s.records[candidates[i].idx].ID < s.records[candidates[j].idx].ID
		}
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func cosine(a []float64, aNorm float64, b []float64, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (aNorm * bNorm)
}

func metadataFromMap(m map[string]any) models.ChunkMetadata {
	doc := &schema.Document{MetaData: m}
	return models.ChunkFromDocument(doc).Metadata
}
