package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/FinCortex/internal/models"
)

var (
	// ErrIndexExists is returned by Build when the target directory already
	// holds files. Callers treat it as "nothing to do".
	ErrIndexExists = errors.New("vector index already exists")
	ErrNoChunks    = errors.New("no chunks to index")
)

const (
	defaultBatchSize   = 64
	defaultWorkers     = 4
	defaultWindowChars = 6000
)

type BuildOptions struct {
	Model     string
	BatchSize int
	Workers   int
	// WindowChars caps the text sent per embedding input. Longer chunks are
	// embedded window by window and the vectors averaged by window length.
	WindowChars int
	Logger      *zap.Logger
}

func (o *BuildOptions) withDefaults() BuildOptions {
	out := BuildOptions{}
	if o != nil {
		out = *o
	}
	if out.BatchSize <= 0 {
		out.BatchSize = defaultBatchSize
	}
	if out.Workers <= 0 {
		out.Workers = defaultWorkers
	}
	if out.WindowChars <= 0 {
		out.WindowChars = defaultWindowChars
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}

// IndexExists reports whether path is a directory with at least one entry.
func IndexExists(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("vectorstore: inspect %q: %w", path, err)
	}
	return len(entries) > 0, nil
}

type window struct {
	chunk int
	text  string
}

// Build embeds chunks and writes <path>/index.json. Embedding batches run
// concurrently; the first failure cancels the rest and nothing is written.
func Build(ctx context.Context, path string, chunks []models.Chunk, embedder embedding.Embedder, opts *BuildOptions) error {
	o := opts.withDefaults()
	if embedder == nil {
		return errors.New("vectorstore: embedder is required")
	}
	exists, err := IndexExists(path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("vectorstore: %q: %w", path, ErrIndexExists)
	}
	if len(chunks) == 0 {
		return ErrNoChunks
	}

	windows, err := splitWindows(chunks, o.WindowChars)
	if err != nil {
		return err
	}
	o.Logger.Info("embedding chunks",
		zap.Int("chunks", len(chunks)),
		zap.Int("windows", len(windows)),
		zap.Int("batch_size", o.BatchSize),
		zap.Int("workers", o.Workers))

	vectors := make([][]float64, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)
	for start := 0; start < len(windows); start += o.BatchSize {
		end := min(start+o.BatchSize, len(windows))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, w := range windows[start:end] {
				texts = append(texts, w.text)
			}
			vecs, err := embedder.EmbedStrings(gctx, texts)
			if err != nil {
				return fmt.Errorf("vectorstore: embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("vectorstore: embed batch %d-%d returned %d vectors", start, end, len(vecs))
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	payload, err := assemble(chunks, windows, vectors, o.Model)
	if err != nil {
		return err
	}
	if err := writeIndex(path, payload); err != nil {
		return err
	}
	o.Logger.Info("vector index written",
		zap.String("path", path),
		zap.Int("records", len(payload.Records)),
		zap.Int("dimension", payload.Dimension))
	return nil
}

func splitWindows(chunks []models.Chunk, size int) ([]window, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(0),
	)
	var windows []window
	for i, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if len(text) <= size {
			windows = append(windows, window{chunk: i, text: text})
			continue
		}
		parts, err := splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: split chunk %d: %w", i, err)
		}
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				continue
			}
			windows = append(windows, window{chunk: i, text: p})
		}
	}
	return windows, nil
}

func assemble(chunks []models.Chunk, windows []window, vectors [][]float64, model string) (*indexPayload, error) {
	sums := make([][]float64, len(chunks))
	weights := make([]float64, len(chunks))
	dimension := 0
	for i, w := range windows {
		vec := vectors[i]
		if dimension == 0 {
			dimension = len(vec)
		}
		if len(vec) != dimension || dimension == 0 {
			return nil, fmt.Errorf("vectorstore: inconsistent embedding dimension %d (want %d)", len(vec), dimension)
		}
		if sums[w.chunk] == nil {
			sums[w.chunk] = make([]float64, dimension)
		}
		weight := float64(len(w.text))
		for j, v := range vec {
			sums[w.chunk][j] += v * weight
		}
		weights[w.chunk] += weight
	}

	payload := &indexPayload{Model: model, Dimension: dimension, Records: make([]indexRecord, 0, len(chunks))}
	for i, c := range chunks {
		if sums[i] == nil {
			continue
		}
		vec := sums[i]
		if n := norm(vec); n > 0 {
			for j := range vec {
				vec[j] /= n
			}
		}
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("chunk-%06d", i)
		}
		payload.Records = append(payload.Records, indexRecord{
			ID:        id,
			Text:      c.Text,
			Embedding: vec,
			Metadata:  c.Metadata.AsMap(),
		})
	}
	return payload, nil
}

func writeIndex(path string, payload *indexPayload) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("vectorstore: create %q: %w", path, err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("vectorstore: encode index: %w", err)
	}
	tmp, err := os.CreateTemp(path, "index-*.tmp")
	if err != nil {
		return fmt.Errorf("vectorstore: create temp index: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("vectorstore: write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("vectorstore: close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(path, IndexFile)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("vectorstore: commit index: %w", err)
	}
	return nil
}
