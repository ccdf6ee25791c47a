package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dyike/FinCortex/internal/dataset"
	"github.com/dyike/FinCortex/internal/embedding"
	"github.com/dyike/FinCortex/internal/vectorstore"
)

type indexOptions struct {
	data          string
	out           string
	filterCompany string
	sample        int
}

// newIndexCmd creates the index command
func newIndexCmd(a *app) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Document index management",
	}

	var opts indexOptions
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Embed a filings CSV into the document index",
		Long: `Read a filings CSV with columns company, cik, date and text (or item_* columns),
drop short rows, optionally filter and sample, then embed every row into the index.
An existing non-empty index directory is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.data == "" {
				opts.data = filepath.Join(a.cfg.DataDir, "filings.csv")
			}
			if opts.out == "" {
				opts.out = a.cfg.IndexPath
			}
			if opts.sample < 0 {
				return fmt.Errorf("--sample cannot be negative, got %d", opts.sample)
			}
			return runIndexBuild(cmd.Context(), a, opts, cmd.OutOrStdout())
		},
	}
	buildCmd.Flags().StringVar(&opts.data, "data", "", "Filings CSV (default <data_dir>/filings.csv)")
	buildCmd.Flags().StringVar(&opts.out, "out", "", "Index directory (default index_path)")
	buildCmd.Flags().StringVar(&opts.filterCompany, "filter-company", "", "Keep rows whose company contains this text")
	buildCmd.Flags().IntVar(&opts.sample, "sample", 0, "Keep at most this many rows (0 keeps all)")
	indexCmd.AddCommand(buildCmd)

	return indexCmd
}

func runIndexBuild(ctx context.Context, a *app, opts indexOptions, out io.Writer) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	exists, err := vectorstore.IndexExists(opts.out)
	if err != nil {
		return err
	}
	if exists {
		printDone(out, "index already exists at %s; skipping build", opts.out)
		return nil
	}

	cfg := a.cfg
	if err := cfg.RequireEmbeddingCredentials(); err != nil {
		return err
	}

	printStep(out, "loading %s", opts.data)
	filings, err := dataset.LoadFile(opts.data, dataset.Options{
		FilterCompany: opts.filterCompany,
		Sample:        opts.sample,
		Logger:        a.log,
	})
	if err != nil {
		return err
	}
	chunks := dataset.Chunks(filings)

	embedder, err := embedding.NewFromConfig(&cfg, a.log)
	if err != nil {
		return err
	}

	printStep(out, "embedding %d filings with %s", len(chunks), embedder.Model())
	err = vectorstore.Build(ctx, opts.out, chunks, embedder, &vectorstore.BuildOptions{
		Model:     embedder.Model(),
		BatchSize: cfg.EmbedBatchSize,
		Workers:   cfg.EmbedWorkers,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}
	printDone(out, "index written to %s", opts.out)
	return nil
}
