package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/FinCortex/config"
	"github.com/dyike/FinCortex/internal/dataflows"
	"github.com/dyike/FinCortex/internal/debug"
	"github.com/dyike/FinCortex/internal/display"
	"github.com/dyike/FinCortex/internal/graph"
	"github.com/dyike/FinCortex/internal/models"
	"github.com/dyike/FinCortex/internal/storage"
	"github.com/dyike/FinCortex/internal/vectorstore"
)

// newAnalyzeCmd creates the analyze command
func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		query   string
		k       int
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [COMPANY]",
		Short: "Run a full analysis for a company",
		Long: `Run the research, market, news, risk and synthesis stages for one company.
Missing arguments are asked for interactively.
Example: fincortex analyze MSFT --query "What are the key risks?" --k 4`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.AnalysisRequest{Query: strings.TrimSpace(query), K: a.cfg.DefaultTopK}
			if len(args) == 1 {
				req.Company = strings.ToUpper(strings.TrimSpace(args[0]))
			}
			interactive := req.Company == ""

			var err error
			if req.Company == "" {
				if req.Company, err = PromptForCompany(); err != nil {
					return err
				}
			}
			if req.Query == "" {
				if req.Query, err = PromptForQuery(req.Company); err != nil {
					return err
				}
			}
			switch {
			case cmd.Flags().Changed("k"):
				req.K = k
			case interactive:
				if req.K, err = PromptForTopK(a.cfg.DefaultTopK); err != nil {
					return err
				}
			}
			if req.K < 0 {
				return fmt.Errorf("--k cannot be negative, got %d", req.K)
			}

			return runAnalyze(cmd.Context(), a, req, verbose, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Question answered from the SEC filings")
	cmd.Flags().IntVar(&k, "k", models.DefaultTopK, "Number of filing excerpts to retrieve")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print the research, market and news outputs")

	return cmd
}

// runAnalyze executes one pipeline run and prints the report
func runAnalyze(ctx context.Context, a *app, req models.AnalysisRequest, verbose bool, out io.Writer) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	cfg := a.cfg
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	if err := debug.NewEinoDebugger(&cfg, a.log).Initialize(ctx); err != nil {
		return err
	}

	var opts []graph.PipelineOption
	history, err := openHistory(&cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		opts = append(opts, graph.WithRecorder(history))
	}

	pipeline, closer, err := graph.Build(ctx, &cfg, a.log, opts...)
	if err != nil {
		return err
	}
	defer closer.Close()

	printHeader(out, fmt.Sprintf("Analyzing %s | k=%d\n%s", req.Company, req.K, req.Query))
	printStep(out, "running research, market and news analysts")

	report, err := pipeline.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	printDone(out, "analysis completed in %s", report.Duration.Round(time.Millisecond))
	return display.ResultsDisplay{Verbose: verbose}.Print(out, report)
}

// openHistory returns nil when no history database is configured.
func openHistory(cfg *config.Config) (*storage.Store, error) {
	if strings.TrimSpace(cfg.HistoryDBPath) == "" {
		return nil, nil
	}
	return storage.Open(cfg.HistoryDBPath)
}

// newHistoryCmd lists or shows recorded analyses
func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [ID]",
		Short: "List recorded analyses or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(&a.cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("history is disabled; set history_db_path or HISTORY_DB_PATH")
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				report, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return display.ResultsDisplay{Verbose: true}.Print(out, report)
			}

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printTitle(out, "Recent analyses")
			if len(records) == 0 {
				fmt.Fprintln(out, pendingStyle.Render("no analyses recorded yet"))
				return nil
			}
			for _, r := range records {
				risk := fmt.Sprintf("risk %d", r.RiskScore)
				if r.RiskFallback {
					risk += " (fallback)"
				}
				fmt.Fprintf(out, "%s  %-8s %-10s %-16s %s\n", r.ID, r.Company, r.Status, risk, r.Query)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of analyses to list")
	return cmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// version does not need a configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "FinCortex v%s\n", Version)
			fmt.Fprintln(cmd.OutOrStdout(), "Retrieval-augmented multi-agent financial analysis")
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Inspect and validate FinCortex configuration settings",
	}

	var asJSON bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return writeMaskedJSON(cmd.OutOrStdout(), a.cfg)
			}
			showConfig(cmd.OutOrStdout(), a.manager.Path(), &a.cfg)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "Print the configuration as JSON with secrets masked")
	configCmd.AddCommand(showCmd)

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd.OutOrStdout(), &a.cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Change configuration values in the config file",
		Long: `Write one or more settings to the config file, named by their JSON keys.
Example: fincortex config set log_level=debug default_top_k=6 llm_timeout=2m`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfig(cmd.OutOrStdout(), a.manager, args)
		},
	})

	return configCmd
}

// setConfig applies KEY=VALUE pairs in order and stops at the first failure
func setConfig(w io.Writer, manager *config.Manager, pairs []string) error {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("expected KEY=VALUE, got %q", pair)
		}
		if err := manager.Set(key, value); err != nil {
			return err
		}
		printDone(w, "%s updated", key)
	}
	field(w, "Config file", manager.Path())
	return nil
}

// showConfig displays the current configuration
func showConfig(w io.Writer, path string, cfg *config.Config) {
	printTitle(w, "FinCortex configuration")
	field(w, "Config file", path)
	field(w, "Project directory", cfg.ProjectDir)
	field(w, "Data directory", cfg.DataDir)
	field(w, "Index path", cfg.IndexPath)
	field(w, "History database", valueOr(cfg.HistoryDBPath, "disabled"))
	fmt.Fprintln(w)
	field(w, "LLM provider", cfg.LLMProvider)
	field(w, "Analyst model", cfg.AnalystLLM)
	field(w, "Summarizer model", cfg.SummarizerLLM)
	field(w, "Light model", cfg.LightLLM)
	field(w, "Backend URL", cfg.BackendURL)
	field(w, "LLM timeout", cfg.LLMTimeout.Std())
	field(w, "Embedding model", cfg.EmbeddingModel)
	fmt.Fprintln(w)
	field(w, "Default top k", cfg.DefaultTopK)
	field(w, "Chunk size / overlap", fmt.Sprintf("%d / %d", cfg.ChunkSize, cfg.ChunkOverlap))
	field(w, "Max sub-chunks", cfg.MaxSubChunks)
	field(w, "Market period (days)", cfg.MarketPeriodDays)
	field(w, "News lookback (days)", cfg.NewsLookbackDays)
	fmt.Fprintln(w)
	field(w, "HTTP address", cfg.HTTPAddr)
	field(w, "Log", fmt.Sprintf("%s / %s", cfg.LogEnv, cfg.LogLevel))
	field(w, "Eino debug", cfg.EinoDebugEnabled)
	if cfg.EinoDebugEnabled {
		field(w, "Debug URL", fmt.Sprintf("http://localhost:%d", debug.DevServerPort))
	}
	fmt.Fprintln(w)
	field(w, "OpenAI API", configured(cfg.OpenAIAPIKey != ""))
	field(w, "DeepSeek API", configured(cfg.DeepSeekAPIKey != ""))
	field(w, "Longport API", configured(dataflows.LongportConfigured(cfg)))
	field(w, "Finnhub API", configured(dataflows.FinnhubConfigured(cfg)))
}

// validateConfig checks structure, credentials and the document index
func validateConfig(w io.Writer, cfg *config.Config) error {
	printTitle(w, "Validating FinCortex configuration")

	var failed bool
	check := func(name string, err error) {
		if err != nil {
			failed = true
			printWarn(w, "%s: %v", name, err)
			return
		}
		printDone(w, "%s", name)
	}

	check("settings", cfg.Validate())
	check("model credentials", cfg.RequireCredentials())
	check("embedding credentials", cfg.RequireEmbeddingCredentials())

	exists, err := vectorstore.IndexExists(cfg.IndexPath)
	if err == nil && !exists {
		err = fmt.Errorf("%s: %w; run `fincortex index build`", cfg.IndexPath, vectorstore.ErrIndexNotFound)
	}
	check("document index", err)

	if !dataflows.LongportConfigured(cfg) {
		fmt.Fprintln(w, pendingStyle.Render("longport not configured; Yahoo Finance serves every symbol"))
	}

	if failed {
		return errors.New("configuration is not ready")
	}
	printDone(w, "configuration is ready")
	return nil
}

func writeMaskedJSON(w io.Writer, cfg config.Config) error {
	cfg.OpenAIAPIKey = mask(cfg.OpenAIAPIKey)
	cfg.DeepSeekAPIKey = mask(cfg.DeepSeekAPIKey)
	cfg.LongportAppSecret = mask(cfg.LongportAppSecret)
	cfg.LongportAccessToken = mask(cfg.LongportAccessToken)
	cfg.FinnhubAPIKey = mask(cfg.FinnhubAPIKey)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
