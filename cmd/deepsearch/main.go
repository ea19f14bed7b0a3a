package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/devraulu/deepsearch/pkg/config"
	"github.com/devraulu/deepsearch/pkg/logger"
	"github.com/devraulu/deepsearch/pkg/pipeline"
	"github.com/devraulu/deepsearch/pkg/storage"
)

var (
	flagConfig     string
	flagMaxResults int
	flagMaxFetch   int
	flagDelay      float64
	flagSave       string
	flagJSON       bool
)

func main() {
	root := &cobra.Command{
		Use:          "deepsearch <query>",
		Short:        "Query-driven web discovery with multi-signal document analysis",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}

	root.Flags().StringVar(&flagConfig, "config", "config.toml", "path to config file")
	root.Flags().IntVar(&flagMaxResults, "max-results", 15, "maximum search hits to request")
	root.Flags().IntVar(&flagMaxFetch, "max-fetch", 5, "maximum pages to fetch")
	root.Flags().Float64Var(&flagDelay, "delay", 1.0, "per-host delay between fetches, in seconds")
	root.Flags().StringVar(&flagSave, "save", "", "write the result JSON to a file")
	root.Flags().BoolVar(&flagJSON, "json", false, "print the result JSON instead of the summary")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	query := args[0]

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("couldn't load config: %w", err)
	}

	// Flags override the config so the CLI maps 1:1 onto the entrypoint.
	cfg.Search.MaxResults = flagMaxResults
	cfg.Fetch.MaxFetch = flagMaxFetch
	cfg.Politeness.Delay = (time.Duration(flagDelay * float64(time.Second))).String()

	logger.InitLogger(cfg)

	p, err := pipeline.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("couldn't build pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Per-document failures never fail the run; only an unreachable
	// provider does.
	result, err := p.Run(ctx, query)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printSummary(result)
	}

	if flagSave != "" {
		if err := saveJSON(result, flagSave); err != nil {
			return err
		}
		fmt.Printf("\nsaved JSON to %s\n", flagSave)
	}

	if cfg.ArchiveDSN != "" {
		if err := archive(context.Background(), cfg.ArchiveDSN, result); err != nil {
			// Archival is best-effort: the result was already delivered.
			slog.Error("failed to archive run", slog.Any("err", err))
		}
	}

	return nil
}

func saveJSON(result *pipeline.Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func archive(ctx context.Context, dsn string, result *pipeline.Result) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		return err
	}

	run, docs, err := storage.FromResult(result)
	if err != nil {
		return err
	}
	return storage.NewPostgresStorage(db).SaveRun(ctx, run, docs)
}

func printSummary(result *pipeline.Result) {
	fmt.Printf("Query: %s\n\n", result.Query)

	in := result.Insights
	fmt.Println("Insights:")
	fmt.Printf("  overall credibility: %.3f\n", in.OverallCredibility)
	if len(in.ConsensusThemes) > 0 {
		fmt.Printf("  consensus themes:    %s\n", joinMax(in.ConsensusThemes, 5))
	}
	if len(in.TopSources) > 0 {
		fmt.Println("  top sources:")
		for _, src := range in.TopSources {
			fmt.Printf("    %.3f  %s\n", src.Credibility, src.URL)
		}
	}
	fmt.Println()

	for i, res := range result.Results {
		title := res.Outcome.Hit.Title
		if res.Analyzed != nil && res.Analyzed.Document.Title != "" {
			title = res.Analyzed.Document.Title
		}
		if title == "" {
			title = "(no title)"
		}

		fmt.Printf("[%d] %s\n", i+1, title)
		fmt.Printf("    URL: %s\n", res.Outcome.Hit.URL)

		if res.Analyzed == nil {
			fmt.Printf("    Status: %s: %s\n", res.Outcome.Status, res.Outcome.Reason)
			fmt.Println()
			continue
		}

		a := res.Analyzed.Analysis
		fmt.Printf("    Credibility: %.3f | Words: %d | Language: %s\n",
			a.Credibility, res.Analyzed.Document.WordCount, res.Analyzed.Document.Language)
		fmt.Printf("    Sentiment: %s (polarity: %.3f)\n", a.Sentiment.Label, a.Sentiment.Polarity)
		if len(a.Keyphrases) > 0 {
			phrases := make([]string, 0, len(a.Keyphrases))
			for _, kp := range a.Keyphrases {
				phrases = append(phrases, kp.Phrase)
			}
			fmt.Printf("    Key phrases: %s\n", joinMax(phrases, 5))
		}
		fmt.Println()
	}

	for _, hit := range result.Unfetched {
		fmt.Printf("[-] %s (not fetched)\n    URL: %s\n", hit.Title, hit.URL)
	}
}

func joinMax(items []string, max int) string {
	if len(items) > max {
		items = items[:max]
	}
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}
