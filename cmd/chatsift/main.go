package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatsift/chatsift/internal/config"
	"github.com/chatsift/chatsift/internal/extractor"
	"github.com/chatsift/chatsift/internal/llm"
	"github.com/chatsift/chatsift/internal/notify"
	"github.com/chatsift/chatsift/internal/pipeline"
	"github.com/chatsift/chatsift/internal/store"
)

var (
	surveyPath string
	outputCSV  string
)

var rootCmd = &cobra.Command{
	Use:   "chatsift",
	Short: "Extract schema-validated records from chat transcripts",
}

var runCmd = &cobra.Command{
	Use:   "run INPUT_CSV",
	Short: "run one extraction over a chat export",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtraction,
}

func init() {
	runCmd.Flags().StringVarP(&surveyPath, "config", "c", "survey.yml", "path to the survey config")
	runCmd.Flags().StringVarP(&outputCSV, "output-csv", "o", "", "write projected rows to this CSV file")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExtraction(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	survey, err := config.LoadSurvey(surveyPath)
	if err != nil {
		return err
	}
	slog.Info("survey loaded", "survey", survey.Name, "path", surveyPath)

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("llm client ready", "provider", cfg.Provider, "model", cfg.Model)

	// Database sink (optional)
	var db *store.Store
	if cfg.DatabaseURL != "" {
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		slog.Info("database connected")
	}

	// NATS notifier (optional)
	var notifier *notify.Client
	if cfg.NatsURL != "" {
		notifier, err = notify.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return err
		}
		defer notifier.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	opts := extractor.Options{
		MaxCorpusChars: cfg.MaxCorpusChars,
		MaxAttempts:    cfg.MaxAttempts,
		Backoff:        cfg.RetryBackoff,
		Timeout:        cfg.RequestTimeout,
	}
	p := pipeline.New(client, db, notifier, opts, cfg.MaxConcurrent, slog.Default())

	summary, err := p.Run(ctx, survey, args[0], outputCSV)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d total, %d succeeded, %d failed\n",
		summary.RunID, summary.Total, summary.Succeeded, summary.Failed)
	return nil
}

func newLLMClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, cfg.Temperature), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		return llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model, float32(cfg.Temperature))
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai or gemini)", cfg.Provider)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
