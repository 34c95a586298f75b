package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/kobeya/studypartner/internal/config"
	"github.com/kobeya/studypartner/internal/difficulty"
	"github.com/kobeya/studypartner/internal/embedding"
	"github.com/kobeya/studypartner/internal/gitsource"
	"github.com/kobeya/studypartner/internal/jobs"
	"github.com/kobeya/studypartner/internal/llm"
	"github.com/kobeya/studypartner/internal/similarity"
	"github.com/kobeya/studypartner/internal/sm2"
	"github.com/kobeya/studypartner/internal/storage"
	"github.com/kobeya/studypartner/internal/study"
	"github.com/kobeya/studypartner/internal/sync"
	"github.com/kobeya/studypartner/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	flags := pflag.NewFlagSet("studypartner", pflag.ExitOnError)
	config.RegisterFlags(flags)
	addSource := flags.String("add-source", "", "Register a wordlist directory or git URL and exit")
	syncOnce := flags.Bool("sync", false, "Sync all wordlist sources once and exit")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(cfg.Log.Handler(os.Stderr)))

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("Database opened", "path", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scorer := difficulty.New()

	if *addSource != "" {
		return registerSource(ctx, db, cfg.Sync.ReposDir, *addSource)
	}
	if *syncOnce {
		report, err := sync.RunSync(ctx, db, scorer, cfg.Sync.ReposDir)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d sources, %d files, %d words (%d detached), %d errors.\n",
			report.Sources, report.Files, report.Words, report.Detached, len(report.Errors))
		for _, e := range report.Errors {
			fmt.Printf("- %s\n", e)
		}
		return nil
	}

	memory := embedding.NewMemoryCache(cfg.Cache.Capacity, cfg.Cache.TTL, time.Now)
	var (
		embedder similarity.Embedder
		definer  web.Definer
		sqlTier  *embedding.SQLiteTier
	)
	if cfg.OpenAI.APIKey != "" {
		client := llm.New(llm.Config{
			APIKey:            cfg.OpenAI.APIKey,
			BaseURL:           cfg.OpenAI.BaseURL,
			ChatModel:         cfg.OpenAI.ChatModel,
			EmbeddingModel:    cfg.OpenAI.EmbeddingModel,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
			Burst:             cfg.OpenAI.Burst,
		})
		sqlTier = embedding.NewSQLiteTier(db, client.EmbeddingModel(), cfg.Cache.TTL, time.Now)
		tiers := []embedding.Tier{sqlTier}

		if cfg.Cache.RedisAddr != "" {
			redisTier, err := embedding.NewRedisTier(ctx, embedding.RedisOptions{
				Addr:     cfg.Cache.RedisAddr,
				Password: cfg.Cache.RedisPassword,
				DB:       cfg.Cache.RedisDB,
				TTL:      cfg.Cache.TTL,
			})
			if err != nil {
				return err
			}
			defer redisTier.Close()
			tiers = append(tiers, redisTier)
		}

		embedder = embedding.NewCachedEmbedder(client, client.EmbeddingModel(), memory, tiers...)
		definer = client
		slog.Info("LLM provider enabled", "chat_model", cfg.OpenAI.ChatModel, "embedding_model", cfg.OpenAI.EmbeddingModel)
	} else {
		slog.Warn("No OpenAI API key configured; embedding checks and definitions are disabled")
	}

	checkerCfg := similarity.DefaultConfig()
	checkerCfg.CriticalSimilarity = cfg.Similarity.CriticalThreshold
	checkerCfg.WarningSimilarity = cfg.Similarity.WarningThreshold

	scheduler := jobs.New()
	for _, job := range []jobs.Job{
		jobs.SyncJob(db, scorer, cfg.Sync.ReposDir, cfg.Sync.Interval),
		jobs.CleanupJob(memory, sqlTier, cfg.Cleanup.Interval),
	} {
		if err := scheduler.Add(job); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: web.NewServer(web.Deps{
			DB:       db,
			Scorer:   scorer,
			Study:    study.NewService(db, sm2.New(sm2.DefaultParams())),
			Checker:  similarity.New(embedder, checkerCfg),
			Definer:  definer,
			ReposDir: cfg.Sync.ReposDir,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func registerSource(ctx context.Context, db *storage.DB, reposDir, path string) error {
	existing, err := db.FindSourceByPath(ctx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		fmt.Printf("Source already registered: %s (ID %d)\n", existing.Path, existing.ID)
		return nil
	}

	sourceType := storage.SourceLocal
	if gitsource.IsGitURL(path) {
		if _, err := gitsource.LocalPath(reposDir, path); err != nil {
			return err
		}
		sourceType = storage.SourceGit
	}
	id, err := db.InsertSource(ctx, path, sourceType)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s source %s (ID %d)\n", sourceType, path, id)
	return nil
}
