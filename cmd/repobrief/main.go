package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
	"golang.org/x/sync/errgroup"

	githubadapter "github.com/ericfisherdev/repobrief/internal/adapter/driven/github"
	openaiadapter "github.com/ericfisherdev/repobrief/internal/adapter/driven/openai"
	sqliteadapter "github.com/ericfisherdev/repobrief/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/repobrief/internal/adapter/driving/http"
	"github.com/ericfisherdev/repobrief/internal/application"
	"github.com/ericfisherdev/repobrief/internal/config"
	"github.com/ericfisherdev/repobrief/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"llm_base_url", cfg.LLMBaseURL,
		"llm_model", cfg.LLMModel,
		"fetch_timeout", cfg.FetchTimeout,
		"model_timeout", cfg.ModelTimeout,
		"max_readme_bytes", cfg.MaxReadmeBytes,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database and apply migrations.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("database ready", "path", db.Path(), "schema_version", version)

	// 4. Resolve credentials: stored credentials take priority over env vars.
	keyStore := sqliteadapter.NewAPIKeyRepo(db)
	credentialStore, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}

	ghToken, llmKey := resolveCredentials(ctx, cfg, credentialStore)
	if llmKey == "" {
		return errors.New("no model API key: set REPOBRIEF_LLM_API_KEY or store openai/api_key with repobrief-keys")
	}

	// 5. Wire driven adapters.
	fetcher, err := githubadapter.NewReadmeClient(ghToken, cfg.GitHubAPIURL)
	if err != nil {
		return err
	}
	slog.Info("github client created", "base_url", cfg.GitHubAPIURL, "authenticated", ghToken != "")

	generator := openaiadapter.NewClient(cfg.LLMBaseURL, llmKey, cfg.LLMModel)

	// 6. Wire application services.
	prompts, err := application.NewPromptBuilder(application.PromptOptions{
		MaxReadmeBytes: cfg.MaxReadmeBytes,
		Compact:        cfg.CompactReadme,
	})
	if err != nil {
		return err
	}

	summarizer, err := application.NewSummarizer(generator, application.SummarizerOptions{
		Temperature:  cfg.LLMTemperature,
		StrictSchema: cfg.LLMStrictSchema,
	}, slog.Default())
	if err != nil {
		return err
	}

	pipeline := application.NewSummaryPipeline(keyStore, fetcher, prompts, summarizer, application.PipelineOptions{
		FetchTimeout: cfg.FetchTimeout,
		ModelTimeout: cfg.ModelTimeout,
	}, slog.Default())

	// 7. Create HTTP handler, register API routes and apply middleware.
	apiHandler := httphandler.NewHandler(pipeline, keyStore, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// A request may wait on both upstream calls.
		WriteTimeout: cfg.FetchTimeout + cfg.ModelTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 8. Serve until the signal context is cancelled, then drain.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return nil
}

// resolveCredentials returns the GitHub token and model API key, preferring
// stored credentials over the environment when credential storage is configured.
func resolveCredentials(ctx context.Context, cfg *config.Config, store driven.CredentialStore) (ghToken, llmKey string) {
	if !cfg.HasSecretKey() {
		slog.Info("credential storage disabled, using environment credentials")
		return cfg.GitHubToken, cfg.LLMAPIKey
	}

	ghToken = storedOr(ctx, store, "github", "token", cfg.GitHubToken)
	llmKey = storedOr(ctx, store, "openai", "api_key", cfg.LLMAPIKey)
	return ghToken, llmKey
}

// storedOr returns the stored credential for service/key, or fallback when none
// is stored or it cannot be read.
func storedOr(ctx context.Context, store driven.CredentialStore, service, key, fallback string) string {
	stored, err := store.Get(ctx, service, key)
	switch {
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		return fallback
	case err != nil:
		slog.Warn("stored credential unreadable, using environment", "service", service, "key", key, "error", err)
		return fallback
	case stored == "":
		return fallback
	default:
		slog.Info("using stored credential", "service", service, "key", key)
		return stored
	}
}
