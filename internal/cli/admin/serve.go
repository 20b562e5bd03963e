package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HirotoShioi/medical-assistant-ai/internal/api/handlers"
	"github.com/HirotoShioi/medical-assistant-ai/internal/config"
	"github.com/HirotoShioi/medical-assistant-ai/internal/database"
	"github.com/HirotoShioi/medical-assistant-ai/internal/jobs"
	"github.com/HirotoShioi/medical-assistant-ai/internal/openai"
	"github.com/HirotoShioi/medical-assistant-ai/internal/repository"
	"github.com/HirotoShioi/medical-assistant-ai/internal/server"
	"github.com/HirotoShioi/medical-assistant-ai/internal/service"
	"github.com/HirotoShioi/medical-assistant-ai/internal/storage"
	"github.com/HirotoShioi/medical-assistant-ai/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	sdk "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the medassist API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("MEDASSIST_OPENAI_API_KEY is required: ingestion and synthesis depend on the model")
	}

	if cfg.SentryDSN != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	resourceRepo := repository.NewResourceRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	// The vector column's dimension is fixed by the schema. Refuse to
	// start with a mismatched config rather than fail every insert.
	if schemaDim, err := chunkRepo.EmbeddingDimension(ctx); err != nil {
		return fmt.Errorf("failed to read embedding column dimension: %w", err)
	} else if schemaDim != cfg.EmbeddingDim {
		return fmt.Errorf("MEDASSIST_EMBEDDING_DIMENSIONS is %d but the embedded_chunks.embedding column is VECTOR(%d)", cfg.EmbeddingDim, schemaDim)
	}

	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		ChatModel:           cfg.ChatModel,
		EmbeddingModel:      sdk.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDim,
	})
	model := &ModelAdapter{client: client}

	resourceSvc := service.NewResourceService(resourceRepo, chunkRepo, client, model).
		WithChunkConfig(service.ChunkConfig{
			TargetChars: cfg.ChunkSize,
			MinChars:    cfg.ChunkMinLength,
			Overlap:     cfg.ChunkOverlap,
		}).
		WithConcurrency(cfg.IngestionConcurrency)

	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		resourceSvc = resourceSvc.WithArchive(s3Client)
	}

	retriever := service.NewRetriever(chunkRepo, client).WithTopK(cfg.RetrievalTopK)
	selection := service.NewSummaryBasedSelection(model, resourceRepo)
	generator := service.NewSectionGenerator(model, selection)
	synthesizer := service.NewDocumentSynthesizer(generator, messageRepo, resourceSvc, nil)

	janitor := jobs.NewChunkJanitor(chunkRepo, cfg.ChunkRetention)
	janitorWorker := jobs.NewWorker(janitor, cfg.JanitorInterval)
	go janitorWorker.Start(ctx)
	log.Println("chunk janitor started")

	routerCfg := server.RouterConfig{
		APIToken:          cfg.APIToken,
		ResourceHandler:   handlers.NewResourceHandler(resourceSvc),
		RetrieveHandler:   handlers.NewRetrieveHandler(retriever),
		SynthesizeHandler: handlers.NewSynthesizeHandler(synthesizer),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	janitorWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// ModelAdapter bridges the OpenAI client's request struct to the flat
// completion interface the services consume.
type ModelAdapter struct {
	client *openai.Client
}

func (a *ModelAdapter) Complete(ctx context.Context, system, prompt string) (string, error) {
	return a.client.Complete(ctx, openai.CompletionRequest{System: system, Prompt: prompt})
}

func (a *ModelAdapter) CompleteJSON(ctx context.Context, system, prompt string, out any) error {
	return a.client.CompleteJSON(ctx, openai.CompletionRequest{System: system, Prompt: prompt}, out)
}

func runMigrations(databaseURL string) error {
	// golang-migrate drives a database/sql connection, not the pgx pool
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}

	if upErr == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
