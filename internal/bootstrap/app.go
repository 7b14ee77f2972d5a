package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"docinsight-backend/internal/analyses"
	"docinsight-backend/internal/documents"
	"docinsight-backend/internal/extract"
	"docinsight-backend/internal/extraction"
	"docinsight-backend/internal/llm"
	openai "docinsight-backend/internal/llm/openai"
	"docinsight-backend/internal/shared/config"
	"docinsight-backend/internal/shared/server"
	"docinsight-backend/internal/shared/server/middleware"
	"docinsight-backend/internal/shared/storage/db"
	"docinsight-backend/internal/shared/storage/object"
	localstore "docinsight-backend/internal/shared/storage/object/local"
	s3store "docinsight-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  *extraction.Queue

	DocumentsRepo documents.Repo
	AnalysesRepo  analyses.Repo

	DocumentsService *documents.Service
	AnalysesService  *analyses.Service

	DocumentsHandler *documents.Handler
	AnalysesHandler  *analyses.Handler
}

// Overrides lets tests swap the components that reach outside the process.
type Overrides struct {
	LLM         llm.Client
	Extractor   extraction.Extractor
	RateLimiter *middleware.RateLimiter
}

// Build prepares the application with production wiring.
func Build(cfg config.Config) (*App, error) {
	return BuildWith(cfg, Overrides{})
}

// BuildWith prepares the application, honoring any overrides.
func BuildWith(cfg config.Config, ov Overrides) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var docRepo documents.Repo
	var analysisRepo analyses.Repo
	if sqlDB != nil {
		docRepo = &documents.PGRepo{DB: sqlDB}
		analysisRepo = &analyses.PGRepo{DB: sqlDB}
	} else {
		memDocs := documents.NewMemoryRepo()
		memAnalyses := analyses.NewMemoryRepo()
		// Mirrors the FK cascade the Postgres schema provides.
		memDocs.SetCascade(memAnalyses)
		docRepo = memDocs
		analysisRepo = memAnalyses
	}

	docSvc := &documents.Service{Store: store, Repo: docRepo}

	extractor := ov.Extractor
	if extractor == nil {
		extractor = extraction.ExtractorFunc(func(ctx context.Context, job extraction.Job) (string, error) {
			return extract.ExtractText(ctx, store, job.FilePath, job.MimeType, job.FileName)
		})
	}
	queue := extraction.NewQueue(extractor, docSvc, cfg.ExtractionWorkers)
	docSvc.Queue = queue
	queue.Start(ctx)

	llmClient, err := buildLLM(cfg, ov)
	if err != nil {
		return nil, err
	}

	analysisSvc := &analyses.Service{
		Repo: analysisRepo,
		Docs: docRepo,
		Gen:  &analyses.Generator{LLM: llmClient, Fallback: cfg.LLMFallback},
	}

	docHandler := documents.NewHandler(docSvc, analysisSvc.FindResultByDocumentID, cfg.MaxUploadBytes)
	analysisHandler := analyses.NewHandler(analysisSvc)

	app := &App{
		Config:           cfg,
		DB:               sqlDB,
		Store:            store,
		Queue:            queue,
		DocumentsRepo:    docRepo,
		AnalysesRepo:     analysisRepo,
		DocumentsService: docSvc,
		AnalysesService:  analysisSvc,
		DocumentsHandler: docHandler,
		AnalysesHandler:  analysisHandler,
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		DocumentsHandler: docHandler,
		AnalysesHandler:  analysisHandler,
		RateLimiter:      ov.RateLimiter,
	})

	return app, nil
}

// Close stops the extraction workers and releases the database pool.
func (a *App) Close() error {
	if a.Queue != nil {
		a.Queue.Stop()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(cfg config.Config, ov Overrides) (llm.Client, error) {
	if ov.LLM != nil {
		return ov.LLM, nil
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		if !cfg.LLMFallback && !isDevLike(cfg.Env) {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_FALLBACK is disabled")
		}
		// Without a key every generation takes the demo-fallback path.
		log.Printf("bootstrap: OPENAI_API_KEY empty; analyses use the demo fallback")
		return llm.PlaceholderClient{}, nil
	}
	return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.LLMTimeout)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
