package bootstrap

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/unidoc/unipdf/v3/common/license"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/aihub/persona-assistant/internal/config"
	"github.com/aihub/persona-assistant/internal/database"
	"github.com/aihub/persona-assistant/internal/di"
	"github.com/aihub/persona-assistant/internal/kafka"
	"github.com/aihub/persona-assistant/internal/knowledge"
	"github.com/aihub/persona-assistant/internal/logger"
	"github.com/aihub/persona-assistant/internal/services"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Config    *config.Config
	Window    *services.ChatWindow
	Index     *knowledge.MemoryIndex
	Metrics   *services.MetricsService
	Documents int

	container     *dig.Container
	metricsServer *http.Server
	cleanupTasks  []func() error
}

// Init loads configuration, connects optional infrastructure, builds the
// knowledge index and returns the wired application. Invalid configuration
// and a missing documents folder are fatal; optional backends degrade to off.
func Init(ctx context.Context) (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.NewLoader().Load()
	if err != nil {
		return nil, err
	}

	// Initialize structured logger.
	if err := logger.InitLogger(cfg.Log.Level, cfg.Server.Env); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}

	applyPDFLicense(cfg.Knowledge.PDFLicenseKey, logger.GetLogger())

	infra := di.Infra{}

	// Initialize Redis (optional). Failure shouldn't block the app.
	if cfg.Cache.Redis.Enabled {
		rdb, err := database.InitRedis(ctx, cfg.Cache.Redis, logger.Named("redis"))
		if err != nil {
			logger.Warn("Failed to initialize Redis, embedding cache disabled", zap.Error(err))
		} else {
			infra.Redis = rdb
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return database.CloseRedis(rdb)
			})
		}
	}

	// Initialize Kafka (optional). Failure shouldn't block the app.
	if cfg.KafkaEnabled() {
		producer, err := kafka.NewProducer(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic, logger.Named("kafka"))
		if err != nil {
			logger.Warn("Failed to initialize Kafka producer", zap.Error(err))
		} else {
			infra.Publisher = producer
			app.cleanupTasks = append(app.cleanupTasks, producer.Close)
		}
	}

	app.container, err = di.NewContainer(cfg, logger.GetLogger(), infra)
	if err != nil {
		app.Shutdown()
		return nil, err
	}

	if err := app.container.Invoke(app.buildIndex(ctx)); err != nil {
		app.Shutdown()
		return nil, err
	}

	if cfg.Metrics.Listen != "" {
		app.startMetricsServer(cfg.Metrics.Listen)
	}
	return app, nil
}

// buildIndex loads the documents folder and freezes the populated index.
func (a *App) buildIndex(ctx context.Context) interface{} {
	return func(loader *knowledge.DocumentLoader, pipeline *knowledge.IndexPipeline, index *knowledge.MemoryIndex,
		window *services.ChatWindow, metrics *services.MetricsService) error {
		start := time.Now()
		// 目录缺失是配置错误；空目录只是空索引
		docs, err := loader.Load(ctx, a.Config.Knowledge.DocumentsDir)
		if err != nil {
			return err
		}

		if _, err := pipeline.Build(ctx, docs); err != nil {
			return err
		}
		index.Freeze()

		logger.Info("Knowledge ready",
			zap.Int("documents", len(docs)),
			zap.Int("chunks", index.Len()),
			zap.Duration("elapsed", time.Since(start)))

		a.Documents = len(docs)
		a.Window = window
		a.Index = index
		a.Metrics = metrics
		return nil
	}
}

func (a *App) startMetricsServer(addr string) {
	a.metricsServer = &http.Server{
		Addr:              addr,
		Handler:           a.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	a.cleanupTasks = append(a.cleanupTasks, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.metricsServer.Shutdown(ctx)
	})
	logger.Info("Metrics server listening", zap.String("addr", addr))
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Warn("Cleanup error", zap.Error(err))
		}
	}
	a.cleanupTasks = nil

	// Flush logger buffers.
	logger.Sync()
}

// applyPDFLicense 设置unipdf授权. Without a key unipdf refuses text
// extraction, so every document fails to load; that is logged, not fatal.
func applyPDFLicense(key string, log *zap.Logger) bool {
	if key == "" {
		log.Warn("PDF license key not set, text extraction will fail for every document",
			zap.String("config", "knowledge.pdf_license_key"),
			zap.String("env", "UNIDOC_LICENSE_API_KEY"))
		return false
	}
	if err := license.SetMeteredKey(key); err != nil {
		log.Warn("Failed to apply PDF license key", zap.Error(err))
		return false
	}
	return true
}
