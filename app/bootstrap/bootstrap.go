package bootstrap

import (
	"fmt"
	"log"

	"github.com/aihub/pdfchat/app/controllers"
	"github.com/aihub/pdfchat/internal/config"
	"github.com/aihub/pdfchat/internal/di"
	"github.com/aihub/pdfchat/internal/knowledge"
	"github.com/aihub/pdfchat/internal/logger"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Container *dig.Container
	Factory   *controllers.ControllerFactory
	lifecycle *di.Lifecycle
}

// Init bootstraps configuration, logger and the dependency container.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.NewConfigLoader().Load()
	if err != nil {
		return nil, err
	}

	zapLogger, err := logger.NewLogger(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := knowledge.ConfigurePDFLicense(cfg.Knowledge.PDF.LicenseKey); err != nil {
		zapLogger.Warn("Failed to configure PDF license", zap.Error(err))
	}

	container, lifecycle, err := di.NewContainer(cfg, zapLogger)
	if err != nil {
		return nil, err
	}

	zapLogger.Info("application bootstrapped",
		zap.String("env", cfg.App.Env),
		zap.String("vectorStore", cfg.Knowledge.VectorStore.Provider),
		zap.String("lock", cfg.Knowledge.Lock.Provider),
		zap.Bool("kafka", cfg.Kafka.Enabled))

	return &App{
		Config:    cfg,
		Logger:    zapLogger,
		Container: container,
		Factory:   controllers.NewControllerFactory(container),
		lifecycle: lifecycle,
	}, nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	for _, err := range a.lifecycle.Shutdown() {
		a.Logger.Warn("Cleanup error", zap.Error(err))
	}
	logger.Sync(a.Logger)
}
