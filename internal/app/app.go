// Package app provides the application initialization and lifecycle
// management
package app

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/vaultsync/internal/config"
	"github.com/tildaslashalef/vaultsync/internal/knowledge"
	"github.com/tildaslashalef/vaultsync/internal/loggy"
	"github.com/tildaslashalef/vaultsync/internal/syncer"
)

// App represents the application instance with its dependencies
type App struct {
	Config    *config.Config
	Sync      *syncer.Service
	Knowledge *knowledge.Service
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	logger := loggy.GetGlobalLogger()

	loggy.Info("Application initializing",
		"log_level", cfg.Logging.Level,
		"repo_base", cfg.Sync.RepoBase,
		"vault_base", cfg.Sync.VaultBase,
	)

	syncService := syncer.NewService(cfg, logger)
	knowledgeService := knowledge.NewService(cfg, syncService.Discoverer(), logger)

	return &App{
		Config:    cfg,
		Sync:      syncService,
		Knowledge: knowledgeService,
	}, nil
}

// initConfig loads and sets up the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")
	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
