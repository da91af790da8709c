package main

import (
	"log/slog"
	"strings"
	"sync"

	"vintner/internal/batch"
	"vintner/internal/config"
	"vintner/internal/logging"
	"vintner/internal/pipeline"
	"vintner/internal/publish"
	"vintner/internal/services/catalog"
	"vintner/internal/services/drive"
	"vintner/internal/services/labelapi"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// withStore opens the batch store for the duration of one command.
func (c *commandContext) withStore(fn func(*config.Config, *batch.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := batch.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func (c *commandContext) withOrchestrator(fn func(*config.Config, *pipeline.Orchestrator) error) error {
	return c.withStore(func(cfg *config.Config, store *batch.Store) error {
		logger, err := c.ensureLogger()
		if err != nil {
			return err
		}
		orch := pipeline.New(store, c.labelClient(cfg), c.driveClient(cfg), cfg, logger)
		return fn(cfg, orch)
	})
}

func (c *commandContext) withDispatcher(fn func(*config.Config, *publish.Dispatcher) error) error {
	return c.withStore(func(cfg *config.Config, store *batch.Store) error {
		logger, err := c.ensureLogger()
		if err != nil {
			return err
		}
		dispatcher := publish.NewDispatcher(store, c.driveClient(cfg), c.catalogClient(cfg), cfg, logger)
		return fn(cfg, dispatcher)
	})
}

func (c *commandContext) labelClient(cfg *config.Config) *labelapi.Client {
	return labelapi.NewClient(labelapi.Config{
		BaseURL:               cfg.API.BaseURL,
		AccessToken:           cfg.API.AccessToken,
		UploadTimeoutSeconds:  cfg.API.UploadTimeoutSeconds,
		OcrTimeoutSeconds:     cfg.API.OcrTimeoutSeconds,
		CompareTimeoutSeconds: cfg.API.CompareTimeoutSeconds,
		HealthTimeoutSeconds:  cfg.API.HealthTimeoutSeconds,
	})
}

func (c *commandContext) driveClient(cfg *config.Config) *drive.Client {
	return drive.NewClient(drive.Config{
		BaseURL:        cfg.API.BaseURL,
		AccessToken:    cfg.API.AccessToken,
		TimeoutSeconds: cfg.Drive.RequestTimeoutSeconds,
	})
}

func (c *commandContext) catalogClient(cfg *config.Config) *catalog.Client {
	return catalog.NewClient(catalog.Config{
		BaseURL:        cfg.API.BaseURL,
		AccessToken:    cfg.API.AccessToken,
		TimeoutSeconds: cfg.Catalog.RequestTimeoutSeconds,
	})
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
