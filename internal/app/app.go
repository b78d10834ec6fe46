package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"atelier/internal/retention"
	"atelier/pkg/config"
	"atelier/pkg/conversation"
	"atelier/pkg/engine"
	"atelier/pkg/generate"
	"atelier/pkg/logger"
	"atelier/pkg/store"
	"atelier/pkg/telemetry"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	eng *engine.Engine
	svc *conversation.Service

	srv           *http.Server
	stopRetention context.CancelFunc
}

// New initializes everything that does not need a running context: logging,
// the store, the generation engine and the conversation service. Call Run to
// start the retention scheduler and the HTTP server and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	logger.Init(eff.Config.Logging.Level)

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}
	telemetry.RegisterDiskUsage(func() float64 { return float64(store.DiskUsage()) })

	gen, err := buildGenerator(eff.Config.Generation)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if n := eff.Config.Engine.MaxPooledBufferBytes.Int64(); n > 0 {
		engine.SetMaxPooledBuffer(int(n))
	}
	eng := engine.New(gen, eff.Config.Engine.QueueCapacity)

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		eng:       eng,
		svc:       conversation.NewService(eng),
	}
	return a, nil
}

// Run starts the retention scheduler and the HTTP server and blocks until
// ctx is canceled or a fatal server error occurs. On cancellation it shuts
// the server down, drains the engine and closes the store, so every accepted
// turn reaches a terminal message before the process exits.
func (a *App) Run(ctx context.Context) error {
	cancelRet, err := retention.Start(ctx, a.eff.Config.Retention)
	if err != nil {
		return err
	}
	a.stopRetention = cancelRet

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			_ = a.shutdown()
			return err
		}
		return a.shutdown()
	}
}

// shutdown tears components down in dependency order: stop accepting
// requests, then drain pending turns, then close the store.
func (a *App) shutdown() error {
	logger.Log.Info("shutdown_started")
	if a.stopRetention != nil {
		a.stopRetention()
	}
	if a.srv != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(shCtx); err != nil {
			logger.Log.Warn("http_shutdown_failed", zap.Error(err))
		}
	}
	if err := a.eng.Close(); err != nil {
		logger.Log.Warn("engine_close_failed", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Log.Warn("store_close_failed", zap.Error(err))
		return err
	}
	logger.Log.Info("shutdown_complete")
	return nil
}

// validateConfig checks the effective config early so misconfigurations fail
// at startup instead of on the first request.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("db path is required (use --db or ATELIER_DB_PATH)")
	}
	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert == "") != (key == "") {
		return fmt.Errorf("tls requires both cert_file and key_file")
	}
	switch strings.ToLower(eff.Config.Generation.Provider) {
	case "openai", "scripted":
	default:
		return fmt.Errorf("unknown generation provider: %q", eff.Config.Generation.Provider)
	}
	return nil
}

// buildGenerator constructs the generation capability from config.
func buildGenerator(cfg config.GenerationConfig) (generate.Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "scripted":
		return generate.NewScriptedGenerator(), nil
	default:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("generation api key is required (set ATELIER_GENERATION_API_KEY or OPENAI_API_KEY)")
		}
		return generate.NewOpenAIGenerator(cfg.APIKey, generate.OpenAIOptions{
			Model:        cfg.Model,
			MaxTokens:    cfg.MaxTokens,
			SystemPrompt: cfg.SystemPrompt,
			Timeout:      cfg.Timeout.Duration(),
		}), nil
	}
}
