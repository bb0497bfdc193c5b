package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/backend"
	"inferd/internal/config"
	"inferd/internal/gate"
	"inferd/internal/httpapi"
	"inferd/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath      string
		addr         string
		logLevel     string
		defaultModel string
		maxConc      int
	)
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "OpenAI-compatible inference API with request admission control",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			if cfgPath != "" {
				var err error
				cfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			// Flags override file values.
			if addr != "" {
				cfg.Addr = addr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if defaultModel != "" {
				cfg.DefaultModel = defaultModel
			}
			if maxConc > 0 {
				cfg.Limits.MaxConcurrent = maxConc
			}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", envOr("INFERD_CONFIG", ""), "Path to a .yaml/.json/.toml config file")
	root.Flags().StringVar(&addr, "addr", envOr("INFERD_ADDR", ""), "HTTP listen address, e.g. :8080")
	root.Flags().StringVar(&logLevel, "log-level", envOr("INFERD_LOG_LEVEL", ""), "Log level: debug|info|warn|error")
	root.Flags().StringVar(&defaultModel, "default-model", envOr("INFERD_DEFAULT_MODEL", ""), "Model id when a request omits model")
	root.Flags().IntVar(&maxConc, "max-concurrent", 0, "Maximum concurrent inference requests")
	return root
}

func run(cfg config.Config) error {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("service", "inferd").Logger()

	store, err := buildStore(cfg, logger)
	if err != nil {
		return err
	}

	pipe := gate.New(gate.Config{
		Logger: logger,
		Store:  store,
		Validator: gate.NewValidator(gate.ValidatorConfig{
			MaxDepth:     cfg.Security.MaxDepth,
			MaxStringLen: cfg.Security.MaxStringLen,
			MaxListLen:   cfg.Security.MaxListLen,
		}),
		Ledger:             gate.NewLedger(cfg.Limits.MaxConcurrent),
		MaxRequests:        cfg.Limits.MaxRequests,
		Window:             cfg.Limits.Window(),
		MaxBodyBytes:       int64(cfg.Limits.MaxBodyBytes),
		OnRateLimited:      httpapi.RecordRateLimited,
		OnCapacityRejected: httpapi.RecordCapacityRejected,
	})

	be, err := buildBackend(cfg, logger)
	if err != nil {
		return err
	}

	models, err := buildCatalog(cfg)
	if err != nil {
		return err
	}

	var corsOrigins []string
	if cfg.CORS.Enabled {
		corsOrigins = cfg.CORS.AllowedOrigins
	}
	mux := httpapi.NewMux(httpapi.Options{
		Logger:          logger,
		Backend:         be,
		Pipeline:        pipe,
		Models:          models,
		DefaultModel:    cfg.DefaultModel,
		ChatMaxRequests: cfg.Limits.ChatMaxRequests,
		CORSOrigins:     corsOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend.Mode).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// buildStore selects the rate-limit store: Redis when configured, otherwise
// in-memory. A configured but unreachable Redis fails startup rather than
// silently degrading to per-process limits.
func buildStore(cfg config.Config, logger zerolog.Logger) (gate.Store, error) {
	if cfg.Redis.Addr == "" {
		return gate.NewMemoryStore(nil), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis rate-limit store")
	return gate.NewRedisStore(client, nil), nil
}

func buildBackend(cfg config.Config, logger zerolog.Logger) (backend.Backend, error) {
	switch cfg.Backend.Mode {
	case "local":
		if !backend.LocalRuntimeAvailable() {
			logger.Warn().Msg("binary built without the llama tag; local backend will refuse inference")
		}
		return backend.NewLocal(backend.LocalConfig{
			ModelPath:    cfg.Backend.ModelPath,
			CtxSize:      cfg.Backend.CtxSize,
			Threads:      cfg.Backend.Threads,
			DefaultModel: cfg.DefaultModel,
		})
	default:
		return backend.NewUpstream(backend.UpstreamConfig{
			BaseURL:      cfg.Backend.UpstreamURL,
			APIKey:       cfg.Backend.UpstreamAPIKey,
			DefaultModel: cfg.DefaultModel,
			Timeout:      cfg.Backend.UpstreamTimeoutDuration(),
		}), nil
	}
}

// buildCatalog merges the configured model ids with any discovered on disk.
func buildCatalog(cfg config.Config) ([]types.Model, error) {
	ids := make([]string, 0, len(cfg.Models)+1)
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(cfg.DefaultModel)
	for _, id := range cfg.Models {
		add(id)
	}
	models := backend.Catalog(ids, "")
	if cfg.ModelsDir != "" {
		scanned, err := backend.ScanModels(cfg.ModelsDir)
		if err != nil {
			return nil, fmt.Errorf("scan models dir: %w", err)
		}
		for _, m := range scanned {
			if !seen[m.ID] {
				seen[m.ID] = true
				models = append(models, m)
			}
		}
	}
	return models, nil
}
