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

	"github.com/joho/godotenv"

	"github.com/ashita-ai/insureai/internal/app"
	"github.com/ashita-ai/insureai/internal/auth"
	"github.com/ashita-ai/insureai/internal/config"
	"github.com/ashita-ai/insureai/internal/mcp"
	"github.com/ashita-ai/insureai/internal/ratelimit"
	"github.com/ashita-ai/insureai/internal/server"
	"github.com/ashita-ai/insureai/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("INSUREAI_LOG_LEVEL"))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("insureai starting", "version", version, "port", cfg.Port, "store", cfg.Store, "search", cfg.SearchBackend)

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		ServiceName: cfg.ServiceName,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if seeded, err := app.SeedIfEmpty(ctx, store, cfg.SeedCustomers, logger); err != nil {
		return err
	} else if seeded {
		logger.Info("store was empty, loaded synthetic dataset", "customers", cfg.SeedCustomers)
	}

	searcher, searchCloser, err := app.NewSearcher(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	defer func() { _ = searchCloser.Close() }()

	rt := app.NewRuntime(store, searcher, app.Options{
		SessionTTL:    cfg.SessionTTL,
		MaxGraphSteps: cfg.MaxGraphSteps,
	}, logger)
	defer rt.Close()

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration, logger)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}
	defer func() { _ = limiter.Close() }()

	if cfg.AdminAPIKeyHash == "" {
		logger.Info("admin API: disabled (no INSUREAI_ADMIN_API_KEY_HASH)")
	}

	mcpSrv := mcp.New(rt.Chat, rt.Reports, searcher, logger, version)

	srv := server.New(server.ServerConfig{
		Store:               store,
		JWTMgr:              jwtMgr,
		Chat:                rt.Chat,
		Reports:             rt.Reports,
		Searcher:            searcher,
		Logger:              logger,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		AdminKeyHash:        cfg.AdminAPIKeyHash,
		FAQPath:             cfg.FAQPath,
		StoreName:           cfg.Store,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("insureai shutting down", "sessions", rt.Chat.Sessions())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("insureai stopped")
	return nil
}
