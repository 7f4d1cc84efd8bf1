package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sourcechat/internal/admission"
	"github.com/JakeFAU/sourcechat/internal/api"
	"github.com/JakeFAU/sourcechat/internal/chat"
	"github.com/JakeFAU/sourcechat/internal/clock/system"
	"github.com/JakeFAU/sourcechat/internal/completion"
	"github.com/JakeFAU/sourcechat/internal/config"
	collyfetcher "github.com/JakeFAU/sourcechat/internal/fetcher/colly"
	"github.com/JakeFAU/sourcechat/internal/fetcher/headless"
	"github.com/JakeFAU/sourcechat/internal/grounding"
	"github.com/JakeFAU/sourcechat/internal/id/uuid"
	"github.com/JakeFAU/sourcechat/internal/logging"
	"github.com/JakeFAU/sourcechat/internal/markup"
	"github.com/JakeFAU/sourcechat/internal/policy/ratelimit"
	"github.com/JakeFAU/sourcechat/internal/storage/memory"
	redisstore "github.com/JakeFAU/sourcechat/internal/storage/redis"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("service exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, logger *zap.Logger) error {
	var checks []api.ReadinessCheck
	var admit func(http.Handler) http.Handler
	if cfg.Admission.Enabled {
		store, closeStore, check, err := newCounterStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		// A fail-open gate does not make the service unready.
		if check != nil && !cfg.Admission.FailOpen {
			checks = append(checks, check)
		}
		gate, err := admission.NewGate(store, admission.Config{
			Limit:     cfg.Admission.Limit,
			Window:    cfg.AdmissionWindow(),
			KeyPrefix: cfg.Admission.KeyPrefix,
			FailOpen:  cfg.Admission.FailOpen,
		}, logger.Named("admission"))
		if err != nil {
			return fmt.Errorf("admission gate: %w", err)
		}
		admit = admission.Middleware(gate, admission.ClientIdentity(cfg.Admission.TrustForwardedFor), logger.Named("admission"))
	}

	var renderer grounding.Renderer = headless.NewNoop()
	if cfg.Headless.Enabled {
		chrome, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			Selector:          cfg.Fetch.Selector,
			NavigationTimeout: cfg.NavTimeout(),
			IdleWindow:        cfg.IdleWindow(),
			IdleMaxInflight:   cfg.Headless.IdleMaxInflight,
			NoSandbox:         cfg.Headless.NoSandbox,
		}, logger.Named("headless"))
		if err != nil {
			logger.Warn("headless renderer init failed; dynamic extraction disabled", zap.Error(err))
		} else {
			defer chrome.Close()
			renderer = chrome
		}
	}

	extractor := grounding.NewExtractor(
		collyfetcher.New(collyfetcher.Config{
			UserAgent:   cfg.Fetch.UserAgent,
			Timeout:     cfg.FetchTimeout(),
			MaxBodySize: cfg.Fetch.MaxBodyBytes,
		}),
		markup.NewHeadingExtractor(cfg.Fetch.Selector),
		renderer,
		ratelimit.New(ratelimit.Config{
			PerHostRPS:   cfg.Fetch.PerHostRPS,
			PerHostBurst: cfg.Fetch.PerHostBurst,
		}),
		grounding.ExtractorConfig{
			StaticTimeout:  cfg.FetchTimeout(),
			DynamicTimeout: cfg.NavTimeout(),
		},
		logger.Named("extract"),
	)
	aggregator := grounding.NewAggregator(extractor, cfg.Aggregate.Concurrency, logger.Named("aggregate"))

	provider, err := completion.NewProvider(
		cfg.Completion.Provider,
		cfg.Completion.BaseURL,
		cfg.Completion.APIKey,
		cfg.CompletionTimeout(),
	)
	if err != nil {
		return fmt.Errorf("completion provider: %w", err)
	}
	completer, err := completion.NewClient(provider, completion.Config{
		Model:        cfg.Completion.Model,
		SystemPrompt: cfg.Completion.SystemPrompt,
		MaxTokens:    cfg.Completion.MaxTokens,
		Timeout:      cfg.CompletionTimeout(),
	}, logger.Named("completion"))
	if err != nil {
		return fmt.Errorf("completion client: %w", err)
	}

	service, err := chat.NewService(aggregator, completer, logger.Named("chat"))
	if err != nil {
		return fmt.Errorf("chat service: %w", err)
	}

	apiServer := api.NewServer(service, admit, uuid.New(), api.Config{
		APIPrefix:      cfg.Server.APIPrefix,
		RequestTimeout: cfg.RequestTimeout(),
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}, logger.Named("api"), checks...)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// newCounterStore opens the configured admission store. The returned closer is
// always non-nil.
func newCounterStore(ctx context.Context, cfg config.Config) (admission.CounterStore, func(), api.ReadinessCheck, error) {
	switch cfg.Admission.Store {
	case config.StoreRedis:
		opts := redisstore.Options{
			Addr:        cfg.Redis.Addr,
			Username:    cfg.Redis.Username,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.RedisDialTimeout(),
			TLS:         cfg.Redis.TLS,
		}
		dialCtx, cancel := context.WithTimeout(ctx, cfg.RedisDialTimeout()+time.Second)
		defer cancel()
		client, err := redisstore.Connect(dialCtx, opts)
		if err != nil {
			if !cfg.Admission.FailOpen {
				return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
			}
			// Keep a client so the gate recovers once Redis is reachable.
			zap.L().Warn("redis unavailable at startup, admission will fail open", zap.Error(err))
			client = redisstore.NewClient(opts)
		}
		check := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return redisstore.NewCounterStore(client), func() { _ = client.Close() }, check, nil
	default:
		store := memory.NewCounterStore(system.New())
		janitorCtx, cancel := context.WithCancel(ctx)
		store.StartJanitor(janitorCtx, time.Minute)
		return store, cancel, nil, nil
	}
}
