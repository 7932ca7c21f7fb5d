package main // HTTP server entry point

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-booking/internal/app"
	"github.com/iliyamo/venue-booking/internal/cache"
	"github.com/iliyamo/venue-booking/internal/config"
	"github.com/iliyamo/venue-booking/internal/handler"
	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/queue"
	"github.com/iliyamo/venue-booking/internal/router"
	"github.com/iliyamo/venue-booking/internal/service"
)

func main() {
	cfg, cfgErr := config.Load()
	logger, err := app.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if cfgErr != nil {
		logger.Fatal("config", zap.Error(cfgErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.NewCore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("booking core", zap.Error(err))
	}
	defer core.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.Warn("redis unavailable; response cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	var publisher service.Publisher = service.NopPublisher{}
	if cfg.RabbitURL != "" {
		publisher = service.NewEventPublisher(cfg.RabbitURL, cfg.EventsQueue, logger.Named("publisher"))
		if cfg.EventConsumerEnabled {
			go func() {
				err := queue.StartEventConsumer(ctx, queue.ConsumerOptions{
					URL:     cfg.RabbitURL,
					Queue:   cfg.EventsQueue,
					LogPath: cfg.EventLogPath,
				}, logger.Named("consumer"))
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("event consumer stopped", zap.Error(err))
				}
			}()
		}
	} else {
		logger.Warn("RABBITMQ_URL not set; booking events are not published")
	}
	dispatcher := service.NewDispatcher(publisher, cache.NewRedisInvalidator(rdb, cacheCfg.Prefix, logger.Named("cache")), logger.Named("dispatch"))

	svc := &handler.Services{
		Store:         core.Store,
		Evaluator:     core.Evaluator,
		Engine:        core.Engine,
		Manager:       core.Manager,
		Dispatcher:    dispatcher,
		Log:           logger,
		JWTSecret:     cfg.JWTSecret,
		GuestTokenTTL: cfg.TokenTTL,
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestID(), middleware.Logger(logger.Named("http")))

	ready := map[string]handler.Pinger{}
	if core.DB != nil {
		ready["mysql"] = core.DB.PingContext
	}
	if rdb != nil {
		ready["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	router.RegisterRoutes(e, handler.Ready(ready))
	router.RegisterPublic(e, handler.NewPublicHandler(svc),
		middleware.NewRedisCache(cacheCfg, rdb),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger.Named("ratelimit")),
	)
	router.RegisterStaff(e, handler.NewStaffHandler(svc), cfg.JWTSecret)
	router.RegisterGuest(e, handler.NewGuestHandler(svc), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	dispatcher.Wait()
}
