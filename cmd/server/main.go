package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arnavshah/warplanner-api-go/pkg/auth"
	"github.com/arnavshah/warplanner-api-go/pkg/config"
	"github.com/arnavshah/warplanner-api-go/pkg/database"
	"github.com/arnavshah/warplanner-api-go/pkg/handlers"
	"github.com/arnavshah/warplanner-api-go/pkg/logging"
	"github.com/arnavshah/warplanner-api-go/pkg/notify"
	"github.com/arnavshah/warplanner-api-go/pkg/planner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Server.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.Server.GinMode)
	}

	db, err := database.InitDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := auth.EnsureAdminExists(db, cfg.Auth, logger); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	notifier, err := notify.Connect(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer notifier.Close()

	sessions := planner.NewRegistry(database.NewStore(db, logger), planner.Options{
		SlotTimes:  planner.SlotTimes(cfg.War.EarlyTime, cfg.War.LateTime),
		WarWeekday: cfg.War.Weekday,
		Location:   cfg.War.Location,
		Now:        time.Now,
	}, logger)

	err = notifier.Subscribe(ctx, func(ev notify.Event) {
		if err := sessions.RefreshUnit(ctx, ev.Unit); err != nil {
			logger.Warn("refresh after event", zap.String("unit", ev.Unit), zap.String("event", ev.Name), zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("subscribe", zap.Error(err))
	}

	h := &handlers.Handler{
		DB:       db,
		Sessions: sessions,
		Signer:   auth.NewSigner(cfg.Auth),
		Notifier: notifier,
		Logger:   logger,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(h),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
