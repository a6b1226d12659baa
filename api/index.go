package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/warplanner-api-go/pkg/auth"
	"github.com/arnavshah/warplanner-api-go/pkg/config"
	"github.com/arnavshah/warplanner-api-go/pkg/database"
	"github.com/arnavshah/warplanner-api-go/pkg/handlers"
	"github.com/arnavshah/warplanner-api-go/pkg/logging"
	"github.com/arnavshah/warplanner-api-go/pkg/notify"
	"github.com/arnavshah/warplanner-api-go/pkg/planner"
)

var r *gin.Engine

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	db, err := database.InitDB(cfg.Database, logger)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := auth.EnsureAdminExists(db, cfg.Auth, logger); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	// Serverless instances only publish; sessions live as long as the instance does.
	notifier, err := notify.Connect(context.Background(), cfg.Redis, logger)
	if err != nil {
		logger.Sugar().Warnf("redis unavailable, notifications disabled: %v", err)
		notifier = notify.New(nil, logger)
	}

	sessions := planner.NewRegistry(database.NewStore(db, logger), planner.Options{
		SlotTimes:  planner.SlotTimes(cfg.War.EarlyTime, cfg.War.LateTime),
		WarWeekday: cfg.War.Weekday,
		Location:   cfg.War.Location,
		Now:        time.Now,
	}, logger)

	h := &handlers.Handler{
		DB:       db,
		Sessions: sessions,
		Signer:   auth.NewSigner(cfg.Auth),
		Notifier: notifier,
		Logger:   logger,
	}

	gin.SetMode(gin.ReleaseMode)
	r = handlers.NewRouter(h)
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
