// Command session runs the client core for one signed-in user: it bootstraps
// the unread counters and keeps them consistent against the live realtime
// feed until interrupted. The UI binds to the engines in-process; this binary
// is the headless equivalent.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/oggyb/heartpost/internal/app"
	"github.com/oggyb/heartpost/internal/cache"
	"github.com/oggyb/heartpost/internal/config"
	"github.com/oggyb/heartpost/internal/db"
	"github.com/oggyb/heartpost/internal/logger"
	"github.com/oggyb/heartpost/internal/realtime"
	"github.com/oggyb/heartpost/internal/repository"
	"github.com/oggyb/heartpost/internal/service/unread"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(cfg, database, redisCache, log)

	if cfg.App.Env == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	userID := cfg.App.SessionUserID
	if userID == 0 {
		log.Error("SESSION_USER_ID is required")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agg := unread.NewAggregator(appCtx, userID)
	if err := agg.Bootstrap(ctx,
		repository.NewMatchRepository(database),
		repository.NewLetterRepository(database),
	); err != nil {
		log.Error("failed to bootstrap unread counts", "err", err)
		return
	}
	log.Info("unread counts bootstrapped", "counts", agg.Counts())

	var source realtime.Source
	switch cfg.Realtime.Driver {
	case "ws":
		ws := realtime.NewWebsocketSource(cfg.Realtime.URL, log)
		if err := ws.Connect(ctx); err != nil {
			log.Error("failed to connect realtime endpoint", "err", err)
			return
		}
		defer ws.Close()
		source = ws
	default:
		source = realtime.NewRedisSource(redisCache.Client, log)
	}

	bridge := realtime.NewBridge(source, agg, userID, log)
	if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("realtime bridge stopped", "err", err)
		return
	}
	log.Info("session closed", "counts", agg.Counts())
}
