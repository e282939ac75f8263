// Package app wires the shared process dependencies the engines draw from.
package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/heartpost/internal/cache"
	"github.com/oggyb/heartpost/internal/config"
)

// AppContext bundles what every engine needs: config, DB handle, redis and
// the logger. Built once in main and threaded through constructors.
type AppContext struct {
	Cfg        *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
}

// New assembles the context. cfg and rdb may be nil in tests that don't touch
// them.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger) *AppContext {
	return &AppContext{
		Cfg:        cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
	}
}

// Log returns the context logger, or the slog default when none was wired.
func (a *AppContext) Log() *slog.Logger {
	if a == nil || a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
