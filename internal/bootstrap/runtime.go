// Package bootstrap wires the process-wide dependencies shared by the commands.
package bootstrap

import (
	"fmt"
	"log"

	"blogicum/internal/cache"
	"blogicum/internal/config"
	"blogicum/internal/database"
	"blogicum/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedBuiltIns creates the built-in categories and locations.
	SeedBuiltIns bool
}

// DefaultOptions seeds the built-in rows everywhere except production, where
// categories are managed with the admin command.
func DefaultOptions(cfg *config.Config) Options {
	return Options{SeedBuiltIns: cfg != nil && !cfg.IsProduction()}
}

// InitRuntime connects to DB and Redis and optionally runs built-in seeding.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedBuiltIns {
		if err := seed.Categories(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed built-in categories: %w", err)
		}
		if err := seed.Locations(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed built-in locations: %w", err)
		}
		log.Printf("built-in categories and locations ensured")
	}

	return db, r, nil
}
