package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"monster-quiz-engine/internal/app"
	"monster-quiz-engine/internal/config"
	"monster-quiz-engine/internal/infra/memory"
	"monster-quiz-engine/internal/infra/postgres"
	infraredis "monster-quiz-engine/internal/infra/redis"
	"monster-quiz-engine/internal/infra/sqlite"
	"monster-quiz-engine/internal/storage"
)

// runtime is the wired engine plus whatever must be closed on exit.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	service *app.GameService
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Log.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openRuntime loads config, connects the configured storage driver and builds
// the game service on top of it.
func openRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	rt := &runtime{cfg: cfg, logger: logger}
	kv, err := rt.openKV(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	service, err := app.NewGameService(ctx, kv, app.WithLogger(logger))
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.service = service
	return rt, nil
}

func (r *runtime) openKV(ctx context.Context) (storage.KV, error) {
	cacheTTL := config.TTLDuration(r.cfg.Storage.CacheTTL, 30*time.Second)

	switch r.cfg.Storage.Driver {
	case config.DriverMemory:
		r.logger.Warn("using in-memory storage; progress is lost on exit")
		return memory.NewKVStore(), nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, r.cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func() { _ = store.Close() })
		r.logger.Info("using sqlite storage", slog.String("path", r.cfg.Storage.SQLitePath))
		return store, nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     r.cfg.Redis.Addr,
			Password: r.cfg.Redis.Password,
			DB:       r.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		r.closers = append(r.closers, func() { _ = client.Close() })
		ttl := config.TTLDuration(r.cfg.Redis.TTL, 0)
		r.logger.Info("using redis storage", slog.String("addr", r.cfg.Redis.Addr))
		return memory.NewCachedKV(infraredis.NewKVStore(client, ttl), cacheTTL), nil

	case config.DriverPostgres:
		applied, err := postgres.Migrate(ctx, r.cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		if len(applied) > 0 {
			r.logger.Info("migrations applied", slog.Any("migrations", applied))
		}
		pool, err := pgxpool.Connect(ctx, r.cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		r.closers = append(r.closers, pool.Close)
		r.logger.Info("using postgres storage")
		return memory.NewCachedKV(postgres.NewKVStore(pool), cacheTTL), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", r.cfg.Storage.Driver)
}

// player resolves the --player flag against player.name.
func (r *runtime) player(flag string) string {
	if flag != "" {
		return flag
	}
	return r.cfg.Player.Name
}
