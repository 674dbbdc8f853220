package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"futures-signal-engine/config"
	"futures-signal-engine/internal/api"
	"futures-signal-engine/internal/database"
	"futures-signal-engine/internal/engine"
	"futures-signal-engine/internal/strategy"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.LoggingConfig)

	registry, err := buildRegistry(cfg.StrategyConfig.Dir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build strategy registry")
	}
	logger.Info().Int("strategies", registry.Len()).Strs("names", registry.Names()).Msg("Strategy registry ready")

	var redisClient *redis.Client
	if cfg.RedisConfig.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
	}
	store := database.NewRedisPositionStore(redisClient, logger)

	var repo *database.Repository
	if cfg.PostgresConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.PostgresConfig.Host,
			Port:     cfg.PostgresConfig.Port,
			User:     cfg.PostgresConfig.User,
			Password: cfg.PostgresConfig.Password,
			Database: cfg.PostgresConfig.Database,
			SSLMode:  cfg.PostgresConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(ctx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("Migrations failed")
		}
		cancel()
		repo = database.NewRepository(db)
	} else {
		logger.Info().Msg("PostgreSQL disabled, history persistence off")
	}

	eng := engine.New(registry, store, repo, logger)
	server := api.NewServer(api.ServerConfig{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
	}, eng, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Shutdown error")
		}
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
}

// buildRegistry loads every strategy document from dir. When the directory
// is missing or empty the built-in baseline is registered explicitly so the
// engine always has at least one named strategy.
func buildRegistry(dir string, logger zerolog.Logger) (*strategy.Registry, error) {
	configs, errs := strategy.LoadDir(dir)
	for _, err := range errs {
		logger.Warn().Err(err).Msg("Skipping invalid strategy document")
	}
	if len(configs) == 0 {
		logger.Info().Str("dir", dir).Msg("No strategy documents found, registering baseline")
		configs = []*strategy.Config{strategy.Default()}
	}
	return strategy.NewRegistry(configs)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.JSONFormat {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
