package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	httpadapter "github.com/fintrackhq/fintrack/internal/app/ledger/adapter/in/http"
	memoryadapter "github.com/fintrackhq/fintrack/internal/app/ledger/adapter/out/memory"
	mysqladapter "github.com/fintrackhq/fintrack/internal/app/ledger/adapter/out/mysql"
	"github.com/fintrackhq/fintrack/internal/app/ledger/usecase"
	"github.com/fintrackhq/fintrack/internal/logger"
	"github.com/fintrackhq/fintrack/pkg/backoff"
	"github.com/fintrackhq/fintrack/pkg/mysql"
	"github.com/fintrackhq/fintrack/pkg/wal"
)

type Config struct {
	Server struct {
		Addr      string `yaml:"addr"`
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"server"`
	Store struct {
		// Backend selects the ledger store: "mysql" or "memory".
		Backend string `yaml:"backend"`
		WALPath string `yaml:"walPath"`
	} `yaml:"store"`
	MySQL mysql.Config   `yaml:"mysql"`
	Retry backoff.Policy `yaml:"retry"`
}

func main() {
	log := logger.New()

	cfg := loadConfig(log)

	store, cleanup, err := buildStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ledger store")
	}
	defer cleanup()

	coordinator := usecase.NewCoordinator(store, log)
	accounts := usecase.NewAccountService(store, log)
	reports := usecase.NewReports(store)

	app := fiber.New(fiber.Config{
		AppName: "fintrack",
	})
	app.Use(cors.New())

	server := httpadapter.NewServer(coordinator, accounts, reports, log)
	server.RegisterRoutes(app, httpadapter.AuthMiddleware([]byte(cfg.Server.JWTSecret)))

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting http server")
		if err := app.Listen(cfg.Server.Addr); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	log.Info().Msg("server exited")
}

func buildStore(cfg Config, log zerolog.Logger) (usecase.Store, func(), error) {
	switch cfg.Store.Backend {
	case "mysql":
		client, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			return nil, nil, err
		}
		if err := mysqladapter.Migrate(client.DB()); err != nil {
			client.Close()
			return nil, nil, err
		}
		log.Info().Msg("connected to mysql")
		return mysqladapter.NewStore(client, cfg.Retry, log), func() { client.Close() }, nil

	case "memory":
		journal, err := wal.Open(cfg.Store.WALPath)
		if err != nil {
			return nil, nil, err
		}
		store, err := memoryadapter.NewStore(journal, log)
		if err != nil {
			journal.Close()
			return nil, nil, err
		}
		return store, func() { journal.Close() }, nil

	default:
		log.Fatal().Str("backend", cfg.Store.Backend).Msg("unknown store backend")
		return nil, nil, nil
	}
}

func loadConfig(log zerolog.Logger) Config {
	path := os.Getenv("FINTRACK_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to read config file")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to parse config")
	}

	// Patch defaults the yaml may omit.
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.WALPath == "" {
		cfg.Store.WALPath = "ledger.wal"
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 50 * time.Millisecond
	}
	if cfg.Server.JWTSecret == "" {
		log.Fatal().Msg("server.jwtSecret is required")
	}
	return cfg
}
