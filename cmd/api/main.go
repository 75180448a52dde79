package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/nguyenquoctri04/HeThongPhanTan/internal/api"
	"github.com/nguyenquoctri04/HeThongPhanTan/internal/config"
	"github.com/nguyenquoctri04/HeThongPhanTan/internal/ledger"
	"github.com/nguyenquoctri04/HeThongPhanTan/internal/storage/postgres"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// seedUsers is created once, on first start against an empty database.
var seedUsers = []ledger.SeedUser{
	{ID: 1, Username: "nva", Name: "Nguyễn Văn An", Password: "123456", Balance: 5_000_000},
	{ID: 2, Username: "ttb", Name: "Trần Thị Bình", Password: "123456", Balance: 3_000_000},
	{ID: 3, Username: "lvc", Name: "Lê Văn Cường", Password: "123456", Balance: 10_000_000},
	{ID: 4, Username: "ptd", Name: "Phạm Thị Dung", Password: "123456", Balance: 7_500_000},
	{ID: 5, Username: "hve", Name: "Hoàng Văn Em", Password: "123456", Balance: 1_200_000},
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.ApiHost),
		slog.Int("port", cfg.ApiPort),
	)

	dbUrl := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Postgres.User,
		cfg.Postgres.Pass,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Db,
	)

	storage, err := postgres.New(dbUrl, log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	service := ledger.New(storage, log)

	seeded, err := service.SeedIfEmpty(context.Background(), seedUsers)
	if err != nil {
		log.Error("Failed to seed users", "error", err)
		os.Exit(1)
	}
	if !seeded {
		log.Info("Users already present, skipping seed")
	}

	apiServer := api.New(cfg, log, service, []byte(cfg.JwtSecret))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiServer.MustStart()
	}()

	<-sigChan
	log.Info("Got signal to shutdown server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		log.Error("Stopping server error", "error", err)
	}
	if err := storage.Stop(); err != nil {
		log.Error("Closing storage error", "error", err)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
