package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/Vovarama1992/pare-siga-bridge/internal/config"
	"github.com/Vovarama1992/pare-siga-bridge/internal/logger"
	"github.com/Vovarama1992/pare-siga-bridge/internal/server"
	"github.com/Vovarama1992/pare-siga-bridge/internal/status"
	"github.com/Vovarama1992/pare-siga-bridge/internal/storage"
)

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("config")
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		boot.Fatal().Err(err).Msg("logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("exited cleanly")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- DB ---
	db, dialect, err := storage.Open(ctx, storage.Options{
		DatabaseURL: cfg.DatabaseURL,
		Path:        cfg.DBPath,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	repo := status.NewRepo(db, dialect)
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	log.Info().Str("dialect", string(dialect)).Msg("database ready")

	// --- status module wiring ---
	outbound := status.NewEvolutionOutbound(status.EvolutionConfig{
		BaseURL:  cfg.ServerURL,
		Instance: cfg.Instance,
		APIKey:   cfg.APIKey,
		Delay:    cfg.MessageDelayMS,
		Presence: cfg.MessagePresence,
		Timeout:  cfg.GatewayTimeout,
	}, log)

	svc := status.NewService(repo, outbound, status.Rules{
		SideA:         status.Side(cfg.SideA),
		SideB:         status.Side(cfg.SideB),
		ClosedKeyword: cfg.ClosedKeyword,
		StatusKeyword: cfg.StatusKeyword,
		AllowedChats:  cfg.AllowedChats(),
		Location:      cfg.Location(),
	}, log)

	if len(cfg.AllowedChats()) == 0 {
		log.Warn().Msg("GROUP_ID and GROUP_TEST_ID are empty, every message will be ignored")
	}

	router := server.NewRouter(status.NewHandler(svc, log), cfg.Instance, log)

	return server.Run(ctx, cfg.Addr(), router, cfg.ShutdownTimeout, log)
}
