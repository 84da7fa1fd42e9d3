package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"Portfolio/internal/config"
	"Portfolio/internal/consumer"
	"Portfolio/internal/database"
	"Portfolio/internal/repository"
	"Portfolio/pkg/logger"
)

// run подписывается на события NATS и пачками пишет их в ClickHouse
func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format).With().Str("component", "consumer").Logger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Подключаемся к ClickHouse и применяем миграции
	db, err := database.OpenClickHouse(ctx, cfg.ClickHouse.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := database.MigrateClickHouse(db, cfg.ClickHouse.MigrationsPath, log); err != nil {
		return err
	}

	// Подключаемся к NATS
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("portfolio-consumer"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	cons := consumer.NewConsumer(repository.NewClickhouseRepo(db, log), cfg.ClickHouse.BatchSize, log)

	sub, err := nc.Subscribe(cfg.NATS.Subject, func(msg *nats.Msg) {
		if err := cons.HandleMessage(context.Background(), msg.Data); err != nil {
			log.Error().Err(err).Msg("failed to handle message")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", cfg.NATS.Subject, err)
	}

	// HTTP-сервер для healthz и readyz
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !nc.IsConnected() {
			writeStatus(w, http.StatusServiceUnavailable, "nats disconnected")
			return
		}
		if err := db.PingContext(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "clickhouse unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	healthSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.ConsumerPort), Handler: mux}

	// runCtx отменяется только после отписки, чтобы финальный Flush забрал весь буфер
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", healthSrv.Addr).Str("subject", cfg.NATS.Subject).Msg("starting consumer")
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down consumer")
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("failed to unsubscribe")
		}
		cancelRun()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return healthSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return cons.Run(runCtx, cfg.ClickHouse.FlushInterval)
	})
	return g.Wait()
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": msg})
}

func main() {
	cmd := &cli.Command{
		Name:   "portfolio-consumer",
		Usage:  "Writes domain events from NATS into ClickHouse events_log",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "consumer error: %v\n", err)
		os.Exit(1)
	}
}
