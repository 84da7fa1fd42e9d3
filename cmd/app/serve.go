package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"Portfolio/internal/access"
	"Portfolio/internal/auth"
	"Portfolio/internal/blog"
	"Portfolio/internal/config"
	"Portfolio/internal/database"
	"Portfolio/internal/gateway"
	"Portfolio/internal/github"
	"Portfolio/internal/repository"
	"Portfolio/internal/service"
	externalHttp "Portfolio/internal/transport/http"
	"Portfolio/internal/weather"
	"Portfolio/pkg/cache"
	"Portfolio/pkg/eventlog"
)

const (
	upstreamTimeout = 15 * time.Second
	// раз в limiterSweepEvery удаляются корзины, простаивавшие дольше limiterIdle
	limiterSweepEvery = time.Minute
	limiterIdle       = 10 * time.Minute
)

// app общие для всех подкоманд подключения и сервисы
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *sql.DB
	redis    *cache.RedisClient
	nc       *nats.Conn
	events   service.Events
	client   *http.Client
	tokens   *auth.Tokens
	resolver *auth.Resolver
	projects *service.ProjectsService
	github   *github.Client
}

// openApp подключает Postgres (с миграциями), Redis и NATS и собирает сервисы проектов
func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	db, err := database.OpenPostgres(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := database.MigratePostgres(db, cfg.Database.MigrationsPath, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db}
	a.redis = cache.NewRedisClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.redis.Ping(ctx); err != nil {
		// без Redis сервис работает, просто без кеша
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis is unavailable")
	}

	a.events = eventlog.Discard{}
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("portfolio-api"))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.nc = nc
		a.events = eventlog.NewClient(nc, cfg.NATS.Subject)
	} else {
		log.Warn().Msg("nats url is empty, domain events are discarded")
	}

	a.client = &http.Client{Timeout: upstreamTimeout}
	a.tokens = auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	a.resolver = auth.NewResolver(repository.NewUserRepository(db), cfg.Auth.AdminEmails, log)
	a.projects = service.NewProjectsService(repository.NewProjectRepository(db), a.redis, a.events, cfg.Redis.CacheTTL, log)
	a.github = github.NewClient(a.client, cfg.GitHub.APIURL, cfg.GitHub.Token, cfg.GitHub.Username)
	return a, nil
}

func (a *app) close() {
	if err := a.redis.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close Redis client")
	}
	// корректно дренируем NATS-соединение, чтобы не потерять опубликованные события
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.log.Warn().Err(err).Msg("failed to drain NATS connection")
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close Postgres")
	}
}

// router собирает маршруты API, шлюз и middleware
func (a *app) router(limiter *gateway.Limiter) (*mux.Router, error) {
	ips, err := gateway.NewIPResolver(a.cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}
	authenticator := auth.NewAuthenticator(a.tokens, a.resolver)
	gw := gateway.New(a.client, a.cfg.Server.SelfURL(), authenticator, limiter, ips, a.cfg.Auth.AdminPaths, a.log)

	h := externalHttp.NewHandler(externalHttp.Deps{
		Projects:  a.projects,
		Access:    access.NewService(a.projects, repository.NewAccessRepository(a.db), a.events, a.log),
		Blog:      blog.NewService(repository.NewDraftRepository(a.db), a.events, a.cfg.Blog.IngestAPIKey, a.log),
		Weather:   weather.NewService(a.client, a.redis, a.cfg.Weather.BaseURL, a.cfg.Weather.TTL, a.log),
		GitHub:    a.github,
		Community: service.NewCommunityService(repository.NewCommunityRepository(a.db), a.log),
		Guard:     authenticator,
		Gateway:   gw,
		IPs:       ips,
		Ready:     a.db.PingContext,
		Log:       a.log,
	})

	r := mux.NewRouter()
	r.Use(externalHttp.LoggingMiddleware(a.log))
	r.Use(authenticator.Middleware())
	h.RegisterRoutes(r)
	return r, nil
}

// serve запускает HTTP API с graceful shutdown по SIGINT/SIGTERM
func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	limiter := gateway.NewLimiter()
	handler, err := a.router(limiter)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return limiter.Run(gctx, limiterSweepEvery, limiterIdle)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server exited properly")
	return nil
}

// syncGitHub разово синхронизирует репозитории аккаунта в таблицу проектов и печатает отчёт
func syncGitHub(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.github.ListRepos(ctx, cmd.String("username"))
	if err != nil {
		return fmt.Errorf("failed to fetch repositories: %w", err)
	}
	report := a.projects.BulkSync(ctx, resp.Repos, resp.Username)
	log.Info().Str("username", resp.Username).Int("total", report.Total).Msg("github sync finished")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// issueToken регистрирует пользователя и печатает токен для заголовка Authorization: Bearer
func issueToken(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	user, token, err := a.resolver.SignIn(ctx, a.tokens, cmd.String("email"), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	log.Info().Str("email", user.Email).Str("tier", string(user.Tier)).Msg("token issued")
	fmt.Println(token)
	return nil
}
